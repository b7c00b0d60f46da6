package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samvad-hq/samvad-news-reader/internal/config"
	"github.com/samvad-hq/samvad-news-reader/internal/discovery"
	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/internal/feed"
	"github.com/samvad-hq/samvad-news-reader/internal/logger"
	"github.com/samvad-hq/samvad-news-reader/internal/storage"
	"github.com/samvad-hq/samvad-news-reader/pkg/httpclient"
	"github.com/samvad-hq/samvad-news-reader/pkg/newsapi"
	"github.com/samvad-hq/samvad-news-reader/pkg/sources"
)

// Reader is the news reader runtime. It owns the feed Session for the lifetime
// of the process and hands out Loaders bound to it, so views can come and go
// without losing articles or scroll position.
type Reader struct {
	cfg       *config.Config
	registry  *sources.Registry
	store     storage.Store
	prefs     storage.Preferences
	api       *newsapi.Client
	discovery *discovery.Service
	session   *feed.Session
	log       logger.Logger

	mu   sync.RWMutex
	lang sources.Language
}

// NewReader builds a reader runtime from config.
func NewReader(cfg *config.Config, log logger.Logger) (*Reader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)

	registry, err := sources.LoadRegistry(cfg.SourcesFile)
	if err != nil {
		return nil, fmt.Errorf("load sources registry: %w", err)
	}
	log.InfoObj("sources registry loaded", "sources_meta", map[string]any{
		"file":      cfg.SourcesFile,
		"languages": registry.IDs(),
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	prefs := storage.NewPreferences(store)
	langID := prefs.Language(cfg.Language)
	lang, ok := registry.ByID(langID)
	if !ok {
		_ = store.Close()
		return nil, fmt.Errorf("unknown language %q (configured: %v)", langID, registry.IDs())
	}

	api := newsapi.NewClient(httpclient.NewRestyClient(httpclient.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
	}))

	return &Reader{
		cfg:       cfg,
		registry:  registry,
		store:     store,
		prefs:     prefs,
		api:       api,
		discovery: discovery.NewService(api, log),
		session:   feed.NewSession(),
		log:       log,
		lang:      lang,
	}, nil
}

// Language returns the active language.
func (r *Reader) Language() sources.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lang
}

// Languages lists the configured languages.
func (r *Reader) Languages() []sources.Language {
	return r.registry.All()
}

// Session returns the feed state owned by this reader.
func (r *Reader) Session() *feed.Session {
	return r.session
}

// NewFeed mounts a Loader for the active language over the reader's Session.
// The caller closes it when the view goes away.
func (r *Reader) NewFeed(onScroll func(int)) *feed.Loader {
	return feed.NewLoader(r.Language(), r.api, r.session, r.store, feed.Options{
		CursorTTL:      r.cfg.CursorTTL,
		LoadMoreBuffer: r.cfg.LoadMoreBuffer,
		PrefetchEvery:  r.cfg.PrefetchEvery,
		ScrollThrottle: r.cfg.ScrollThrottle,
		OnScroll:       onScroll,
		Logger:         r.log,
	})
}

// Walk performs the initial load and up to loads further pages without a view,
// then returns the renderable articles. It stops early once the feed is exhausted.
// Fetch errors are returned only when nothing could be loaded.
func (r *Reader) Walk(ctx context.Context, loads int) ([]domain.Article, error) {
	loader := r.NewFeed(nil)
	defer loader.Close()

	var errs []error
	if err := loader.InitialLoad(ctx); err != nil {
		errs = append(errs, err)
	}
	for i := 0; i < loads; i++ {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if r.session.Len() > 0 && r.session.NextCursor().Empty() {
			break
		}
		var err error
		if r.session.Len() == 0 {
			err = loader.InitialLoad(ctx)
		} else {
			err = loader.LoadMore(ctx)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	r.log.InfoObj("feed walk completed", "walk_meta", map[string]any{
		"language":  loader.Language(),
		"stored":    r.session.Len(),
		"selection": loader.Selection().String(),
		"failures":  len(errs),
	})

	if r.session.Len() == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return loader.Visible(), nil
}

// Discover loads the discovery board of the active language.
func (r *Reader) Discover(ctx context.Context) discovery.Board {
	return r.discovery.Load(ctx, r.Language())
}

// SwitchLanguage persists id as the selected language and drops the feed state
// of the previous one. Loaders mounted before the switch must be closed by the caller.
func (r *Reader) SwitchLanguage(id string) error {
	lang, ok := r.registry.ByID(id)
	if !ok {
		return fmt.Errorf("unknown language %q (configured: %v)", id, r.registry.IDs())
	}
	if err := r.prefs.SetLanguage(lang.ID); err != nil {
		return fmt.Errorf("persist language: %w", err)
	}

	r.mu.Lock()
	changed := r.lang.ID != lang.ID
	r.lang = lang
	r.mu.Unlock()

	if changed {
		r.session.Reset()
		r.log.InfoObj("language switched", "language", lang.ID)
	}
	return nil
}

// ResetCursor forgets the persisted pagination record.
func (r *Reader) ResetCursor() error {
	if err := feed.NewCursorStore(r.store).Clear(); err != nil {
		return fmt.Errorf("clear pagination record: %w", err)
	}
	return nil
}

// CursorRecord returns the persisted pagination record.
func (r *Reader) CursorRecord() (feed.CursorRecord, error) {
	return feed.NewCursorStore(r.store).Load()
}

// Close releases the durable store.
func (r *Reader) Close() error {
	if r == nil || r.store == nil {
		return nil
	}
	if err := r.store.Close(); err != nil {
		r.log.ErrorObj("storage close failed", "error", err)
		return err
	}
	return nil
}
