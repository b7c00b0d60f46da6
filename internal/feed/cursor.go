package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-news-reader/internal/domain"
	"github.com/samvad-hq/samvad-news-reader/internal/storage"
)

// timestampLayout matches the ISO-8601 form browsers produce (millisecond precision, UTC).
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// CursorRecord is the persisted pagination record.
type CursorRecord struct {
	Cursor    domain.Cursor
	Timestamp time.Time
	Language  string
}

// Resumable reports whether the record may be used for the initial load of lang at now.
// Records written without a language predate language scoping and match any language.
func (r CursorRecord) Resumable(lang string, now time.Time, ttl time.Duration) bool {
	if r.Cursor.Empty() || r.Timestamp.IsZero() {
		return false
	}
	if r.Language != "" && !strings.EqualFold(r.Language, lang) {
		return false
	}
	return now.Sub(r.Timestamp) < ttl
}

// CursorStore reads and writes the pagination record in durable storage.
type CursorStore struct {
	store storage.Store
}

// NewCursorStore wraps store. A nil store yields a store that remembers nothing.
func NewCursorStore(store storage.Store) CursorStore {
	if store == nil {
		store = storage.NewMemoryStore()
	}
	return CursorStore{store: store}
}

// Load returns the stored record. Missing or unparsable timestamps yield a zero Timestamp.
func (c CursorStore) Load() (CursorRecord, error) {
	var rec CursorRecord

	cursor, ok, err := c.store.Get(storage.KeyNextPage)
	if err != nil {
		return rec, fmt.Errorf("read %s: %w", storage.KeyNextPage, err)
	}
	if ok {
		rec.Cursor = domain.Cursor(strings.TrimSpace(cursor))
	}

	raw, ok, err := c.store.Get(storage.KeyNextPageTimestamp)
	if err != nil {
		return rec, fmt.Errorf("read %s: %w", storage.KeyNextPageTimestamp, err)
	}
	if ok {
		if ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw)); err == nil {
			rec.Timestamp = ts
		}
	}

	lang, ok, err := c.store.Get(storage.KeyNextPageLanguage)
	if err != nil {
		return rec, fmt.Errorf("read %s: %w", storage.KeyNextPageLanguage, err)
	}
	if ok {
		rec.Language = strings.TrimSpace(lang)
	}
	return rec, nil
}

// Save stores rec. A record without a cursor clears the stored cursor so a later
// initial load starts from the first page.
func (c CursorStore) Save(rec CursorRecord) error {
	if rec.Cursor.Empty() {
		return c.Clear()
	}
	if err := c.store.Set(storage.KeyNextPage, rec.Cursor.String()); err != nil {
		return fmt.Errorf("write %s: %w", storage.KeyNextPage, err)
	}
	if err := c.store.Set(storage.KeyNextPageTimestamp, rec.Timestamp.UTC().Format(timestampLayout)); err != nil {
		return fmt.Errorf("write %s: %w", storage.KeyNextPageTimestamp, err)
	}
	if err := c.store.Set(storage.KeyNextPageLanguage, rec.Language); err != nil {
		return fmt.Errorf("write %s: %w", storage.KeyNextPageLanguage, err)
	}
	return nil
}

// Clear removes the pagination record.
func (c CursorStore) Clear() error {
	return c.store.Delete(storage.KeyNextPage, storage.KeyNextPageTimestamp, storage.KeyNextPageLanguage)
}
