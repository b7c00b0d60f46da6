package sources

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Package sources describes which backends serve each feed language.

//go:embed default_sources.yaml
var defaultSources []byte

// Language describes the feed backends and discovery sections for one language.
type Language struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	PrimaryURL  string    `json:"primary_url" yaml:"primary_url"`
	FallbackURL string    `json:"fallback_url" yaml:"fallback_url"`
	Discovery   []Section `json:"discovery" yaml:"discovery"`
}

// Section is one discovery category.
type Section struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
}

// HasFallback reports whether failures may switch this language to another backend.
func (l Language) HasFallback() bool {
	return l.FallbackURL != ""
}

// BaseURL resolves the feed endpoint for the given selection. Languages without a
// fallback always use their primary backend.
func (l Language) BaseURL(sel Selection) string {
	if sel == Fallback && l.HasFallback() {
		return l.FallbackURL
	}
	return l.PrimaryURL
}

type fileRegistry struct {
	Languages []Language `json:"languages" yaml:"languages"`
}

// Registry holds the languages loaded from a sources file.
type Registry struct {
	mu        sync.RWMutex
	languages []Language
	idx       map[string]Language
}

// Default returns the embedded registry.
func Default() (*Registry, error) {
	return parse(defaultSources, ".yaml")
}

// LoadRegistry loads the registry from a YAML/JSON file, or the embedded defaults when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	return parse(raw, filepath.Ext(path))
}

func parse(raw []byte, ext string) (*Registry, error) {
	fileReg, err := parseSourcesFile(raw, ext)
	if err != nil {
		return nil, err
	}
	if len(fileReg.Languages) == 0 {
		return nil, errors.New("sources file contains no languages entries")
	}

	reg := &Registry{
		languages: make([]Language, len(fileReg.Languages)),
		idx:       make(map[string]Language, len(fileReg.Languages)),
	}
	for i := range fileReg.Languages {
		lang := sanitizeLanguage(fileReg.Languages[i])
		if err := validateLanguage(lang); err != nil {
			return nil, fmt.Errorf("languages[%d]: %w", i, err)
		}
		if _, exists := reg.idx[lang.ID]; exists {
			return nil, fmt.Errorf("duplicate language id %q", lang.ID)
		}
		reg.languages[i] = lang
		reg.idx[lang.ID] = lang
	}
	return reg, nil
}

func parseSourcesFile(data []byte, ext string) (fileRegistry, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var reg fileRegistry
		if err := d.fn(data, &reg); err == nil {
			return reg, nil
		}
	}

	return fileRegistry{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

func sanitizeLanguage(l Language) Language {
	l.ID = strings.ToLower(strings.TrimSpace(l.ID))
	l.Name = strings.TrimSpace(l.Name)
	l.PrimaryURL = strings.TrimSpace(l.PrimaryURL)
	l.FallbackURL = strings.TrimSpace(l.FallbackURL)
	if l.Name == "" {
		l.Name = l.ID
	}

	sections := make([]Section, 0, len(l.Discovery))
	for _, s := range l.Discovery {
		s.Title = strings.TrimSpace(s.Title)
		s.URL = strings.TrimSpace(s.URL)
		if s.URL == "" {
			continue
		}
		sections = append(sections, s)
	}
	l.Discovery = sections
	return l
}

func validateLanguage(l Language) error {
	if l.ID == "" {
		return errors.New("id is required")
	}
	if l.PrimaryURL == "" {
		return fmt.Errorf("primary_url is required for language %q", l.ID)
	}
	if err := validateURL(l.PrimaryURL); err != nil {
		return fmt.Errorf("primary_url for language %q: %w", l.ID, err)
	}
	if l.FallbackURL != "" {
		if err := validateURL(l.FallbackURL); err != nil {
			return fmt.Errorf("fallback_url for language %q: %w", l.ID, err)
		}
	}
	for i, s := range l.Discovery {
		if err := validateURL(s.URL); err != nil {
			return fmt.Errorf("discovery[%d] for language %q: %w", i, l.ID, err)
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url host is empty")
	}
	return nil
}

// ByID returns the language entry for id.
func (r *Registry) ByID(id string) (Language, bool) {
	if r == nil {
		return Language{}, false
	}
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Language{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.idx[id]
	return l, ok
}

// All returns all configured languages in file order.
func (r *Registry) All() []Language {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Language, len(r.languages))
	copy(out, r.languages)
	return out
}

// IDs lists the configured language ids.
func (r *Registry) IDs() []string {
	all := r.All()
	ids := make([]string, 0, len(all))
	for _, l := range all {
		ids = append(ids, l.ID)
	}
	return ids
}
