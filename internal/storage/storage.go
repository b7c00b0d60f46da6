package storage

import (
	"fmt"
	"strings"
	"time"
)

// Package storage provides the durable key-value store that outlives a feed session.

// Keys shared by the feed loader and sibling views.
const (
	KeyNextPage          = "nextPage"
	KeyNextPageTimestamp = "nextPageTimestamp"
	KeyNextPageLanguage  = "nextPageLanguage"
	KeyLanguage          = "language"
)

// Store is a durable string key-value store.
type Store interface {
	Close() error
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Options controls concrete store implementations.
type Options struct {
	Bucket      string
	OpenTimeout time.Duration
}

const (
	defaultBucket      = "local"
	defaultOpenTimeout = time.Second
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled", "memory":
		return NewMemoryStore(), nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	opts.Bucket = strings.TrimSpace(opts.Bucket)
	if opts.Bucket == "" {
		opts.Bucket = defaultBucket
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	return opts
}
