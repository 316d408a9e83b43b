// Package library provides typed access to the catalog collections: formulas,
// models, tags and snippets.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/types"
)

const (
	// DefaultTagCacheSize is the number of tags kept in the slug cache.
	DefaultTagCacheSize = 256

	// DefaultTagCacheTTL bounds how long a cached tag can be served after another
	// process changed the store.
	DefaultTagCacheTTL = time.Minute
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Config configures a Library.
type Config struct {
	Store        docstore.Store
	Logger       *slog.Logger
	TagCacheSize int
	TagCacheTTL  time.Duration
}

// Library reads and writes catalog records.
type Library struct {
	store  docstore.Store
	logger *slog.Logger
	tags   *expirable.LRU[string, types.Tag]
}

// New creates a Library over cfg.Store.
func New(cfg Config) (*Library, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TagCacheSize <= 0 {
		cfg.TagCacheSize = DefaultTagCacheSize
	}
	if cfg.TagCacheTTL <= 0 {
		cfg.TagCacheTTL = DefaultTagCacheTTL
	}

	return &Library{
		store:  cfg.Store,
		logger: cfg.Logger,
		tags:   expirable.NewLRU[string, types.Tag](cfg.TagCacheSize, nil, cfg.TagCacheTTL),
	}, nil
}

// Store returns the underlying document store.
func (l *Library) Store() docstore.Store {
	return l.store
}

func (l *Library) collection(name string) docstore.Collection {
	return l.store.Collection(name)
}

// NewID returns a fresh business id such as "formula-8c1f...".
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func decodeOne[T any](doc docstore.Document) (*T, error) {
	if doc == nil {
		return nil, nil
	}
	var v T
	if err := docstore.Decode(doc, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
