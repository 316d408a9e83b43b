// Package settings stores the application settings singleton.
//
// The singleton is the settings document whose settingKey is "app_settings".
// Its settingValue is a JSON object holding user preferences next to the seed
// bookkeeping fields (initialized, initDate, version, lastUpdated).
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/types"
)

// Bookkeeping keys written by the seed importer.
const (
	KeyInitialized = "initialized"
	KeyInitDate    = "initDate"
	KeyVersion     = "version"
	KeyLastUpdated = "lastUpdated"
)

// IsBookkeeping reports whether key is maintained by the seed importer rather
// than set by users.
func IsBookkeeping(key string) bool {
	switch key {
	case KeyInitialized, KeyInitDate, KeyVersion, KeyLastUpdated:
		return true
	}
	return false
}

// ErrNoDefault is returned when resetting a key that has no default.
var ErrNoDefault = errors.New("no default value for key")

// Values is the decoded settings object.
type Values map[string]any

// DefaultEntries are the preference defaults served for unset keys.
var DefaultEntries = Values{
	"theme":       "dark",
	"language":    "zh-CN",
	"autoSave":    true,
	"maxSnippets": float64(500),
}

// Store reads and writes the singleton.
type Store struct {
	coll   docstore.Collection
	logger *slog.Logger
}

// New creates a Store over the settings collection of store.
func New(store docstore.Store, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{coll: store.Collection(types.CollectionSettings), logger: logger}
}

func (s *Store) find(ctx context.Context) (docstore.Document, error) {
	doc, err := s.coll.FindOne(ctx, docstore.Eq(types.FieldSettingKey, types.AppSettingsKey), docstore.Desc("updatedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return doc, nil
}

// Exists reports whether the singleton has been written.
func (s *Store) Exists(ctx context.Context) (bool, error) {
	doc, err := s.find(ctx)
	return doc != nil, err
}

// Load returns the stored settings. A missing singleton or an undecodable
// settingValue yields an empty Values.
func (s *Store) Load(ctx context.Context) (Values, error) {
	doc, err := s.find(ctx)
	if err != nil {
		return nil, err
	}
	return decodeValue(doc, s.logger), nil
}

func decodeValue(doc docstore.Document, logger *slog.Logger) Values {
	values := Values{}
	if doc == nil {
		return values
	}
	raw := doc.String("settingValue")
	if raw == "" {
		return values
	}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		logger.Warn("ignoring malformed settings value", "error", err)
		return Values{}
	}
	if values == nil {
		values = Values{}
	}
	return values
}

// Save replaces the stored settings with values.
func (s *Store) Save(ctx context.Context, values Values) error {
	doc, err := s.find(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	setting := docstore.Document{
		types.FieldSettingKey: types.AppSettingsKey,
		"settingValue":        string(raw),
		"updatedAt":           types.Now(),
	}
	if doc != nil {
		setting[docstore.IDField] = doc.ID()
	}
	if _, err := s.coll.Upsert(ctx, setting); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// Update loads the settings, applies fn and saves the result.
func (s *Store) Update(ctx context.Context, fn func(Values)) (Values, error) {
	values, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	fn(values)
	if err := s.Save(ctx, values); err != nil {
		return nil, err
	}
	return values, nil
}

// Delete removes the singleton, and any duplicates of it.
func (s *Store) Delete(ctx context.Context) error {
	docs, err := s.coll.Find(ctx, docstore.Eq(types.FieldSettingKey, types.AppSettingsKey))
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	for _, doc := range docs {
		if err := s.coll.Remove(ctx, doc.ID()); err != nil {
			return fmt.Errorf("failed to delete settings: %w", err)
		}
	}
	return nil
}

// Effective returns the defaults overlaid with the stored settings.
func (s *Store) Effective(ctx context.Context) (Values, error) {
	stored, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := maps.Clone(DefaultEntries)
	maps.Copy(out, stored)
	return out, nil
}

// Get returns the effective value of key and whether it is set or defaulted.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	values, err := s.Effective(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	_, err := s.Update(ctx, func(v Values) { v[key] = value })
	if err == nil {
		s.logger.Info("setting updated", "key", key)
	}
	return err
}

// Reset restores key to its default value.
func (s *Store) Reset(ctx context.Context, key string) (any, error) {
	def, ok := DefaultEntries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDefault, key)
	}
	if err := s.Set(ctx, key, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Version returns the seed version recorded in values, or 0.
func (v Values) Version() float64 {
	f, _ := v[KeyVersion].(float64)
	return f
}
