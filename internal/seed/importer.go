package seed

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/settings"
	"github.com/jackzampolin/spellbook/internal/types"
)

// Mode is what an import run did.
type Mode string

const (
	// ModeFull imported every collection on a store without settings.
	ModeFull Mode = "full"
	// ModeUpdate merged the settings of a newer seed version.
	ModeUpdate Mode = "update"
	// ModeNone found the store up to date.
	ModeNone Mode = "none"
)

// Result summarizes an import run.
type Result struct {
	Mode     Mode           `json:"mode"`
	Source   string         `json:"source"`
	Version  float64        `json:"version,omitempty"`
	Inserted map[string]int `json:"inserted,omitempty"`
	Skipped  map[string]int `json:"skipped,omitempty"`
}

// Config configures an Importer.
type Config struct {
	Store  docstore.Store
	Source Source
	Logger *slog.Logger

	// OnWrite is called after a run or maintenance operation changed the
	// catalog collections.
	OnWrite func()
}

// Importer loads seed data and maintains the catalog collections.
type Importer struct {
	store    docstore.Store
	source   Source
	settings *settings.Store
	logger   *slog.Logger
	onWrite  func()
}

// NewImporter creates an Importer. Source defaults to the built-in seed.
func NewImporter(cfg Config) (*Importer, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Source == nil {
		cfg.Source = EmbeddedSource{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Importer{
		store:    cfg.Store,
		source:   cfg.Source,
		settings: settings.New(cfg.Store, cfg.Logger),
		logger:   cfg.Logger,
		onWrite:  cfg.OnWrite,
	}, nil
}

// Run brings the store in line with the seed.
//
// Without a settings singleton every seed record whose business id is not yet
// stored is inserted, and the singleton is written with initialized=true. With
// a singleton, only a seed whose version is greater than the stored one has an
// effect: its settings are merged into the stored ones. Fetch and store errors
// are returned.
func (im *Importer) Run(ctx context.Context) (*Result, error) {
	exists, err := im.settings.Exists(ctx)
	if err != nil {
		return nil, err
	}

	s, err := im.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed data: %w", err)
	}
	result := &Result{Source: im.source.String(), Version: s.Version}

	if !exists {
		im.logger.Info("first run, importing seed data", "source", result.Source)
		if err := im.importAll(ctx, s, result); err != nil {
			return nil, err
		}
		result.Mode = ModeFull
		im.notify()
		return result, nil
	}

	stored, err := im.settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s.Version > 0 && (stored.Version() == 0 || s.Version > stored.Version()) {
		im.logger.Info("newer seed version, merging settings",
			"stored_version", stored.Version(), "seed_version", s.Version)
		if _, err := im.settings.Update(ctx, func(v settings.Values) {
			maps.Copy(v, s.Settings)
			v[settings.KeyVersion] = s.Version
			v[settings.KeyLastUpdated] = types.Now()
		}); err != nil {
			return nil, err
		}
		result.Mode = ModeUpdate
		return result, nil
	}

	im.logger.Debug("seed data up to date", "version", stored.Version())
	result.Mode = ModeNone
	return result, nil
}

func (im *Importer) importAll(ctx context.Context, s *Seed, result *Result) error {
	result.Inserted = make(map[string]int)
	result.Skipped = make(map[string]int)

	for _, name := range ImportOrder {
		inserted, skipped, err := im.importCollection(ctx, name, s.Records(name))
		if err != nil {
			return err
		}
		result.Inserted[name] = inserted
		result.Skipped[name] = skipped
		im.logger.Info("collection imported", "collection", name, "inserted", inserted, "skipped", skipped)
	}

	values := settings.Values{}
	maps.Copy(values, s.Settings)
	values[settings.KeyInitialized] = true
	values[settings.KeyInitDate] = types.Now()
	if s.Version > 0 {
		values[settings.KeyVersion] = s.Version
	}
	return im.settings.Save(ctx, values)
}

// importCollection inserts records whose business id is not stored yet. The
// first record with a given id wins, including within records.
func (im *Importer) importCollection(ctx context.Context, name string, records []docstore.Document) (inserted, skipped int, err error) {
	field := types.BusinessKeys[name]
	coll := im.store.Collection(name)
	seen := make(map[string]bool)

	var batch []docstore.Document
	for _, rec := range records {
		id := rec.String(field)
		if id == "" {
			im.logger.Warn("seed record without business id", "collection", name, "field", field)
			skipped++
			continue
		}
		if seen[id] {
			skipped++
			continue
		}
		seen[id] = true

		existing, err := coll.FindOne(ctx, docstore.Eq(field, id))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to import %s: %w", name, err)
		}
		if existing != nil {
			skipped++
			continue
		}
		doc := rec.Clone()
		delete(doc, docstore.IDField)
		normalizeTimes(doc)
		batch = append(batch, doc)
	}

	if len(batch) > 0 {
		if _, err := coll.Upsert(ctx, batch...); err != nil {
			return 0, 0, fmt.Errorf("failed to import %s: %w", name, err)
		}
	}
	return len(batch), skipped, nil
}

// normalizeTimes rewrites seed timestamps with types.TimeLayout so stored
// values sort chronologically.
func normalizeTimes(doc docstore.Document) {
	for _, field := range []string{"createdAt", "updatedAt"} {
		if v, ok := doc[field].(string); ok {
			doc[field] = types.NormalizeTime(v)
		}
	}
}

func (im *Importer) notify() {
	if im.onWrite != nil {
		im.onWrite()
	}
}
