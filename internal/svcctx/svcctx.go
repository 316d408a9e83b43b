// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/jackzampolin/spellbook/internal/blob"
	"github.com/jackzampolin/spellbook/internal/docstore"
	"github.com/jackzampolin/spellbook/internal/editor"
	"github.com/jackzampolin/spellbook/internal/handoff"
	"github.com/jackzampolin/spellbook/internal/home"
	"github.com/jackzampolin/spellbook/internal/library"
	"github.com/jackzampolin/spellbook/internal/metrics"
	"github.com/jackzampolin/spellbook/internal/seed"
	"github.com/jackzampolin/spellbook/internal/session"
	"github.com/jackzampolin/spellbook/internal/settings"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store    docstore.Store
	Library  *library.Library
	Sessions *session.Manager
	Editor   *editor.Editor
	Importer *seed.Importer
	Settings *settings.Store
	Blobs    *blob.Store
	Handoff  *handoff.Client
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
	Home     *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the document store from context.
func StoreFrom(ctx context.Context) docstore.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// LibraryFrom extracts the catalog library from context.
func LibraryFrom(ctx context.Context) *library.Library {
	if s := ServicesFrom(ctx); s != nil {
		return s.Library
	}
	return nil
}

// SessionsFrom extracts the session manager from context.
func SessionsFrom(ctx context.Context) *session.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Sessions
	}
	return nil
}

// EditorFrom extracts the formula editor from context.
func EditorFrom(ctx context.Context) *editor.Editor {
	if s := ServicesFrom(ctx); s != nil {
		return s.Editor
	}
	return nil
}

// ImporterFrom extracts the seed importer from context.
func ImporterFrom(ctx context.Context) *seed.Importer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Importer
	}
	return nil
}

// SettingsFrom extracts the settings store from context.
func SettingsFrom(ctx context.Context) *settings.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Settings
	}
	return nil
}

// BlobsFrom extracts the JSON blob store from context.
func BlobsFrom(ctx context.Context) *blob.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Blobs
	}
	return nil
}

// HandoffFrom extracts the image app client from context.
func HandoffFrom(ctx context.Context) *handoff.Client {
	if s := ServicesFrom(ctx); s != nil {
		return s.Handoff
	}
	return nil
}

// MetricsFrom extracts the metrics recorder from context. A nil recorder is
// safe to use.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// LoggerFrom extracts the logger from context, falling back to slog.Default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
