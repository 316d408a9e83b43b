package endpoints

import (
	"github.com/jackzampolin/spellbook/internal/api"
	"github.com/jackzampolin/spellbook/internal/defra"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// Backend names the selected store backend for /status.
	Backend string
	// DefraManager is set when the defra backend is selected.
	DefraManager *defra.DockerManager
}

// groups describes the CLI command groups endpoints declare.
var groups = map[string]string{
	"data":        "Read and write JSON data blobs",
	"settings":    "Read and change settings",
	"models":      "Browse models",
	"formulas":    "Browse formulas",
	"tags":        "Browse tags and their snippets",
	"snippets":    "Add snippets",
	"sessions":    "Compose prompts in a session",
	"maintenance": "Deduplicate, check, export and reset the catalog",
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{Backend: cfg.Backend, DefraManager: cfg.DefraManager},
		&MetricsEndpoint{},

		// Data blob endpoints
		&InitDataEndpoint{},
		&SaveDataEndpoint{},
		&LoadDataEndpoint{},

		// Settings endpoints
		&ListSettingsEndpoint{},
		&SaveSettingsEndpoint{},
		&GetSettingEndpoint{},
		&UpdateSettingEndpoint{},
		&ResetSettingEndpoint{},

		// Catalog endpoints
		&ListModelsEndpoint{},
		&ListFormulasEndpoint{},
		&GetFormulaEndpoint{},
		&FormulaSegmentsEndpoint{},
		&ListTagsEndpoint{},
		&TagSnippetsEndpoint{},
		&AddSnippetsEndpoint{},

		// Session endpoints
		&CreateSessionEndpoint{},
		&GetSessionEndpoint{},
		&DeleteSessionEndpoint{},
		&SelectFormulaEndpoint{},
		&SelectTagEndpoint{},
		&SelectSnippetEndpoint{},
		&SwitchModeEndpoint{},
		&ManualTextEndpoint{},
		&PromptEndpoint{},
		&SaveFormulaEndpoint{},
		&SubmitEndpoint{},
		&CatimgPromptEndpoint{},

		// Maintenance endpoints
		&DedupeEndpoint{},
		&IntegrityEndpoint{},
		&ResetEndpoint{},
		&ExportEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
		&SwaggerUIEndpoint{},

		// Static files (catch-all, must be last)
		&StaticEndpoint{},
	}
}

// NewRegistry registers every endpoint and describes the command groups.
func NewRegistry(cfg Config) *api.Registry {
	r := api.NewRegistry()
	for _, ep := range All(cfg) {
		r.Register(ep)
	}
	for name, short := range groups {
		r.DescribeGroup(name, short)
	}
	return r
}
