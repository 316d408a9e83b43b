package main

import (
	"github.com/jackzampolin/spellbook/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// The registry only needs its endpoints to build commands; the services
	// they call live in the running server.
	apiCmd := endpoints.NewRegistry(endpoints.Config{}).BuildCommands(getServerURL)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8080", "Server URL",
	)
	rootCmd.AddCommand(apiCmd)
}
