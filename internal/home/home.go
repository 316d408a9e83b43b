package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the spellbook home directory.
	DefaultDirName = ".spellbook"

	// DataDirName is the subdirectory for saved JSON documents and init.json.
	DataDirName = "data"

	// StoreDirName is the subdirectory for the file and sqlite stores.
	StoreDirName = "store"

	// DefraDirName is the subdirectory mounted into the DefraDB container.
	DefraDirName = "defradb"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	// SeedFileName is the seed file looked up in the data directory.
	SeedFileName = "init.json"

	// SQLiteFileName is the database file of the sqlite store.
	SQLiteFileName = "spellbook.db"
)

// Dir represents the spellbook home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.spellbook).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// SeedPath returns the path of init.json in the data directory.
func (d *Dir) SeedPath() string {
	return filepath.Join(d.DataPath(), SeedFileName)
}

// StorePath returns the directory of the file store.
func (d *Dir) StorePath() string {
	return filepath.Join(d.path, StoreDirName)
}

// SQLitePath returns the database file of the sqlite store.
func (d *Dir) SQLitePath() string {
	return filepath.Join(d.StorePath(), SQLiteFileName)
}

// DefraPath returns the DefraDB data directory.
func (d *Dir) DefraPath() string {
	return filepath.Join(d.path, DefraDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Creating the subdirectories also creates the parent
	for _, dir := range []string{d.DataPath(), d.StorePath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
