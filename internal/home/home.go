package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the medsum home directory.
	DefaultDirName = ".medsum"

	// DataDirName holds result tables for runs without an explicit output.
	DataDirName = "data"

	// RunsDirName holds one work directory per watched case file.
	RunsDirName = "runs"

	// PromptsDirName holds <key>.tmpl prompt overrides.
	PromptsDirName = "prompts"

	// InboxDirName is the default directory for medsum watch.
	InboxDirName = "inbox"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the medsum home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.medsum).
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

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// PromptsDir returns the default prompt override directory.
func (d *Dir) PromptsDir() string {
	return filepath.Join(d.path, PromptsDirName)
}

// InboxDir returns the default watched inbox.
func (d *Dir) InboxDir() string {
	return filepath.Join(d.path, InboxDirName)
}

// RunDir returns the work directory for a case file, keyed by its base name.
func (d *Dir) RunDir(sourcePath string) string {
	return filepath.Join(d.path, RunsDirName, caseName(sourcePath))
}

// TablePath returns where the summary table of a case file is written.
func (d *Dir) TablePath(sourcePath string) string {
	return filepath.Join(d.DataPath(), caseName(sourcePath)+"_summary.csv")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.DataPath(), d.PromptsDir(), filepath.Join(d.path, RunsDirName)} {
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

func caseName(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
