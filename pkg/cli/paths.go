package cli

import (
	"os"
	"path/filepath"
)

// Paths provides access to the gizplay directory structure
type Paths struct {
	// AppName is the application name; the base directory is ~/.<app>
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.<app>)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, "."+p.AppName)
}

// ConfigFile returns the config file path (~/.<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.BaseDir(), DefaultConfigFile)
}

// DataDir returns the data directory (~/.<app>/data)
func (p *Paths) DataDir() string {
	return filepath.Join(p.BaseDir(), "data")
}

// HistoryDir returns the resume-position store directory
// (~/.<app>/data/history)
func (p *Paths) HistoryDir() string {
	return filepath.Join(p.DataDir(), "history")
}

// EnsureDataDir creates the data directory if it doesn't exist
func (p *Paths) EnsureDataDir() error {
	return os.MkdirAll(p.DataDir(), 0755)
}

// DataPath returns a path within the data directory
func (p *Paths) DataPath(name string) string {
	return filepath.Join(p.DataDir(), name)
}
