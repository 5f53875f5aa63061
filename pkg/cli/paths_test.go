package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewPaths(t *testing.T) {
	paths, err := NewPaths("testapp")
	if err != nil {
		t.Fatalf("NewPaths error: %v", err)
	}

	if paths.AppName != "testapp" {
		t.Errorf("AppName = %q, want %q", paths.AppName, "testapp")
	}

	if paths.HomeDir == "" {
		t.Error("HomeDir should not be empty")
	}
}

func TestPaths_Layout(t *testing.T) {
	tmpDir := t.TempDir()
	paths := &Paths{AppName: "testapp", HomeDir: tmpDir}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"BaseDir", paths.BaseDir(), filepath.Join(tmpDir, ".testapp")},
		{"ConfigFile", paths.ConfigFile(), filepath.Join(tmpDir, ".testapp", DefaultConfigFile)},
		{"DataDir", paths.DataDir(), filepath.Join(tmpDir, ".testapp", "data")},
		{"HistoryDir", paths.HistoryDir(), filepath.Join(tmpDir, ".testapp", "data", "history")},
		{"DataPath", paths.DataPath("out.pcm"), filepath.Join(tmpDir, ".testapp", "data", "out.pcm")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestPaths_EnsureDataDir(t *testing.T) {
	// Use temp directory to avoid polluting user's home
	tmpDir := t.TempDir()
	paths := &Paths{AppName: "testapp", HomeDir: tmpDir}

	if err := paths.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir error: %v", err)
	}

	info, err := os.Stat(paths.DataDir())
	if err != nil {
		t.Fatalf("DataDir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("DataDir should be a directory")
	}
}
