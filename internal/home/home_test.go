package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-medsum")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-medsum" {
			t.Errorf("expected path /tmp/test-medsum, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-medsum")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DataPath", dir.DataPath(), "/tmp/test-medsum/data"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-medsum/config.yaml"},
		{"PromptsDir", dir.PromptsDir(), "/tmp/test-medsum/prompts"},
		{"InboxDir", dir.InboxDir(), "/tmp/test-medsum/inbox"},
		{"RunDir", dir.RunDir("/cases/smith_2023.pdf"), "/tmp/test-medsum/runs/smith_2023"},
		{"TablePath", dir.TablePath("smith_2023.pdf"), "/tmp/test-medsum/data/smith_2023_summary.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	medsumDir := filepath.Join(tmpDir, "medsum-test")

	dir, err := New(medsumDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist yet")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}
	for _, sub := range []string{dir.DataPath(), dir.PromptsDir(), filepath.Join(medsumDir, RunsDirName)} {
		if _, err := os.Stat(sub); err != nil {
			t.Errorf("%s not created: %v", sub, err)
		}
	}

	// Idempotent.
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("second EnsureExists failed: %v", err)
	}
}

func TestDir_ConfigExists(t *testing.T) {
	dir, _ := New(t.TempDir())

	if dir.ConfigExists() {
		t.Error("config should not exist yet")
	}

	if err := os.WriteFile(dir.ConfigPath(), []byte("pipeline: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after writing")
	}
}
