package app

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePaths_ResolvesConfigDirectory(t *testing.T) {
	configHome := filepath.Join(t.TempDir(), "cfg")
	t.Setenv("XDG_CONFIG_HOME", configHome)

	paths, err := ResolvePaths()
	if err != nil {
		t.Fatalf("resolve paths: %v", err)
	}

	if paths.RootDir != filepath.Join(configHome, Name) {
		t.Fatalf("unexpected root dir: %q", paths.RootDir)
	}
	if paths.ConfigFile != filepath.Join(paths.RootDir, ConfigFilename) {
		t.Fatalf("unexpected config file: %q", paths.ConfigFile)
	}
	if paths.JournalFile != filepath.Join(paths.RootDir, JournalFilename) {
		t.Fatalf("unexpected journal file: %q", paths.JournalFile)
	}
	if paths.LogFile != filepath.Join(paths.RootDir, LogFilename) {
		t.Fatalf("unexpected log file: %q", paths.LogFile)
	}
	if _, err := os.Stat(paths.RootDir); err != nil {
		t.Fatalf("expected app config directory to exist: %v", err)
	}
}
