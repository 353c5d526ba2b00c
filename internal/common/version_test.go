package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadVersionFile_OnlyFillsDefaults(t *testing.T) {
	saved := [3]string{Version, Build, GitCommit}
	t.Cleanup(func() { Version, Build, GitCommit = saved[0], saved[1], saved[2] })

	Version, Build, GitCommit = "dev", "2026-01-02", "unknown"

	path := filepath.Join(t.TempDir(), ".version")
	content := "# release metadata\nversion: 1.4.0\nbuild: 2026-03-04\nCommit : abc1234\nmalformed line\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	loadVersionFile(path)

	if Version != "1.4.0" {
		t.Errorf("Version = %q, want 1.4.0", Version)
	}
	if Build != "2026-01-02" {
		t.Errorf("Build = %q, link-time value should win", Build)
	}
	if GitCommit != "abc1234" {
		t.Errorf("GitCommit = %q, want abc1234", GitCommit)
	}
}

func TestLoadVersionFile_Missing(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })
	Version = "dev"

	loadVersionFile(filepath.Join(t.TempDir(), "absent"))
	if Version != "dev" {
		t.Errorf("Version = %q, want dev", Version)
	}
}

func TestVersionInfo(t *testing.T) {
	info := VersionInfo()
	if info.Version == "" || info.Build == "" || info.Commit == "" {
		t.Errorf("expected every field populated, got %+v", info)
	}
	if info.GoVersion == "" {
		t.Error("expected go version")
	}
	if got := shortCommit("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortCommit = %q", got)
	}
}
