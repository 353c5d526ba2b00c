package common

import (
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
)

// Set at link time, e.g. -ldflags "-X github.com/bobmcallan/folio/internal/common.Version=1.2.0".
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	Commit    string `json:"commit"`
	GoVersion string `json:"go_version"`
}

// VersionInfo reports the link-time values, falling back to the VCS stamp
// the Go toolchain embeds when they were not set.
func VersionInfo() BuildInfo {
	info := BuildInfo{
		Version:   Version,
		Build:     Build,
		Commit:    GitCommit,
		GoVersion: runtime.Version(),
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = shortCommit(s.Value)
			}
		case "vcs.time":
			if info.Build == "unknown" && s.Value != "" {
				info.Build = s.Value
			}
		}
	}
	return info
}

func shortCommit(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

// LoadVersionFromFile reads "key: value" lines from a .version file next to
// the binary. File values only replace variables still at their defaults.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}
	loadVersionFile(filepath.Join(filepath.Dir(exe), ".version"))
}

func loadVersionFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	targets := map[string]struct {
		v   *string
		def string
	}{
		"version": {&Version, "dev"},
		"build":   {&Build, "unknown"},
		"commit":  {&GitCommit, "unknown"},
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if t, found := targets[strings.ToLower(strings.TrimSpace(key))]; found && *t.v == t.def {
			*t.v = strings.TrimSpace(val)
		}
	}
}
