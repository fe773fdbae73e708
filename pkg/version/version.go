// Package version reports which skillforge build is running. Release builds
// stamp Version and GitCommit with -ldflags; plain `go install` builds fall
// back to the module and VCS data embedded by the Go toolchain.
package version

import (
	"encoding/json"
	"runtime"
	"runtime/debug"
	"strings"
)

const unknown = "unknown"

var (
	// Version is set at build time.
	Version = "dev"
	// GitCommit is set at build time.
	GitCommit = unknown
)

var readBuildInfo = debug.ReadBuildInfo

// Info is the build reported by `skillforge version` and attached to traces.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"goVersion"`
}

// Get returns the build information, preferring ldflags values.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit, GoVersion: runtime.Version()}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = strings.TrimPrefix(bi.Main.Version, "v")
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == unknown {
				info.GitCommit = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// ShortCommit is the first 12 characters of the commit hash.
func (i Info) ShortCommit() string {
	if len(i.GitCommit) > 12 {
		return i.GitCommit[:12]
	}
	return i.GitCommit
}

func (i Info) String() string {
	s := "skillforge " + i.Version + " (" + i.ShortCommit()
	if i.Modified {
		s += "-dirty"
	}
	return s + ", " + i.GoVersion + ")"
}

// UserAgent identifies skillforge to the HTTP services it calls.
func (i Info) UserAgent() string {
	return "skillforge/" + i.Version
}

// JSON returns the indented JSON form.
func (i Info) JSON() (string, error) {
	b, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
