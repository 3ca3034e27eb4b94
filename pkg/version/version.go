// Package version reports the build of the running binary.
package version

import (
	"runtime/debug"
)

// Set with -ldflags "-X github.com/docker/briefing/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = ""
)

// Info contains version information and its source.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

// Get returns the build information, falling back to the module build info
// when the linker flags were not set.
func Get() Info {
	info := Info{Version: Version, Commit: Commit}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	if info.Commit == "" {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Commit = s.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	s := i.Version
	if i.Commit != "" {
		s += " (" + i.Commit + ")"
	}
	return s
}
