// Package version reports the build identity of the launchpad binary.
package version

import (
	"runtime/debug"
	"strconv"
	"strings"
)

// Set at build time with -ldflags "-X launchpad/internal/version.Version=...".
var (
	Version   = "dev"
	Major     = "0"
	Minor     = "0"
	Patch     = "0"
	Built     = ""
	GitCommit = ""
)

type Info struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version,omitempty"`
}

// Get returns the linked build values. A missing commit falls back to the
// VCS revision recorded by the Go toolchain.
func Get() Info {
	info := Info{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
	}
	if build, ok := debug.ReadBuildInfo(); ok {
		info.GoVersion = build.GoVersion
		for _, setting := range build.Settings {
			if setting.Key == "vcs.revision" && info.GitCommit == "" {
				info.GitCommit = setting.Value
			}
		}
	}
	return info
}

func (i Info) String() string {
	var b strings.Builder
	b.WriteString("launchpad ")
	b.WriteString(i.Version)
	if i.GitCommit != "" {
		commit := i.GitCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		b.WriteString(" (" + commit + ")")
	}
	if i.Built != "" {
		b.WriteString(" built " + i.Built)
	}
	return b.String()
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
