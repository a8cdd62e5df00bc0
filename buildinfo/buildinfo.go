// Package buildinfo provides build-time properties injected via ldflags.
//
//	go build -ldflags "-X github.com/nomis52/taskmonitor/buildinfo.version=v1.2.0 \
//	    -X github.com/nomis52/taskmonitor/buildinfo.gitCommit=$(git rev-parse HEAD)"
//
// Without ldflags the VCS revision recorded by the Go toolchain is used.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Properties holds build-time properties injected via ldflags.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// Package-level variables for ldflags injection (unexported).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties.
func Get() Properties {
	p := Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
	if p.GitCommit != "unknown" {
		return p
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				p.GitCommit = s.Value
			case "vcs.time":
				if p.BuildTime == "unknown" {
					p.BuildTime = s.Value
				}
			}
		}
	}
	return p
}

// String formats the properties for display.
func (p Properties) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", p.Version, p.GitCommit, p.BuildTime, p.GoVersion)
}
