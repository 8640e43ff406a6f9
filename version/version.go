// Package version reports build information. The Git values are set at
// link time, e.g.
//
//	go build -ldflags "-X github.com/jackzampolin/medsum/version.GitRelease=v0.1.0"
package version

import (
	"runtime"
	"runtime/debug"
)

var (
	GitRelease    = "dev"
	GitCommit     = "unknown"
	GitCommitDate = "unknown"
	GoInfo        = runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if GitRelease == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		GitRelease = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if GitCommit == "unknown" {
				GitCommit = s.Value
			}
		case "vcs.time":
			if GitCommitDate == "unknown" {
				GitCommitDate = s.Value
			}
		}
	}
}
