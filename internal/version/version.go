// Package version reports which build of ledhttpd is running.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/ledhttpd/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/ledhttpd/internal/version.Commit=abc123"
//
// Unset values are derived from the VCS stamp in the build info.
var (
	Version = ""
	Commit  = ""
)

const shortCommit = 7

func init() {
	var settings []debug.BuildSetting
	if info, ok := debug.ReadBuildInfo(); ok {
		settings = info.Settings
	}
	Version, Commit = resolve(Version, Commit, settings, time.Now())
}

// resolve fills the version and commit that ldflags left empty. A commit
// comes from vcs.revision (shortened, "-dirty" when modified); a version
// falls back to dev-<commit date>, or dev-<now> without VCS data.
func resolve(ver, commit string, settings []debug.BuildSetting, now time.Time) (string, string) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if commit == "" {
		if rev := vcs["vcs.revision"]; rev != "" {
			if len(rev) > shortCommit {
				rev = rev[:shortCommit]
			}
			if vcs["vcs.modified"] == "true" {
				rev += "-dirty"
			}
			commit = rev
		} else {
			commit = "unknown"
		}
	}

	if ver == "" {
		stamp := now
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			stamp = t
		}
		ver = "dev-" + stamp.UTC().Format("20060102")
	}
	return ver, commit
}

// Full returns the version with its commit.
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent returns the product token used in Server headers.
func UserAgent() string {
	return "ledhttpd/" + Version
}
