package utils

import (
	"fmt"
	"runtime/debug"
)

// Version is the release version, overridden at build time with
// -ldflags "-X greenhouse-monitor/backend/pkg/utils.Version=1.2.3".
//
//nolint:gochecknoglobals // Set through ldflags
var Version = "0.0.0-dev"

const shortCommitLen = 7

// GetBuildVersion returns the full version string, including build time.
func GetBuildVersion() string {
	commit, buildTime, modified := getVCSInfo()

	return fmt.Sprintf("v%s%s (%s) built at %s", Version, dirtySuffix(modified), commit, buildTime)
}

// GetVersionShort returns the version string without the build time.
func GetVersionShort() string {
	commit, _, modified := getVCSInfo()

	return fmt.Sprintf("v%s%s (%s)", Version, dirtySuffix(modified), commit)
}

// GetBuildInfo returns version metadata as a flat map, suitable for logging or health output.
func GetBuildInfo() map[string]string {
	commit, buildTime, modified := getVCSInfo()

	info := map[string]string{
		"version":      Version,
		"commit":       commit,
		"build_time":   buildTime,
		"vcs_modified": modified,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		info["go_version"] = bi.GoVersion
	}

	return info
}

func getVCSInfo() (string, string, string) {
	commit, buildTime, modified := "unknown", "unknown", "false"

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return commit, buildTime, modified
	}

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			commit = s.Value
			if len(commit) > shortCommitLen {
				commit = commit[:shortCommitLen]
			}
		case "vcs.time":
			buildTime = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				modified = "true"
			}
		}
	}

	return commit, buildTime, modified
}

func dirtySuffix(modified string) string {
	if modified == "true" {
		return "-dirty"
	}

	return ""
}
