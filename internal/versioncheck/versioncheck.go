// Package versioncheck compares the running git-ai version against a
// version string supplied by the caller (e.g. embedded at release time, or
// read from a file a separate update channel already fetched) and reports
// whether a newer (major, minor or patch) release is available. It never makes a
// network call itself, keeping every core command safe to run offline.
package versioncheck

import "golang.org/x/mod/semver"

// Compare reports whether latest is a newer version than current. Both
// must be valid semver, optionally missing the "v" prefix semver.Compare
// requires; Compare adds it if absent. An invalid version on either side
// is treated as "nothing to report" rather than an error, since a bad
// version string here should never block a command from running.
func Compare(current, latest string) (newer bool) {
	c := canonical(current)
	l := canonical(latest)
	if c == "" || l == "" {
		return false
	}
	return semver.Compare(l, c) > 0
}

func canonical(v string) string {
	if v == "" {
		return ""
	}
	if v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return v
}

// Nudge returns a one-line upgrade message, or "" if latest isn't newer
// than current.
func Nudge(current, latest string) string {
	if !Compare(current, latest) {
		return ""
	}
	return "git-ai " + latest + " is available (you have " + current + "); see your package manager to upgrade."
}
