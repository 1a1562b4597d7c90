package aggregate

import (
	"fmt"
	"regexp"
	"strings"
)

// Dependency-error fragments that indicate a build referenced a package or
// target that no longer exists.
var dependencyErrorPatterns = []string{
	"no such target",
	"no such package",
	"Package is considered deleted",
}

var quotedIdentifier = regexp.MustCompile(`'([^']+)'`)

// dependencyHint matches known dependency-error shapes in a failure message
// and produces a remediation hint naming Bazel's --deleted_packages
// mechanism. Best-effort text matching: no match means no hint, never an
// error.
func dependencyHint(message string) (string, bool) {
	matched := ""
	for _, pattern := range dependencyErrorPatterns {
		if strings.Contains(message, pattern) {
			matched = pattern
			break
		}
	}
	if matched == "" {
		return "", false
	}

	if m := quotedIdentifier.FindStringSubmatch(message); m != nil {
		return fmt.Sprintf(
			"'%s' looks like a reference to a removed package or target. "+
				"If it was deleted on purpose, add it to --deleted_packages.", m[1]), true
	}

	if idx := strings.Index(message, "Package"); idx >= 0 {
		fragment := message[idx:]
		if end := strings.IndexByte(fragment, '\n'); end >= 0 {
			fragment = fragment[:end]
		}
		return fmt.Sprintf(
			"%s — if it was deleted on purpose, add it to --deleted_packages.",
			strings.TrimSpace(fragment)), true
	}

	return "a referenced package or target no longer exists; " +
		"if it was deleted on purpose, add it to --deleted_packages.", true
}
