package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// safeNamePattern is the character set allowed in channel names and job ids.
var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// SafePath validates that name can be used as a relative storage path
// segment. It rejects empty names, traversal sequences, absolute paths,
// scheme markers and any character outside [A-Za-z0-9_./-].
//
// The returned error wraps ErrInvalidInput.
func SafePath(name string) (string, error) {
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	case strings.Contains(name, ".."):
		return "", fmt.Errorf("%w: %q contains a traversal sequence", ErrInvalidInput, name)
	case strings.HasPrefix(name, "/"):
		return "", fmt.Errorf("%w: %q is an absolute path", ErrInvalidInput, name)
	case strings.Contains(name, "://"):
		return "", fmt.Errorf("%w: %q contains a scheme marker", ErrInvalidInput, name)
	case !safeNamePattern.MatchString(name):
		return "", fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9_./-]", ErrInvalidInput, name)
	}

	for _, segment := range strings.Split(name, "/") {
		if segment == "" || segment == "." {
			return "", fmt.Errorf("%w: %q contains an empty path segment", ErrInvalidInput, name)
		}
	}

	return name, nil
}
