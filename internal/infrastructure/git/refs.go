package git

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// refPattern allows branch, tag and hash names plus relative suffixes (~, ^).
var refPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/~^-]*$`)

// unsafeRefPatterns would be interpreted by the git CLI as options or by a
// shell as control characters.
var unsafeRefPatterns = []string{
	"--",
	";",
	"|",
	"&",
	"`",
	"$(",
	"${",
	"\n",
	"\r",
	"..",
}

// ErrInvalidRef is returned when a reference is unsafe to pass to git.
var ErrInvalidRef = errors.New("invalid git reference")

// maxRefLength bounds accepted reference names.
const maxRefLength = 250

// ValidateRef reports whether ref is safe to hand to the git CLI.
// An empty ref is accepted and means "use the default".
func ValidateRef(ref string) error {
	if ref == "" || ref == "HEAD" {
		return nil
	}
	for _, pattern := range unsafeRefPatterns {
		if strings.Contains(ref, pattern) {
			return fmt.Errorf("%w: %q contains %q", ErrInvalidRef, ref, pattern)
		}
	}
	if len(ref) > maxRefLength {
		return fmt.Errorf("%w: %q exceeds maximum length", ErrInvalidRef, ref)
	}
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidRef, ref)
	}
	return nil
}
