package changes

import "errors"

// Domain errors for commit messages.
var (
	// ErrInvalidCommitMessage indicates a message that is not a conventional commit.
	ErrInvalidCommitMessage = errors.New("invalid conventional commit message")

	// ErrInvalidCommitType indicates an unrecognized commit type.
	ErrInvalidCommitType = errors.New("invalid commit type")

	// ErrEmptyDescription indicates a header with no description.
	ErrEmptyDescription = errors.New("commit description is empty")

	// ErrHeaderTooLong indicates a header over the configured length.
	ErrHeaderTooLong = errors.New("commit header exceeds maximum length")

	// ErrInvalidVersion indicates a current version that is not semver.
	ErrInvalidVersion = errors.New("invalid semantic version")
)
