// Package changes provides the domain types of a conventional commit message.
package changes

import "strings"

// CommitType represents the type of a conventional commit.
type CommitType string

// Conventional commit types produced by the classifier.
const (
	CommitTypeFeat     CommitType = "feat"
	CommitTypeFix      CommitType = "fix"
	CommitTypeDocs     CommitType = "docs"
	CommitTypeStyle    CommitType = "style"
	CommitTypeRefactor CommitType = "refactor"
	CommitTypeTest     CommitType = "test"
	CommitTypeChore    CommitType = "chore"
	CommitTypeBuild    CommitType = "build"
	CommitTypeCI       CommitType = "ci"
	CommitTypePerf     CommitType = "perf"
)

// AllCommitTypes returns every commit type in declaration order.
func AllCommitTypes() []CommitType {
	return []CommitType{
		CommitTypeFeat,
		CommitTypeFix,
		CommitTypeDocs,
		CommitTypeStyle,
		CommitTypeRefactor,
		CommitTypeTest,
		CommitTypeChore,
		CommitTypeBuild,
		CommitTypeCI,
		CommitTypePerf,
	}
}

// IsValid returns true if the commit type is a recognized type.
func (t CommitType) IsValid() bool {
	switch t {
	case CommitTypeFeat, CommitTypeFix, CommitTypeDocs, CommitTypeStyle,
		CommitTypeRefactor, CommitTypeTest, CommitTypeChore, CommitTypeBuild,
		CommitTypeCI, CommitTypePerf:
		return true
	default:
		return false
	}
}

// OrChore returns t when valid and chore otherwise.
func (t CommitType) OrChore() CommitType {
	if t.IsValid() {
		return t
	}
	return CommitTypeChore
}

// String returns the string representation of the commit type.
func (t CommitType) String() string {
	return string(t)
}

// ParseCommitType parses a string into a CommitType.
func ParseCommitType(s string) (CommitType, bool) {
	t := CommitType(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t, true
	}
	return "", false
}
