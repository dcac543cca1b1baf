// Package diff turns unified diff text into per-file facts.
package diff

import (
	"path"
	"strings"
)

// FileStatus describes what happened to a file in a diff.
type FileStatus string

// File statuses.
const (
	StatusModified FileStatus = "modified"
	StatusAdded    FileStatus = "added"
	StatusDeleted  FileStatus = "deleted"
	StatusRenamed  FileStatus = "renamed"
)

// maxSampledLines bounds the line contents kept per file for content rules.
const maxSampledLines = 200

// FileFact is what the parser learned about one file. Facts are built once
// per parse and never mutated afterwards.
type FileFact struct {
	Path         string
	OldPath      string
	Status       FileStatus
	AddedLines   int
	RemovedLines int
	Extension    string
	Binary       bool
	Hunks        int

	// Added and Removed hold line contents without the +/- marker, capped
	// at maxSampledLines each.
	Added   []string
	Removed []string

	// RemovedExports lists public declarations removed from the file and
	// not declared again anywhere in the diff.
	RemovedExports []string
}

// Changed reports whether the file has any line changes.
func (f FileFact) Changed() bool {
	return f.AddedLines > 0 || f.RemovedLines > 0
}

// Base returns the file name without directories.
func (f FileFact) Base() string {
	return path.Base(f.Path)
}

// IsEmpty reports whether facts describe an empty change set: no files, or
// files whose counts are all zero (pure renames, mode changes, binaries).
func IsEmpty(facts []FileFact) bool {
	for _, f := range facts {
		if f.Changed() {
			return false
		}
	}
	return true
}

// Totals sums added and removed lines across facts.
func Totals(facts []FileFact) (added, removed int) {
	for _, f := range facts {
		added += f.AddedLines
		removed += f.RemovedLines
	}
	return added, removed
}

// Paths returns the path of every fact in order.
func Paths(facts []FileFact) []string {
	paths := make([]string, len(facts))
	for i, f := range facts {
		paths[i] = f.Path
	}
	return paths
}

func extensionOf(p string) string {
	return strings.ToLower(path.Ext(p))
}
