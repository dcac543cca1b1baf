package heuristics

import (
	"path"
	"strings"
)

// containerDirs never name a scope; the next segment does.
var containerDirs = map[string]bool{
	"src": true, "lib": true, "pkg": true, "internal": true, "app": true,
	"apps": true, "packages": true, "modules": true, "source": true,
	"test": true, "tests": true, "spec": true, "specs": true, "__tests__": true,
	"testdata": true, "fixtures": true, "cmd": true,
}

const maxScopeLength = 24

// ScopeCandidate returns the scope one file votes for, or "" when the file
// does not suggest any. The first directory below container directories
// wins; a test file with no such directory votes for the subject in its name.
// Files under hidden directories never vote.
func ScopeCandidate(p string) string {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, `\`, "/")), "./")
	segments := strings.Split(p, "/")
	dirs := segments[:len(segments)-1]

	for _, dir := range dirs {
		lower := strings.ToLower(dir)
		if strings.HasPrefix(lower, ".") {
			// tool configuration such as .github or .vscode
			return ""
		}
		if containerDirs[lower] {
			continue
		}
		return NormalizeScope(lower)
	}

	return NormalizeScope(testSubject(segments[len(segments)-1]))
}

// testSubject extracts "auth" from test_auth.py, auth_test.go or auth.test.ts.
func testSubject(base string) string {
	name := strings.ToLower(base)
	if i := strings.Index(name, ".test."); i > 0 {
		return name[:i]
	}
	if i := strings.Index(name, ".spec."); i > 0 {
		return name[:i]
	}
	name = strings.TrimSuffix(name, path.Ext(name))
	switch {
	case strings.HasPrefix(name, "test_"):
		return strings.TrimPrefix(name, "test_")
	case strings.HasSuffix(name, "_test"):
		return strings.TrimSuffix(name, "_test")
	case strings.HasSuffix(name, "_spec"):
		return strings.TrimSuffix(name, "_spec")
	}
	return ""
}

// InferScope returns the candidate held by a strict majority of paths, or
// "" when no candidate has one. Paths without a candidate count against
// every candidate.
func InferScope(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	counts := make(map[string]int)
	best, bestCount := "", 0
	for _, p := range paths {
		c := ScopeCandidate(p)
		if c == "" {
			continue
		}
		counts[c]++
		if counts[c] > bestCount || (counts[c] == bestCount && c < best) {
			best, bestCount = c, counts[c]
		}
	}
	if bestCount*2 <= len(paths) {
		return ""
	}
	return best
}

// NormalizeScope lowercases s, keeps [a-z0-9._-] and collapses anything else
// into single dashes.
func NormalizeScope(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			sb.WriteRune(r)
			dash = false
		case r == '-' || r == ' ' || r == '/':
			if !dash && sb.Len() > 0 {
				sb.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(sb.String(), "-._")
	if len(out) > maxScopeLength {
		out = strings.TrimRight(out[:maxScopeLength], "-._")
	}
	return out
}
