package diff

import (
	"regexp"
	"strconv"
	"strings"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

const devNull = "/dev/null"

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse splits unified diff text into one FileFact per file.
//
// Both git diffs ("diff --git" headers) and plain "diff -u" output
// ("---"/"+++" pairs) are accepted. Whitespace-only input yields no facts and
// no error. Any other input without a recognizable file header returns a
// parse error.
func Parse(text string) ([]FileFact, error) {
	const op = "diff.Parse"

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	p := &parser{
		removedDecls: make(map[int][]string),
		addedDecls:   make(map[string]struct{}),
	}
	for line := range strings.Lines(text) {
		p.feed(strings.TrimRight(line, "\r\n"))
	}
	p.flush()

	if !p.sawHeader {
		return nil, rperrors.Parse(op, "input is not a unified diff: no file headers found")
	}
	p.resolveRemovedExports()
	return p.facts, nil
}

type parser struct {
	facts     []FileFact
	cur       *FileFact
	curPlus   bool
	sawHeader bool

	inHunk   bool
	oldLeft  int
	newLeft  int
	oldField string

	removedDecls map[int][]string
	addedDecls   map[string]struct{}
	declLang     language
}

func (p *parser) feed(line string) {
	if p.inHunk && p.hunkLine(line) {
		return
	}
	p.inHunk = false

	switch {
	case strings.HasPrefix(line, "diff --git "):
		oldPath, newPath := splitGitHeader(strings.TrimPrefix(line, "diff --git "))
		p.start(oldPath, newPath)
	case strings.HasPrefix(line, "--- "):
		p.oldField = pathField(line[4:])
	case strings.HasPrefix(line, "+++ "):
		p.plusLine(pathField(line[4:]))
	case strings.HasPrefix(line, "@@ "):
		p.hunkHeader(line)
	case p.cur == nil:
		if strings.HasPrefix(line, "Binary files ") {
			p.binaryWithoutHeader(line)
		}
	case strings.HasPrefix(line, "new file mode"):
		p.cur.Status = StatusAdded
	case strings.HasPrefix(line, "deleted file mode"):
		p.cur.Status = StatusDeleted
	case strings.HasPrefix(line, "rename from "):
		p.cur.OldPath = unquote(strings.TrimPrefix(line, "rename from "))
		p.cur.Status = StatusRenamed
	case strings.HasPrefix(line, "rename to "):
		p.setPath(unquote(strings.TrimPrefix(line, "rename to ")))
		p.cur.Status = StatusRenamed
	case strings.HasPrefix(line, "copy to "):
		p.setPath(unquote(strings.TrimPrefix(line, "copy to ")))
		p.cur.Status = StatusAdded
	case strings.HasPrefix(line, "Binary files "):
		if p.curPlus || p.cur.Hunks > 0 {
			p.binaryWithoutHeader(line)
			return
		}
		p.cur.Binary = true
	case line == "GIT binary patch":
		p.cur.Binary = true
	}
}

// hunkLine consumes one line of the current hunk. It reports false when the
// line cannot belong to the hunk, which ends it.
func (p *parser) hunkLine(line string) bool {
	if p.oldLeft <= 0 && p.newLeft <= 0 {
		return false
	}
	marker := byte(' ')
	if line != "" {
		marker = line[0]
	}

	switch marker {
	case '+':
		p.newLeft--
		p.recordAdded(line[1:])
	case '-':
		p.oldLeft--
		p.recordRemoved(line[1:])
	case ' ':
		p.oldLeft--
		p.newLeft--
	case '\\':
		// "\ No newline at end of file"
		return true
	default:
		return false
	}
	if p.oldLeft <= 0 && p.newLeft <= 0 {
		p.inHunk = false
	}
	return true
}

func (p *parser) start(oldPath, newPath string) {
	p.flush()
	p.sawHeader = true
	p.curPlus = false
	p.cur = &FileFact{Status: StatusModified}
	p.declLang = languageFor(newPath)

	switch {
	case oldPath == devNull:
		p.cur.Status = StatusAdded
		p.setPath(newPath)
	case newPath == devNull:
		p.cur.Status = StatusDeleted
		p.setPath(oldPath)
	default:
		p.setPath(newPath)
		if oldPath != newPath {
			p.cur.OldPath = oldPath
			p.cur.Status = StatusRenamed
		}
	}
}

func (p *parser) plusLine(newPath string) {
	oldPath := p.oldField
	p.oldField = ""
	if oldPath == "" {
		oldPath = newPath
	}

	// A bare ---/+++ pair starts a new file unless a "diff --git" header
	// already opened one that has not seen its +++ line yet.
	if p.cur == nil || p.curPlus || p.cur.Hunks > 0 {
		p.start(oldPath, newPath)
	} else {
		switch {
		case oldPath == devNull:
			p.cur.Status = StatusAdded
			p.setPath(newPath)
		case newPath == devNull:
			p.cur.Status = StatusDeleted
			p.setPath(oldPath)
		case newPath != "":
			p.setPath(newPath)
		}
	}
	p.curPlus = true
}

func (p *parser) hunkHeader(line string) {
	if p.cur == nil {
		return
	}
	m := hunkHeaderRegex.FindStringSubmatch(line)
	if m == nil {
		return
	}
	p.cur.Hunks++
	p.inHunk = true
	p.oldLeft = hunkCount(m[2])
	p.newLeft = hunkCount(m[4])
	if p.oldLeft <= 0 && p.newLeft <= 0 {
		p.inHunk = false
	}
}

func hunkCount(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func (p *parser) binaryWithoutHeader(line string) {
	// Binary files a/x and b/y differ
	rest := strings.TrimSuffix(strings.TrimPrefix(line, "Binary files "), " differ")
	oldPart, newPart, ok := strings.Cut(rest, " and ")
	if !ok {
		return
	}
	p.start(pathField(oldPart), pathField(newPart))
	p.cur.Binary = true
}

func (p *parser) setPath(newPath string) {
	p.cur.Path = newPath
	p.cur.Extension = extensionOf(newPath)
	p.declLang = languageFor(newPath)
}

func (p *parser) recordAdded(content string) {
	p.cur.AddedLines++
	if len(p.cur.Added) < maxSampledLines {
		p.cur.Added = append(p.cur.Added, content)
	}
	if name := declaredName(p.declLang, content); name != "" {
		p.addedDecls[name] = struct{}{}
	}
}

func (p *parser) recordRemoved(content string) {
	p.cur.RemovedLines++
	if len(p.cur.Removed) < maxSampledLines {
		p.cur.Removed = append(p.cur.Removed, content)
	}
	if name := declaredName(p.declLang, content); name != "" {
		idx := len(p.facts)
		p.removedDecls[idx] = append(p.removedDecls[idx], name)
	}
}

func (p *parser) flush() {
	if p.cur == nil {
		return
	}
	if p.cur.Path == "" {
		p.cur.Path = p.cur.OldPath
	}
	if p.cur.Path != "" {
		p.facts = append(p.facts, *p.cur)
	} else {
		delete(p.removedDecls, len(p.facts))
	}
	p.cur = nil
	p.inHunk = false
}

// splitGitHeader extracts both paths of a "diff --git" header. Unquoted paths
// containing spaces are ambiguous, so a header whose halves are equal is
// split in the middle first.
func splitGitHeader(rest string) (oldPath, newPath string) {
	if strings.HasPrefix(rest, `"`) || strings.HasSuffix(rest, `"`) {
		if a, b, ok := splitQuoted(rest); ok {
			return stripPrefix(a), stripPrefix(b)
		}
	}

	if n := len(rest); n%2 == 1 {
		mid := n / 2
		if rest[mid] == ' ' && trimSide(rest[:mid]) == trimSide(rest[mid+1:]) {
			return stripPrefix(rest[:mid]), stripPrefix(rest[mid+1:])
		}
	}
	if idx := strings.LastIndex(rest, " b/"); idx > 0 {
		return stripPrefix(rest[:idx]), stripPrefix(rest[idx+1:])
	}
	a, b, _ := strings.Cut(rest, " ")
	return stripPrefix(a), stripPrefix(b)
}

func splitQuoted(rest string) (string, string, bool) {
	var first, second string
	if strings.HasPrefix(rest, `"`) {
		q, err := strconv.QuotedPrefix(rest)
		if err != nil {
			return "", "", false
		}
		first = unquote(q)
		rest = strings.TrimSpace(rest[len(q):])
	} else {
		a, b, ok := strings.Cut(rest, ` "`)
		if !ok {
			return "", "", false
		}
		first = a
		rest = `"` + b
	}
	second = unquote(rest)
	return first, second, true
}

// trimSide drops the a/ or b/ prefix used to compare header halves.
func trimSide(s string) string {
	if strings.HasPrefix(s, "a/") || strings.HasPrefix(s, "b/") {
		return s[2:]
	}
	return s
}

func stripPrefix(p string) string {
	if p == devNull {
		return p
	}
	return trimSide(p)
}

// pathField reads the path from a ---/+++ line, dropping a trailing
// timestamp and the a/ or b/ prefix.
func pathField(field string) string {
	if tab := strings.IndexByte(field, '\t'); tab >= 0 {
		field = field[:tab]
	}
	return stripPrefix(unquote(strings.TrimSpace(field)))
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s
}
