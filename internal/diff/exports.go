package diff

import (
	"path"
	"regexp"
	"slices"
	"strings"
)

type language uint8

const (
	langOther language = iota
	langGo
	langJS
	langPython
)

var (
	goFuncDecl = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Z]\w*)\s*[\[(]`)
	goTypeDecl = regexp.MustCompile(`^type\s+([A-Z]\w*)\s`)
	jsExport   = regexp.MustCompile(`^export\s+(?:default\s+)?(?:async\s+)?(?:function\*?|class|const|let|var|interface|type|enum)\s+([A-Za-z_$][\w$]*)`)
	pyDecl     = regexp.MustCompile(`^(?:async\s+)?(?:def|class)\s+([A-Za-z]\w*)`)
)

func languageFor(p string) language {
	base := strings.ToLower(path.Base(p))
	switch {
	case strings.HasSuffix(base, "_test.go"),
		strings.HasPrefix(base, "test_"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."):
		return langOther
	}
	switch extensionOf(p) {
	case ".go":
		return langGo
	case ".js", ".jsx", ".mjs", ".ts", ".tsx":
		return langJS
	case ".py":
		return langPython
	default:
		return langOther
	}
}

// declaredName returns the public symbol declared by a top-level source
// line, or "" when the line declares nothing public.
func declaredName(lang language, line string) string {
	var re []*regexp.Regexp
	switch lang {
	case langGo:
		re = []*regexp.Regexp{goFuncDecl, goTypeDecl}
	case langJS:
		re = []*regexp.Regexp{jsExport}
	case langPython:
		re = []*regexp.Regexp{pyDecl}
	default:
		return ""
	}
	for _, r := range re {
		if m := r.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return ""
}

// resolveRemovedExports keeps the removed declarations that no added line
// declares again. A symbol moved to another file is not a removal.
func (p *parser) resolveRemovedExports() {
	for idx, names := range p.removedDecls {
		if idx >= len(p.facts) {
			continue
		}
		var gone []string
		for _, name := range names {
			if _, ok := p.addedDecls[name]; ok {
				continue
			}
			gone = append(gone, name)
		}
		slices.Sort(gone)
		p.facts[idx].RemovedExports = slices.Compact(gone)
	}
}

// RemovedExports collects removed public declarations across facts.
func RemovedExports(facts []FileFact) []string {
	var all []string
	for _, f := range facts {
		all = append(all, f.RemovedExports...)
	}
	slices.Sort(all)
	return slices.Compact(all)
}
