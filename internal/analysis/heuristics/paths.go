// Package heuristics holds the path, keyword and scope detectors the
// classifier rules are built from.
package heuristics

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Category groups files that imply a commit type on their own.
type Category string

// File categories, in the order they are checked.
const (
	CategoryTest   Category = "test"
	CategoryDocs   Category = "docs"
	CategoryCI     Category = "ci"
	CategoryBuild  Category = "build"
	CategoryDeps   Category = "deps"
	CategoryLint   Category = "lint"
	CategorySource Category = "source"
	CategoryOther  Category = "other"
)

var categoryOrder = []Category{
	CategoryTest,
	CategoryDocs,
	CategoryCI,
	CategoryBuild,
	CategoryDeps,
	CategoryLint,
}

// PathDetector matches file paths against per-category glob patterns.
// Patterns without a slash match the file name at any depth.
type PathDetector struct {
	patterns map[Category][]string
}

// NewPathDetector creates a path detector with the built-in patterns.
func NewPathDetector() *PathDetector {
	return &PathDetector{patterns: initPathPatterns()}
}

// Categorize returns the first category whose patterns match p. Files that
// match nothing are source when their extension is a programming language
// and other otherwise.
func (d *PathDetector) Categorize(p string) Category {
	for _, c := range categoryOrder {
		if d.Is(p, c) {
			return c
		}
	}
	if IsSourceFile(p) {
		return CategorySource
	}
	return CategoryOther
}

// Is reports whether p matches any pattern of category c.
func (d *PathDetector) Is(p string, c Category) bool {
	p = strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, `\`, "/")), "./")
	base := path.Base(p)
	for _, pattern := range d.patterns[c] {
		target := p
		if !strings.Contains(pattern, "/") {
			target = base
		}
		if ok, err := doublestar.Match(pattern, target); err == nil && ok {
			return true
		}
	}
	return false
}

// All reports whether every path matches category c. It is false for an
// empty list.
func (d *PathDetector) All(paths []string, c Category) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		if !d.Is(p, c) {
			return false
		}
	}
	return true
}

// Count returns how many paths match category c.
func (d *PathDetector) Count(paths []string, c Category) int {
	n := 0
	for _, p := range paths {
		if d.Is(p, c) {
			n++
		}
	}
	return n
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true,
	".ts": true, ".tsx": true, ".java": true, ".kt": true, ".kts": true, ".scala": true,
	".rb": true, ".rs": true, ".c": true, ".h": true, ".cc": true, ".cpp": true,
	".hpp": true, ".cs": true, ".swift": true, ".m": true, ".php": true, ".ex": true,
	".exs": true, ".erl": true, ".clj": true, ".lua": true, ".dart": true, ".sh": true,
	".bash": true, ".zsh": true, ".sql": true, ".vue": true, ".svelte": true,
	".css": true, ".scss": true, ".sass": true, ".less": true, ".html": true,
	".proto": true, ".graphql": true, ".tf": true,
}

// IsSourceFile reports whether p has a programming language extension.
func IsSourceFile(p string) bool {
	return sourceExtensions[strings.ToLower(path.Ext(p))]
}

func initPathPatterns() map[Category][]string {
	return map[Category][]string{
		CategoryTest: {
			"*_test.go",
			"*.test.{ts,tsx,js,jsx,mjs}",
			"*.spec.{ts,tsx,js,jsx,mjs}",
			"test_*.py", "*_test.py", "conftest.py",
			"*Test.java", "*Tests.java", "*_spec.rb",
			"**/__tests__/**", "**/__mocks__/**", "**/__fixtures__/**",
			"{test,tests,spec,specs}/**",
			"**/{test,tests,spec,specs}/**",
			"**/testdata/**", "**/fixtures/**",
		},
		CategoryDocs: {
			"*.{md,mdx,rst,adoc}",
			"README*", "CHANGELOG*", "LICENSE*", "CONTRIBUTING*", "AUTHORS*", "NOTICE*",
			"{docs,doc,documentation,wiki}/**",
			"**/{docs,doc}/**/*.{md,mdx,rst,adoc,png,svg}",
			"mkdocs.yml", "docusaurus.config.*",
		},
		CategoryCI: {
			".github/workflows/*.{yml,yaml}",
			".github/actions/**",
			".github/dependabot.{yml,yaml}",
			".gitlab-ci.{yml,yaml}",
			".circleci/**",
			".travis.yml", "Jenkinsfile", "azure-pipelines.yml",
			".drone.yml", "bitbucket-pipelines.yml", ".buildkite/**",
			"renovate.json", "renovate.json5", ".renovaterc*",
		},
		CategoryBuild: {
			"Makefile", "makefile", "GNUmakefile", "*.mk",
			"CMakeLists.txt", "BUILD", "BUILD.bazel", "WORKSPACE", "*.bzl",
			"Dockerfile", "Dockerfile.*", "*.dockerfile", ".dockerignore",
			"docker-compose*.{yml,yaml}", "compose.{yml,yaml}",
			"webpack.config.*", "vite.config.*", "rollup.config.*", "esbuild.config.*",
			"babel.config.*", "tsconfig*.json",
			".goreleaser.{yml,yaml}", "goreleaser.{yml,yaml}",
			"setup.py", "setup.cfg", "build.gradle*", "pom.xml", "Taskfile.{yml,yaml}",
		},
		CategoryDeps: {
			"go.mod", "go.sum", "go.work", "go.work.sum",
			"package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml", "bun.lockb",
			"Cargo.toml", "Cargo.lock",
			"requirements*.txt", "poetry.lock", "Pipfile", "Pipfile.lock", "uv.lock",
			"composer.json", "composer.lock", "Gemfile", "Gemfile.lock", "mix.lock",
		},
		CategoryLint: {
			".eslintrc*", "eslint.config.*", ".prettierrc*", "prettier.config.*",
			".stylelintrc*", ".golangci.{yml,yaml,toml}", ".pylintrc", "pylintrc",
			".flake8", "ruff.toml", ".ruff.toml", "rustfmt.toml", ".rustfmt.toml",
			".rubocop.yml", ".editorconfig", ".clang-format",
		},
	}
}
