// Package ignore evaluates .rinneignore-style path-exclusion rules.
//
// Rule shapes:
//
//   - "foo"    matches a file or directory named foo at any depth
//     (equivalent to "**/foo").
//   - "foo/"   matches a directory named foo at any depth, excluding its
//     entire subtree.
//   - "foo/**" matches the contents of a directory named foo at any depth,
//     but not foo itself (an otherwise-empty foo/ survives).
//   - any pattern containing "*", "?", or "[" is matched with
//     doublestar glob semantics against the full slash-separated relative
//     path.
package ignore

import (
	"bufio"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Rule is one parsed line of a .rinneignore file.
type Rule struct {
	raw       string
	isDirOnly bool // trailing "/"
	isGlob    bool
}

// Engine holds a set of parsed rules and evaluates paths against them.
// Negation rules are not supported.
type Engine struct {
	rules []Rule
}

// Parse reads .rinneignore-style rules, one per line; blank lines and
// lines starting with "#" are ignored.
func Parse(r io.Reader) (*Engine, error) {
	var rules []Rule
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, parseRule(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Engine{rules: rules}, nil
}

// New builds an Engine directly from raw rule strings, useful for tests and
// for wiring a CLI --exclude flag alongside a .rinneignore file.
func New(patterns ...string) *Engine {
	rules := make([]Rule, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		rules = append(rules, parseRule(p))
	}
	return &Engine{rules: rules}
}

func parseRule(line string) Rule {
	dirOnly := strings.HasSuffix(line, "/")
	pattern := strings.TrimSuffix(line, "/")
	isGlob := strings.ContainsAny(pattern, "*?[")
	return Rule{raw: pattern, isDirOnly: dirOnly, isGlob: isGlob}
}

// Excluded reports whether relPath (slash-separated, no leading slash)
// should be skipped. isDir tells the engine whether relPath names a
// directory, since directory-only rules only ever exclude directories (and
// everything under them).
func (e *Engine) Excluded(relPath string, isDir bool) bool {
	if e == nil {
		return false
	}
	for _, rule := range e.rules {
		if e.matches(rule, relPath, isDir) {
			return true
		}
	}
	return false
}

func (e *Engine) matches(rule Rule, relPath string, isDir bool) bool {
	name := relPath
	if i := strings.LastIndexByte(relPath, '/'); i >= 0 {
		name = relPath[i+1:]
	}

	if rule.isDirOnly {
		if !isDir {
			// A directory-only rule excludes a file only when one of its
			// ancestor directories matches; a file's own name never does.
			i := strings.LastIndexByte(relPath, '/')
			if i < 0 {
				return false
			}
			return dirAncestorMatches(rule.raw, relPath[:i])
		}
		return nameOrGlobMatches(rule.raw, relPath, name)
	}

	if strings.HasSuffix(rule.raw, "/**") {
		dirPattern := strings.TrimSuffix(rule.raw, "/**")
		prefix := dirAncestorMatches(dirPattern, relPath)
		return prefix && relPath != dirPattern && !isExactDirSelf(dirPattern, relPath)
	}

	return nameOrGlobMatches(rule.raw, relPath, name)
}

// nameOrGlobMatches implements the bare-name ("foo" == "**/foo") and
// explicit-glob matching cases.
func nameOrGlobMatches(pattern, relPath, name string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		// Bare name: matches the base name at any depth, or an exact
		// relative-path match for patterns authored with slashes.
		if strings.Contains(pattern, "/") {
			return relPath == pattern
		}
		return name == pattern
	}
	if strings.Contains(pattern, "/") {
		ok, _ := doublestar.Match(pattern, relPath)
		return ok
	}
	ok, _ := doublestar.Match(pattern, name)
	return ok
}

// dirAncestorMatches reports whether relPath is pattern itself or lies
// under a directory named/matching pattern at any depth.
func dirAncestorMatches(pattern, relPath string) bool {
	if isExactDirSelf(pattern, relPath) {
		return true
	}
	segments := strings.Split(relPath, "/")
	built := ""
	for _, seg := range segments[:len(segments)-1] {
		if built == "" {
			built = seg
		} else {
			built = built + "/" + seg
		}
		if segmentMatches(pattern, built) {
			return true
		}
	}
	return false
}

func isExactDirSelf(pattern, relPath string) bool {
	return segmentMatches(pattern, relPath)
}

func segmentMatches(pattern, candidate string) bool {
	if !strings.ContainsAny(pattern, "*?[") {
		if strings.Contains(pattern, "/") {
			return candidate == pattern
		}
		base := candidate
		if i := strings.LastIndexByte(candidate, '/'); i >= 0 {
			base = candidate[i+1:]
		}
		return base == pattern
	}
	ok, _ := doublestar.Match(pattern, candidate)
	return ok
}
