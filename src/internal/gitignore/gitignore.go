// Package gitignore filters paths through .gitignore rules so directory
// scans skip generated and vendored trees.
package gitignore

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type rule struct {
	glob    string
	negated bool
	dirOnly bool
	rooted  bool
}

// Ruleset holds the parsed rules of one .gitignore file. Rules apply to
// paths relative to the file's directory; later rules override earlier
// ones, so a negation can re-include a previously ignored path.
type Ruleset struct {
	base  string
	rules []rule
}

// ParseFile parses the .gitignore in the given directory. A missing
// file yields an empty ruleset, not an error.
func ParseFile(dir string) (*Ruleset, error) {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Ruleset{base: dir}, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(dir, f)
}

// Parse reads gitignore syntax from r, treating dir as the rule base.
func Parse(dir string, r io.Reader) (*Ruleset, error) {
	rs := &Ruleset{base: dir}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if ru, ok := parseRule(line); ok {
			rs.rules = append(rs.rules, ru)
		}
	}

	return rs, scanner.Err()
}

func parseRule(line string) (rule, bool) {
	var ru rule

	if strings.HasPrefix(line, "!") {
		ru.negated = true
		line = line[1:]
	}
	// \! and \# escape literal leading characters.
	if strings.HasPrefix(line, `\!`) || strings.HasPrefix(line, `\#`) {
		line = line[1:]
	}
	if strings.HasPrefix(line, "/") {
		ru.rooted = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		ru.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if line == "" {
		return rule{}, false
	}

	ru.glob = line
	return ru, true
}

// Ignored reports whether path is excluded by this ruleset. The last
// matching rule decides.
func (rs *Ruleset) Ignored(path string, isDir bool) bool {
	if rs == nil || len(rs.rules) == 0 {
		return false
	}

	rel, err := filepath.Rel(rs.base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	segments := strings.Split(rel, "/")

	ignored := false
	for _, ru := range rs.rules {
		if ru.dirOnly && !isDir {
			continue
		}
		if ru.matches(rel, segments) {
			ignored = !ru.negated
		}
	}
	return ignored
}

func (ru rule) matches(rel string, segments []string) bool {
	if strings.Contains(ru.glob, "**") {
		return matchRecursive(ru.glob, rel)
	}
	if ru.rooted {
		return matchGlob(ru.glob, rel)
	}
	// Unanchored rules match at any depth, against either a single
	// path segment or a trailing sub-path.
	for i, segment := range segments {
		if matchGlob(ru.glob, segment) {
			return true
		}
		if matchGlob(ru.glob, strings.Join(segments[i:], "/")) {
			return true
		}
	}
	return false
}

// matchRecursive handles globs containing "**", which matches any number
// of directories including none.
func matchRecursive(glob, rel string) bool {
	if glob == "**" {
		return true
	}

	segments := strings.Split(rel, "/")

	if strings.HasPrefix(glob, "**/") {
		suffix := strings.TrimPrefix(glob, "**/")
		for i := range segments {
			if matchGlob(suffix, strings.Join(segments[i:], "/")) {
				return true
			}
		}
		return false
	}

	if idx := strings.Index(glob, "/**/"); idx >= 0 {
		prefix, suffix := glob[:idx], glob[idx+len("/**/"):]
		if !strings.HasPrefix(rel, prefix+"/") && rel != prefix {
			return false
		}
		rest := strings.TrimPrefix(strings.TrimPrefix(rel, prefix), "/")
		restSegments := strings.Split(rest, "/")
		for i := range restSegments {
			if matchGlob(suffix, strings.Join(restSegments[i:], "/")) {
				return true
			}
		}
		return false
	}

	return matchGlob(glob, rel)
}

func matchGlob(glob, name string) bool {
	ok, _ := filepath.Match(glob, name)
	return ok
}
