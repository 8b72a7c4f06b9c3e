package gitignore

import (
	"path/filepath"
	"strings"
	"sync"
)

// Filter answers ignore queries for paths under a root, consulting the
// .gitignore of every directory between the path and the root. Parsed
// rulesets are cached per directory.
type Filter struct {
	root  string
	mu    sync.RWMutex
	cache map[string]*Ruleset
}

func NewFilter(root string) *Filter {
	return &Filter{
		root:  root,
		cache: make(map[string]*Ruleset),
	}
}

// Ignored reports whether path is excluded by any .gitignore between its
// directory and the filter root, or by the built-in noise list.
func (f *Filter) Ignored(path string, isDir bool) bool {
	if defaultIgnored(path) {
		return true
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	dir := filepath.Dir(abs)
	for {
		if rs := f.ruleset(dir); rs.Ignored(abs, isDir) {
			return true
		}
		if dir == f.root || dir == filepath.Dir(dir) {
			break
		}
		dir = filepath.Dir(dir)
	}
	return false
}

func (f *Filter) ruleset(dir string) *Ruleset {
	f.mu.RLock()
	rs, ok := f.cache[dir]
	f.mu.RUnlock()
	if ok {
		return rs
	}

	rs, err := ParseFile(dir)
	if err != nil {
		rs = &Ruleset{base: dir}
	}

	f.mu.Lock()
	f.cache[dir] = rs
	f.mu.Unlock()
	return rs
}

// Names that never hold project sources, ignored regardless of any
// .gitignore content.
var defaultNoise = []string{
	".git", ".svn", ".hg", ".bzr",
	"node_modules", "vendor", "__pycache__",
	"*.pyc", "*.pyo", "*.swp", "*.swo", "*~",
	".DS_Store", "Thumbs.db", ".idea", ".vscode",
}

func defaultIgnored(path string) bool {
	base := filepath.Base(path)
	for _, glob := range defaultNoise {
		if ok, _ := filepath.Match(glob, base); ok {
			return true
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		switch part {
		case ".git", ".svn", ".hg", ".bzr", "node_modules", "vendor", "__pycache__", ".idea", ".vscode":
			return true
		}
	}
	return false
}
