package gitignore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseRules(t *testing.T, base, content string) *Ruleset {
	t.Helper()
	rs, err := Parse(base, strings.NewReader(content))
	require.NoError(t, err)
	return rs
}

func TestRulesetBasicPatterns(t *testing.T) {
	rs := parseRules(t, "/repo", "*.log\nbuild/\n/rooted.txt\n")

	assert.True(t, rs.Ignored("/repo/server.log", false))
	assert.True(t, rs.Ignored("/repo/deep/nested/server.log", false))
	assert.False(t, rs.Ignored("/repo/server.go", false))

	assert.True(t, rs.Ignored("/repo/build", true))
	assert.False(t, rs.Ignored("/repo/build", false), "dir-only rule must not match a file")

	assert.True(t, rs.Ignored("/repo/rooted.txt", false))
	assert.False(t, rs.Ignored("/repo/sub/rooted.txt", false), "rooted rule matches top level only")
}

func TestRulesetNegationLastMatchWins(t *testing.T) {
	rs := parseRules(t, "/repo", "*.log\n!keep.log\n")

	assert.True(t, rs.Ignored("/repo/server.log", false))
	assert.False(t, rs.Ignored("/repo/keep.log", false))
}

func TestRulesetCommentsAndBlanksSkipped(t *testing.T) {
	rs := parseRules(t, "/repo", "# comment\n\n*.tmp\n")

	assert.True(t, rs.Ignored("/repo/a.tmp", false))
	assert.False(t, rs.Ignored("/repo/# comment", false))
}

func TestRulesetDoubleAsterisk(t *testing.T) {
	rs := parseRules(t, "/repo", "**/generated\ndocs/**/draft.md\n")

	assert.True(t, rs.Ignored("/repo/generated", true))
	assert.True(t, rs.Ignored("/repo/a/b/generated", true))
	assert.True(t, rs.Ignored("/repo/docs/v1/deep/draft.md", false))
	assert.False(t, rs.Ignored("/repo/other/draft.md", false))
}

func TestRulesetOutsideBaseNeverMatches(t *testing.T) {
	rs := parseRules(t, "/repo/sub", "*.log\n")
	assert.False(t, rs.Ignored("/repo/other.log", false))
}

func TestParseFileMissingIsEmpty(t *testing.T) {
	dir := t.TempDir()
	rs, err := ParseFile(dir)
	require.NoError(t, err)
	assert.False(t, rs.Ignored(filepath.Join(dir, "anything"), false))
}

func TestFilterConsultsNestedGitignores(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.out\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".gitignore"), []byte("local.txt\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "a.out"), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "local.txt"), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "kept.go"), []byte{}, 0o644))

	f := NewFilter(root)
	assert.True(t, f.Ignored(filepath.Join(sub, "a.out"), false), "parent rules apply below")
	assert.True(t, f.Ignored(filepath.Join(sub, "local.txt"), false))
	assert.False(t, f.Ignored(filepath.Join(sub, "kept.go"), false))
}

func TestFilterDefaultNoise(t *testing.T) {
	f := NewFilter("/repo")
	assert.True(t, f.Ignored("/repo/node_modules/pkg/index.js", false))
	assert.True(t, f.Ignored("/repo/.git", true))
	assert.True(t, f.Ignored("/repo/x.pyc", false))
}

func TestWalkerSkipsIgnoredAndBoundsDepth(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("skipme\n"), 0o644))
	mk := func(parts ...string) {
		p := filepath.Join(append([]string{root}, parts...)...)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte{}, 0o644))
	}
	mk("top.go")
	mk("skipme", "hidden.go")
	mk("a", "b", "c", "deep.go")
	mk("a", "b", "c", "d", "toodeep.go")

	var seen []string
	w := NewWalker(root)
	err := w.Walk(root, func(path string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			seen = append(seen, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)

	assert.Contains(t, seen, "top.go")
	assert.Contains(t, seen, "a/b/c/deep.go")
	assert.NotContains(t, seen, "skipme/hidden.go")
	assert.NotContains(t, seen, "a/b/c/d/toodeep.go", "walk is depth bounded")
}

func TestWalkerSkipDirPrunes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "prune"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "prune", "inside.go"), []byte{}, 0o644))

	var seen []string
	w := NewWalker(root)
	err := w.Walk(root, func(path string, d os.DirEntry, err error) error {
		if d != nil && d.IsDir() && d.Name() == "prune" {
			return filepath.SkipDir
		}
		if d != nil && !d.IsDir() {
			seen = append(seen, filepath.Base(path))
		}
		return nil
	})
	require.NoError(t, err)
	assert.NotContains(t, seen, "inside.go")
}

func TestShouldSkipDirectory(t *testing.T) {
	assert.True(t, ShouldSkipDirectory("node_modules"))
	assert.True(t, ShouldSkipDirectory("target"))
	assert.True(t, ShouldSkipDirectory(".cache"))
	assert.False(t, ShouldSkipDirectory("src"))
	assert.False(t, ShouldSkipDirectory("."))
}