package collect

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := map[string]struct {
		fileName  string
		ext       string
		wantMatch bool
		wantName  string
	}{
		"hy test file": {
			fileName:  "test_player.hy",
			ext:       ".hy",
			wantMatch: true,
			wantName:  "test_player",
		},
		"hy test file in directory": {
			fileName:  filepath.Join("tests", "test_map.hy"),
			ext:       ".hy",
			wantMatch: true,
			wantName:  "test_map",
		},
		"python test defers to host": {
			fileName: "test_player.py",
			ext:      ".py",
		},
		"hy file without prefix": {
			fileName: "player.hy",
			ext:      ".hy",
		},
		"prefix must start the base name": {
			fileName: "my_test_player.hy",
			ext:      ".hy",
		},
		"prefix on directory only": {
			fileName: filepath.Join("test_dir", "player.hy"),
			ext:      ".hy",
		},
	}

	c := &Collector{}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			m, ok := c.Match(tc.fileName, tc.ext)
			assert.Equal(t, tc.wantMatch, ok)
			if !tc.wantMatch {
				assert.Nil(t, m)
				return
			}
			require.NotNil(t, m)
			assert.Equal(t, tc.fileName, m.Path)
			assert.Equal(t, tc.wantName, m.Name)
		})
	}
}

func TestMatchCustom(t *testing.T) {
	c := &Collector{Prefix: "spec_", Extension: ".star"}

	m, ok := c.Match("spec_parse.star", ".star")
	require.True(t, ok)
	assert.Equal(t, "spec_parse", m.Name)

	_, ok = c.Match("test_parse.hy", ".hy")
	assert.False(t, ok)
}

func touch(t *testing.T, root string, rel ...string) {
	t.Helper()
	for _, r := range rel {
		path := filepath.Join(root, filepath.FromSlash(r))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"test_top.hy",
		"tests/test_b.hy",
		"tests/test_a.hy",
		"tests/deep/nested/test_c.hy",
		"tests/helper.hy",
		"tests/test_py.py",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tests", "test_dir.hy"), 0o755))

	modules, err := (&Collector{}).Walk(root)
	require.NoError(t, err)

	var paths []string
	for _, m := range modules {
		paths = append(paths, filepath.ToSlash(m.Path))
	}
	assert.Equal(t, []string{
		"test_top.hy",
		"tests/deep/nested/test_c.hy",
		"tests/test_a.hy",
		"tests/test_b.hy",
	}, paths)
}

func TestWalkEmpty(t *testing.T) {
	modules, err := (&Collector{}).Walk(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, modules)
}

func TestWalkNotDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "file.txt")

	_, err := (&Collector{}).Walk(filepath.Join(root, "file.txt"))
	assert.Error(t, err)

	_, err = (&Collector{}).Walk(filepath.Join(root, "missing"))
	assert.Error(t, err)
}
