// Package collect finds test files written in a non-native test syntax so
// a host test runner can pick them up.
package collect

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	DefaultPrefix    = "test_"
	DefaultExtension = ".hy"
)

// Module is a collected test file.
type Module struct {
	// Path is the file path as given to Match, or relative to the walk root.
	Path string `json:"path"`
	// Name is the file name without its extension.
	Name string `json:"name"`
}

type Collector struct {
	Prefix    string
	Extension string
}

// Match returns a module for fileName when it starts with the test prefix
// and fileExtension is the recognized suffix. Otherwise it returns false so
// the host runner's default discovery applies.
func (c *Collector) Match(fileName, fileExtension string) (*Module, bool) {
	base := filepath.Base(fileName)
	if !strings.HasPrefix(base, c.prefix()) {
		return nil, false
	}
	if fileExtension != c.extension() {
		return nil, false
	}
	return &Module{
		Path: fileName,
		Name: strings.TrimSuffix(base, fileExtension),
	}, true
}

// Walk returns every matching module under root, sorted by path.
func (c *Collector) Walk(root string) ([]*Module, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	pattern := "**/" + escapeMeta(c.prefix()) + "*" + escapeMeta(c.extension())
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", root, err)
	}

	var modules []*Module
	for _, m := range matches {
		if mod, ok := c.Match(filepath.FromSlash(m), path.Ext(m)); ok {
			modules = append(modules, mod)
		}
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Path < modules[j].Path
	})

	return modules, nil
}

func (c *Collector) prefix() string {
	if c.Prefix == "" {
		return DefaultPrefix
	}
	return c.Prefix
}

func (c *Collector) extension() string {
	if c.Extension == "" {
		return DefaultExtension
	}
	return c.Extension
}

// escapeMeta quotes glob metacharacters so a configured prefix or extension
// is matched literally.
func escapeMeta(s string) string {
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(`*?[]{}\`, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
