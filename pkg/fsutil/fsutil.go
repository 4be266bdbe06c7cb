// Package fsutil provides the minimal filesystem capability the dependency
// walker consumes: existence checks and whole-file reads.
package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of entries kept by each OS cache.
const DefaultCacheSize = 4096

// FS is the filesystem capability used by resolvers and the traversal engine.
// Paths are absolute.
type FS interface {
	// Exists reports whether path names a regular file.
	Exists(path string) bool
	// IsDir reports whether path names a directory.
	IsDir(path string) bool
	// ReadFile returns the contents of the file at path.
	ReadFile(path string) ([]byte, error)
}

type statKind uint8

const (
	kindMissing statKind = iota
	kindFile
	kindDir
)

type readResult struct {
	data []byte
	err  error
}

// OS implements FS on the host filesystem. Stat results and file contents
// are memoized in LRU caches, including failures: a file that could not be
// read once is not retried for the lifetime of the cache.
type OS struct {
	stats    *lru.Cache[string, statKind]
	contents *lru.Cache[string, readResult]
}

// NewOS creates an OS filesystem whose caches hold up to size entries.
// If size <= 0, DefaultCacheSize is used.
func NewOS(size int) *OS {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes.
	stats, _ := lru.New[string, statKind](size)
	contents, _ := lru.New[string, readResult](size)
	return &OS{stats: stats, contents: contents}
}

func (o *OS) stat(path string) statKind {
	if k, ok := o.stats.Get(path); ok {
		return k
	}
	// Use "stat", not "lstat", to follow symbolic links.
	k := kindMissing
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			k = kindDir
		} else {
			k = kindFile
		}
	}
	o.stats.Add(path, k)
	return k
}

// Exists reports whether path is a regular file.
func (o *OS) Exists(path string) bool {
	return o.stat(path) == kindFile
}

// IsDir reports whether path is a directory.
func (o *OS) IsDir(path string) bool {
	return o.stat(path) == kindDir
}

// ReadFile reads and caches the contents of path.
func (o *OS) ReadFile(path string) ([]byte, error) {
	if r, ok := o.contents.Get(path); ok {
		return r.data, r.err
	}
	data, err := os.ReadFile(path)
	o.contents.Add(path, readResult{data: data, err: err})
	return data, err
}

// Purge drops every cached stat and content entry.
func (o *OS) Purge() {
	o.stats.Purge()
	o.contents.Purge()
}

// MapFS is an in-memory FS keyed by cleaned absolute path. Directories are
// implied by the files beneath them.
type MapFS map[string]string

// Exists reports whether path is a file in the map.
func (m MapFS) Exists(path string) bool {
	_, ok := m[filepath.Clean(path)]
	return ok
}

// IsDir reports whether any file in the map lives beneath path.
func (m MapFS) IsDir(path string) bool {
	prefix := filepath.Clean(path) + string(filepath.Separator)
	for p := range m {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// ReadFile returns the mapped contents of path.
func (m MapFS) ReadFile(path string) ([]byte, error) {
	contents, ok := m[filepath.Clean(path)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(contents), nil
}

// Paths returns the mapped file paths in sorted order.
func (m MapFS) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
