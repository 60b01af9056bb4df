package store

import (
	"path"
	"strings"

	"github.com/armon/go-radix"
)

// MetadataStore maps absolute paths to attribute records using a compressed
// trie (patricia tree), so readdir and subtree moves are prefix walks.
//
// Records are copied on the way in and on the way out; callers never hold a
// reference into the index. The store does no locking of its own: the owning
// filesystem serializes writers and lets readers share.
type MetadataStore struct {
	tree *radix.Tree
}

// NewMetadataStore creates an empty metadata index
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{tree: radix.New()}
}

// Get returns a copy of the record stored at p.
func (ms *MetadataStore) Get(p string) (Attr, bool) {
	v, ok := ms.tree.Get(NormalizePath(p))
	if !ok {
		return Attr{}, false
	}
	return v.(Attr).Clone(), true
}

// Has reports whether p has a record.
func (ms *MetadataStore) Has(p string) bool {
	_, ok := ms.tree.Get(NormalizePath(p))
	return ok
}

// Set replaces the record at p wholesale. It reports whether a record was
// already present.
func (ms *MetadataStore) Set(p string, attr Attr) bool {
	_, updated := ms.tree.Insert(NormalizePath(p), attr.Clone())
	return updated
}

// Remove deletes the record at p and returns what was stored.
func (ms *MetadataStore) Remove(p string) (Attr, bool) {
	v, ok := ms.tree.Delete(NormalizePath(p))
	if !ok {
		return Attr{}, false
	}
	return v.(Attr), true
}

// Len returns the number of records, root included.
func (ms *MetadataStore) Len() int {
	return ms.tree.Len()
}

// Children returns the base names of the direct children of dir, in
// lexical order.
func (ms *MetadataStore) Children(dir string) []string {
	prefix := childPrefix(NormalizePath(dir))

	var names []string
	ms.tree.WalkPrefix(prefix, func(key string, _ interface{}) bool {
		rest := strings.TrimPrefix(key, prefix)
		if rest != "" && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
		return false
	})
	return names
}

// HasChildren reports whether any record lives below dir.
func (ms *MetadataStore) HasChildren(dir string) bool {
	prefix := childPrefix(NormalizePath(dir))
	found := false
	ms.tree.WalkPrefix(prefix, func(key string, _ interface{}) bool {
		if key != prefix {
			found = true
		}
		return found
	})
	return found
}

// Subtree returns p followed by every descendant path, parents before
// children.
func (ms *MetadataStore) Subtree(p string) []string {
	p = NormalizePath(p)
	if p == "/" {
		var all []string
		ms.tree.Walk(func(key string, _ interface{}) bool {
			all = append(all, key)
			return false
		})
		return all
	}

	var paths []string
	if _, ok := ms.tree.Get(p); ok {
		paths = append(paths, p)
	}
	ms.tree.WalkPrefix(p+"/", func(key string, _ interface{}) bool {
		paths = append(paths, key)
		return false
	})
	return paths
}

// Walk visits every record in lexical path order until fn returns true.
func (ms *MetadataStore) Walk(fn func(p string, attr Attr) bool) {
	ms.tree.Walk(func(key string, v interface{}) bool {
		return fn(key, v.(Attr).Clone())
	})
}

// NormalizePath cleans p into the canonical absolute, slash-separated key
// used by every store.
func NormalizePath(p string) string {
	normalized := strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	return path.Clean(normalized)
}

// ParentPath returns the directory holding p. The parent of "/" is "/".
func ParentPath(p string) string {
	return path.Dir(NormalizePath(p))
}

// BaseName returns the final element of p.
func BaseName(p string) string {
	return path.Base(NormalizePath(p))
}

func childPrefix(dir string) string {
	if dir == "/" {
		return "/"
	}
	return dir + "/"
}
