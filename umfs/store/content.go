package store

import "slices"

// ContentStore maps paths to byte content for regular files and symlinks.
// Like MetadataStore it copies on every boundary and relies on the owner for
// synchronization.
type ContentStore struct {
	data  map[string][]byte
	total int64
}

// NewContentStore creates an empty content store
func NewContentStore() *ContentStore {
	return &ContentStore{data: make(map[string][]byte)}
}

// Get returns a copy of the content at p.
func (cs *ContentStore) Get(p string) ([]byte, bool) {
	b, ok := cs.data[NormalizePath(p)]
	if !ok {
		return nil, false
	}
	return cloneBytes(b), true
}

// Len returns the content length at p without copying.
func (cs *ContentStore) Len(p string) int64 {
	return int64(len(cs.data[NormalizePath(p)]))
}

// Set replaces the content at p.
func (cs *ContentStore) Set(p string, content []byte) {
	p = NormalizePath(p)
	cs.total -= int64(len(cs.data[p]))
	cs.data[p] = cloneBytes(content)
	cs.total += int64(len(content))
}

// Remove drops the content at p, returning what was stored.
func (cs *ContentStore) Remove(p string) ([]byte, bool) {
	p = NormalizePath(p)
	b, ok := cs.data[p]
	if !ok {
		return nil, false
	}
	delete(cs.data, p)
	cs.total -= int64(len(b))
	return b, true
}

// TotalBytes is the sum of all content lengths.
func (cs *ContentStore) TotalBytes() int64 {
	return cs.total
}

// Count returns the number of content entries.
func (cs *ContentStore) Count() int {
	return len(cs.data)
}

// cloneBytes copies b, turning nil into an empty non-nil slice so that
// "present but empty" survives a round trip.
func cloneBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return slices.Clone(b)
}
