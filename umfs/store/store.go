// Package store holds the in-memory metadata and content of the filesystem.
//
// Every mutation replaces a whole record (or a whole content slice) rather
// than patching it in place, which keeps the capture-before/replace pattern
// used for undo trivially invertible.
package store

// Entry is a captured path: its record plus content, if it has any.
type Entry struct {
	Attr       Attr   `json:"attr"`
	Content    []byte `json:"content,omitempty"`
	HasContent bool   `json:"has_content"`
}

// Clone deep-copies the entry.
func (e Entry) Clone() Entry {
	c := Entry{Attr: e.Attr.Clone(), HasContent: e.HasContent}
	if e.HasContent {
		c.Content = cloneBytes(e.Content)
	}
	return c
}

// Store bundles the metadata index, the content map and the inode table.
type Store struct {
	Meta    *MetadataStore
	Content *ContentStore
	Inodes  *InodeTable
}

// New creates a store holding only the root directory described by root.
// The root's inode, type bits and a minimum link count of 2 are enforced.
func New(root Attr) *Store {
	s := &Store{
		Meta:    NewMetadataStore(),
		Content: NewContentStore(),
		Inodes:  NewInodeTable(),
	}
	root.Ino = RootIno
	root.Mode = ModeDir | (root.Mode & ModePermMask)
	if root.Nlink < 2 {
		root.Nlink = 2
	}
	s.Meta.Set("/", root)
	s.RecomputeRootSize()
	return s
}

// Capture returns a deep copy of the record and content at p.
func (s *Store) Capture(p string) (Entry, bool) {
	attr, ok := s.Meta.Get(p)
	if !ok {
		return Entry{}, false
	}
	e := Entry{Attr: attr}
	if content, ok := s.Content.Get(p); ok {
		e.Content = content
		e.HasContent = true
	}
	return e, true
}

// Put installs e at p, replacing whatever was there. Content is set when the
// entry carries it and dropped otherwise.
func (s *Store) Put(p string, e Entry) {
	if prev, ok := s.Meta.Get(p); ok && prev.Ino != e.Attr.Ino {
		s.Inodes.Release(prev.Ino)
	}
	s.Meta.Set(p, e.Attr)
	s.Inodes.Mark(e.Attr.Ino)
	if e.HasContent {
		s.Content.Set(p, e.Content)
	} else {
		s.Content.Remove(p)
	}
}

// Delete removes the record and content at p and frees its inode.
func (s *Store) Delete(p string) (Entry, bool) {
	attr, ok := s.Meta.Remove(p)
	if !ok {
		return Entry{}, false
	}
	s.Inodes.Release(attr.Ino)
	e := Entry{Attr: attr}
	if content, ok := s.Content.Remove(p); ok {
		e.Content = content
		e.HasContent = true
	}
	return e, true
}

// RecomputeRootSize stores the aggregate content byte count in the root
// record's size field. This is a diagnostic figure, not POSIX directory size.
func (s *Store) RecomputeRootSize() {
	root, ok := s.Meta.Get("/")
	if !ok {
		return
	}
	total := s.Content.TotalBytes()
	if root.Size == total {
		return
	}
	root.Size = total
	s.Meta.Set("/", root)
}

// Snapshot deep-copies every entry keyed by path.
func (s *Store) Snapshot() map[string]Entry {
	out := make(map[string]Entry, s.Meta.Len())
	s.Meta.Walk(func(p string, attr Attr) bool {
		e := Entry{Attr: attr}
		if content, ok := s.Content.Get(p); ok {
			e.Content = content
			e.HasContent = true
		}
		out[p] = e
		return false
	})
	return out
}
