package store

import (
	"maps"
	"slices"
	"time"
)

// File type bits, laid out like st_mode.
const (
	ModeTypeMask uint32 = 0o170000
	ModeDir      uint32 = 0o040000
	ModeRegular  uint32 = 0o100000
	ModeSymlink  uint32 = 0o120000
	ModePermMask uint32 = 0o7777
)

// Attr is the attribute record kept for every path, the in-memory analog of an inode.
type Attr struct {
	Ino    uint64            `json:"ino"`
	Mode   uint32            `json:"mode"`
	Nlink  uint32            `json:"nlink"`
	Uid    uint32            `json:"uid"`
	Gid    uint32            `json:"gid"`
	Size   int64             `json:"size"`
	Ctime  time.Time         `json:"ctime"`
	Mtime  time.Time         `json:"mtime"`
	Atime  time.Time         `json:"atime"`
	Xattrs map[string][]byte `json:"xattrs,omitempty"`
}

// Clone returns a deep copy. A nil xattr map stays nil.
func (a Attr) Clone() Attr {
	c := a
	if a.Xattrs != nil {
		c.Xattrs = make(map[string][]byte, len(a.Xattrs))
		for name, value := range a.Xattrs {
			c.Xattrs[name] = slices.Clone(value)
		}
	}
	return c
}

// Type returns only the file type bits of Mode.
func (a Attr) Type() uint32 { return a.Mode & ModeTypeMask }

// Perm returns only the permission bits of Mode.
func (a Attr) Perm() uint32 { return a.Mode & ModePermMask }

func (a Attr) IsDir() bool     { return a.Type() == ModeDir }
func (a Attr) IsRegular() bool { return a.Type() == ModeRegular }
func (a Attr) IsSymlink() bool { return a.Type() == ModeSymlink }

// HasContent reports whether paths of this type carry a content entry.
func (a Attr) HasContent() bool { return a.IsRegular() || a.IsSymlink() }

// XattrNames returns the extended attribute names in sorted order.
func (a Attr) XattrNames() []string {
	return slices.Sorted(maps.Keys(a.Xattrs))
}

// NodeTypeString names the file type for diagnostics.
func (a Attr) NodeTypeString() string {
	switch a.Type() {
	case ModeDir:
		return "directory"
	case ModeRegular:
		return "file"
	case ModeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}
