package store

import (
	roaring "github.com/RoaringBitmap/roaring"
)

// RootIno is the inode number reserved for "/".
const RootIno uint64 = 1

// InodeTable hands out inode numbers and tracks which are live in a roaring
// bitmap. Inode numbers are never reused, so a record restored by undo keeps
// its original number without colliding with anything allocated since.
type InodeTable struct {
	live *roaring.Bitmap
	next uint64
}

// NewInodeTable creates a table with the root inode already live.
func NewInodeTable() *InodeTable {
	t := &InodeTable{live: roaring.New(), next: RootIno + 1}
	t.live.Add(uint32(RootIno))
	return t
}

// Allocate returns a fresh inode number and marks it live.
func (t *InodeTable) Allocate() uint64 {
	ino := t.next
	t.next++
	t.live.Add(uint32(ino))
	return ino
}

// Mark flags ino as live, e.g. when a captured record is put back.
func (t *InodeTable) Mark(ino uint64) {
	if ino == 0 {
		return
	}
	t.live.Add(uint32(ino))
	if ino >= t.next {
		t.next = ino + 1
	}
}

// Release flags ino as free.
func (t *InodeTable) Release(ino uint64) {
	t.live.Remove(uint32(ino))
}

// Contains reports whether ino is live.
func (t *InodeTable) Contains(ino uint64) bool {
	return t.live.Contains(uint32(ino))
}

// Live returns the number of live inodes.
func (t *InodeTable) Live() uint64 {
	return t.live.GetCardinality()
}
