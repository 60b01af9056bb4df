package interfaces

import (
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"
)

// Operations is the contract consumed by the mount bridge. Every mutating
// call records exactly one journal batch; read-only calls record nothing.
type Operations interface {
	// File operations
	Create(path string, mode uint32) (uint64, error)
	Open(path string, flags uint32) (uint64, error)
	Read(path string, size int, offset int64) ([]byte, error)
	Write(path string, data []byte, offset int64) (int, error)
	Truncate(path string, length int64) error
	Unlink(path string) error
	Rename(oldPath, newPath string) error

	// Directory operations
	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Readdir(path string) ([]string, error)

	// Symlinks: path is the new link, target is what it points at
	Symlink(path, target string) error
	Readlink(path string) (string, error)

	// Attribute operations
	Getattr(path string) (store.Attr, error)
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid uint32) error
	Utimens(path string, times *types.Times) error

	// Extended attributes
	Getxattr(path, name string) ([]byte, error)
	Setxattr(path, name string, value []byte) error
	Listxattr(path string) ([]string, error)
	Removexattr(path, name string) error

	Statfs(path string) (types.Statfs, error)
}

// JournalControl is the surface the undo shell drives.
type JournalControl interface {
	Undo() (journal.Batch, error)
	Redo() (journal.Batch, error)
	History() journal.History
	// Group runs fn and folds every batch it produced into one undo unit.
	Group(label string, fn func() error) error
}

// UndoFileSystem is the full in-memory filesystem with its journal.
type UndoFileSystem interface {
	Operations
	JournalControl
}
