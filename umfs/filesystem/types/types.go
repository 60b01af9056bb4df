package types

import (
	"time"
)

// Times carries the access and modification times for utimens.
type Times struct {
	Atime time.Time `json:"atime"`
	Mtime time.Time `json:"mtime"`
}

// Statfs is the filesystem summary reported by statfs.
type Statfs struct {
	BlockSize       uint32 `json:"f_bsize"`
	Blocks          uint64 `json:"f_blocks"`
	BlocksFree      uint64 `json:"f_bfree"`
	BlocksAvailable uint64 `json:"f_bavail"`
	Files           uint64 `json:"f_files"`
	FilesFree       uint64 `json:"f_ffree"`
	NameMax         uint32 `json:"f_namemax"`
}

// StatfsConfig holds the static figures statfs reports and the largest
// file size truncate and write accept.
type StatfsConfig struct {
	BlockSize       uint32
	Blocks          uint64
	BlocksAvailable uint64
	MaxFiles        uint64
	MaxFileSize     int64
}

// Operation names, shared by logs, metrics and batch labels.
const (
	OpCreate      = "create"
	OpOpen        = "open"
	OpRead        = "read"
	OpWrite       = "write"
	OpTruncate    = "truncate"
	OpRename      = "rename"
	OpMkdir       = "mkdir"
	OpRmdir       = "rmdir"
	OpSymlink     = "symlink"
	OpReadlink    = "readlink"
	OpUnlink      = "unlink"
	OpChmod       = "chmod"
	OpChown       = "chown"
	OpUtimens     = "utimens"
	OpGetattr     = "getattr"
	OpGetxattr    = "getxattr"
	OpSetxattr    = "setxattr"
	OpListxattr   = "listxattr"
	OpRemovexattr = "removexattr"
	OpStatfs      = "statfs"
	OpReaddir     = "readdir"
	OpUndo        = "undo"
	OpRedo        = "redo"
)
