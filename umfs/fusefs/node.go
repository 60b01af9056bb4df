// Package fusefs exposes the in-memory filesystem through FUSE. Nodes carry
// no state of their own: every request resolves the node's absolute path
// and is delegated to the operation interface, so changes made by undo and
// redo are visible on the next lookup.
package fusefs

import (
	"context"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/interfaces"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"
)

// Linux xattr flags for setxattr(2).
const (
	xattrCreate  = 0x1
	xattrReplace = 0x2
)

// Node is one file, directory or symlink in the mounted tree.
type Node struct {
	fs.Inode

	ops    interfaces.Operations
	logger zerolog.Logger
}

var (
	_ fs.NodeLookuper      = (*Node)(nil)
	_ fs.NodeGetattrer     = (*Node)(nil)
	_ fs.NodeSetattrer     = (*Node)(nil)
	_ fs.NodeReaddirer     = (*Node)(nil)
	_ fs.NodeOpener        = (*Node)(nil)
	_ fs.NodeReader        = (*Node)(nil)
	_ fs.NodeWriter        = (*Node)(nil)
	_ fs.NodeCreater       = (*Node)(nil)
	_ fs.NodeMkdirer       = (*Node)(nil)
	_ fs.NodeUnlinker      = (*Node)(nil)
	_ fs.NodeRmdirer       = (*Node)(nil)
	_ fs.NodeRenamer       = (*Node)(nil)
	_ fs.NodeSymlinker     = (*Node)(nil)
	_ fs.NodeReadlinker    = (*Node)(nil)
	_ fs.NodeGetxattrer    = (*Node)(nil)
	_ fs.NodeSetxattrer    = (*Node)(nil)
	_ fs.NodeListxattrer   = (*Node)(nil)
	_ fs.NodeRemovexattrer = (*Node)(nil)
	_ fs.NodeStatfser      = (*Node)(nil)
)

// NewRoot creates the root node serving ops.
func NewRoot(ops interfaces.Operations, logger zerolog.Logger) *Node {
	return &Node{ops: ops, logger: logger.With().Str("component", "fusefs").Logger()}
}

// fullPath returns the absolute path of n inside the mount.
func (n *Node) fullPath() string {
	return "/" + n.Path(nil)
}

func (n *Node) childPath(name string) string {
	return path.Join(n.fullPath(), name)
}

func (n *Node) newChild(ctx context.Context, attr store.Attr) *fs.Inode {
	child := &Node{ops: n.ops, logger: n.logger}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: attr.Type(), Ino: attr.Ino})
}

// entry looks p up and fills out for a freshly created or found child.
func (n *Node) entry(ctx context.Context, p string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	attr, err := n.ops.Getattr(p)
	if err != nil {
		return nil, toErrno(err)
	}
	fillAttr(attr, &out.Attr)
	return n.newChild(ctx, attr), fs.OK
}

func (n *Node) fail(op, p string, err error) syscall.Errno {
	errno := toErrno(err)
	if errno == syscall.EIO {
		n.logger.Error().Err(err).Str("op", op).Str("path", p).Msg("FUSE request failed")
	}
	return errno
}

// Lookup implements fs.NodeLookuper.
func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return n.entry(ctx, n.childPath(name), out)
}

// Getattr implements fs.NodeGetattrer.
func (n *Node) Getattr(ctx context.Context, fh fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := n.ops.Getattr(n.fullPath())
	if err != nil {
		return toErrno(err)
	}
	fillAttr(attr, &out.Attr)
	return fs.OK
}

// Setattr applies truncate, chmod, chown and utimens in that order, each as
// its own operation.
func (n *Node) Setattr(ctx context.Context, fh fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	p := n.fullPath()

	if size, ok := in.GetSize(); ok {
		if err := n.ops.Truncate(p, int64(size)); err != nil {
			return n.fail(types.OpTruncate, p, err)
		}
	}
	if mode, ok := in.GetMode(); ok {
		if err := n.ops.Chmod(p, mode); err != nil {
			return n.fail(types.OpChmod, p, err)
		}
	}

	uid, uidOK := in.GetUID()
	gid, gidOK := in.GetGID()
	atime, atimeOK := in.GetATime()
	mtime, mtimeOK := in.GetMTime()
	if uidOK || gidOK || atimeOK || mtimeOK {
		cur, err := n.ops.Getattr(p)
		if err != nil {
			return toErrno(err)
		}
		if uidOK || gidOK {
			if !uidOK {
				uid = cur.Uid
			}
			if !gidOK {
				gid = cur.Gid
			}
			if err := n.ops.Chown(p, uid, gid); err != nil {
				return n.fail(types.OpChown, p, err)
			}
		}
		if atimeOK || mtimeOK {
			if !atimeOK {
				atime = cur.Atime
			}
			if !mtimeOK {
				mtime = cur.Mtime
			}
			if err := n.ops.Utimens(p, &types.Times{Atime: atime, Mtime: mtime}); err != nil {
				return n.fail(types.OpUtimens, p, err)
			}
		}
	}

	return n.Getattr(ctx, fh, out)
}

// Readdir implements fs.NodeReaddirer.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	p := n.fullPath()
	names, err := n.ops.Readdir(p)
	if err != nil {
		return nil, toErrno(err)
	}

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		attr, err := n.ops.Getattr(path.Join(p, name))
		if err != nil {
			// Removed between listing and stat
			continue
		}
		entries = append(entries, fuse.DirEntry{Name: name, Mode: attr.Type(), Ino: attr.Ino})
	}
	return fs.NewListDirStream(entries), fs.OK
}

// Open implements fs.NodeOpener. No handle state is kept, reads and writes
// go through the node, and direct IO keeps the page cache out of the way of
// undo.
func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if _, err := n.ops.Open(n.fullPath(), flags); err != nil {
		return nil, 0, toErrno(err)
	}
	return nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

// Read implements fs.NodeReader.
func (n *Node) Read(ctx context.Context, fh fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.ops.Read(n.fullPath(), len(dest), off)
	if err != nil {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(data), fs.OK
}

// Write implements fs.NodeWriter.
func (n *Node) Write(ctx context.Context, fh fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	p := n.fullPath()
	written, err := n.ops.Write(p, data, off)
	if err != nil {
		return 0, n.fail(types.OpWrite, p, err)
	}
	return uint32(written), fs.OK
}

// Create implements fs.NodeCreater.
func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := n.childPath(name)
	if _, err := n.ops.Create(p, mode); err != nil {
		return nil, nil, 0, n.fail(types.OpCreate, p, err)
	}
	child, errno := n.entry(ctx, p, out)
	if errno != fs.OK {
		return nil, nil, 0, errno
	}
	return child, nil, fuse.FOPEN_DIRECT_IO, fs.OK
}

// Mkdir implements fs.NodeMkdirer.
func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.childPath(name)
	if err := n.ops.Mkdir(p, mode); err != nil {
		return nil, n.fail(types.OpMkdir, p, err)
	}
	return n.entry(ctx, p, out)
}

// Unlink implements fs.NodeUnlinker.
func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	p := n.childPath(name)
	return n.fail(types.OpUnlink, p, n.ops.Unlink(p))
}

// Rmdir implements fs.NodeRmdirer.
func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	p := n.childPath(name)
	return n.fail(types.OpRmdir, p, n.ops.Rmdir(p))
}

// Rename implements fs.NodeRenamer. RENAME_EXCHANGE and RENAME_NOREPLACE
// are not supported.
func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	if flags != 0 {
		return syscall.EINVAL
	}
	oldPath := n.childPath(name)
	newPath := path.Join("/"+newParent.EmbeddedInode().Path(nil), newName)
	return n.fail(types.OpRename, oldPath, n.ops.Rename(oldPath, newPath))
}

// Symlink implements fs.NodeSymlinker.
func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.childPath(name)
	if err := n.ops.Symlink(p, target); err != nil {
		return nil, n.fail(types.OpSymlink, p, err)
	}
	return n.entry(ctx, p, out)
}

// Readlink implements fs.NodeReadlinker.
func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.ops.Readlink(n.fullPath())
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), fs.OK
}

// Getxattr implements fs.NodeGetxattrer. A short dest gets ERANGE and the
// required size.
func (n *Node) Getxattr(ctx context.Context, attr string, dest []byte) (uint32, syscall.Errno) {
	value, err := n.ops.Getxattr(n.fullPath(), attr)
	if err != nil {
		return 0, toErrno(err)
	}
	if len(dest) < len(value) {
		return uint32(len(value)), syscall.ERANGE
	}
	return uint32(copy(dest, value)), fs.OK
}

// Setxattr implements fs.NodeSetxattrer.
func (n *Node) Setxattr(ctx context.Context, attr string, data []byte, flags uint32) syscall.Errno {
	p := n.fullPath()
	if flags&(xattrCreate|xattrReplace) != 0 {
		_, err := n.ops.Getxattr(p, attr)
		exists := err == nil
		switch {
		case flags&xattrCreate != 0 && exists:
			return syscall.EEXIST
		case flags&xattrReplace != 0 && !exists:
			return syscall.ENODATA
		}
	}
	return n.fail(types.OpSetxattr, p, n.ops.Setxattr(p, attr, data))
}

// Listxattr implements fs.NodeListxattrer.
func (n *Node) Listxattr(ctx context.Context, dest []byte) (uint32, syscall.Errno) {
	names, err := n.ops.Listxattr(n.fullPath())
	if err != nil {
		return 0, toErrno(err)
	}
	buf := encodeXattrNames(names)
	if len(dest) < len(buf) {
		return uint32(len(buf)), syscall.ERANGE
	}
	return uint32(copy(dest, buf)), fs.OK
}

// Removexattr implements fs.NodeRemovexattrer.
func (n *Node) Removexattr(ctx context.Context, attr string) syscall.Errno {
	p := n.fullPath()
	if _, err := n.ops.Getxattr(p, attr); err != nil {
		return toErrno(err)
	}
	return n.fail(types.OpRemovexattr, p, n.ops.Removexattr(p, attr))
}

// Statfs implements fs.NodeStatfser.
func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	st, err := n.ops.Statfs(n.fullPath())
	if err != nil {
		return toErrno(err)
	}
	fillStatfs(st, out)
	return fs.OK
}

// fillAttr copies a record into the kernel's attribute layout.
func fillAttr(attr store.Attr, out *fuse.Attr) {
	out.Ino = attr.Ino
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	out.Owner = fuse.Owner{Uid: attr.Uid, Gid: attr.Gid}
	out.Size = uint64(max(attr.Size, 0))
	out.Blksize = 512
	out.Blocks = (out.Size + 511) / 512
	atime, mtime, ctime := attr.Atime, attr.Mtime, attr.Ctime
	out.SetTimes(&atime, &mtime, &ctime)
}

func fillStatfs(st types.Statfs, out *fuse.StatfsOut) {
	out.Bsize = st.BlockSize
	out.Frsize = st.BlockSize
	out.Blocks = st.Blocks
	out.Bfree = st.BlocksFree
	out.Bavail = st.BlocksAvailable
	out.Files = st.Files
	out.Ffree = st.FilesFree
	out.NameLen = st.NameMax
}

// encodeXattrNames joins names the way listxattr(2) returns them: each name
// followed by a NUL byte.
func encodeXattrNames(names []string) []byte {
	if len(names) == 0 {
		return nil
	}
	return []byte(strings.Join(names, "\x00") + "\x00")
}

// zeroTimeout disables kernel entry and attribute caching; undo and redo
// change the tree without the kernel seeing the request.
func zeroTimeout() *time.Duration {
	d := time.Duration(0)
	return &d
}
