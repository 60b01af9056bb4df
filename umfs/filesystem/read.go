package filesystem

import (
	"fmt"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"
)

// nameMax is the longest single path component statfs advertises.
const nameMax = 255

// inspect runs a read-only operation under the shared lock. Nothing it does
// reaches the journal.
func (fs *FileSystem) inspect(op, rawPath string, fn func(p string) error) error {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	p, err := resolve(op, rawPath)
	if err == nil {
		err = common.WrapError(op, p, fn(p))
	}
	fs.observe(op, rawPath, err)
	return err
}

// Open returns a new handle for an existing path. Handles are counters only;
// no per-handle state is kept.
func (fs *FileSystem) Open(path string, flags uint32) (uint64, error) {
	err := fs.inspect(types.OpOpen, path, func(p string) error {
		_, err := fs.requireAttr(p)
		return err
	})
	if err != nil {
		return 0, err
	}
	return fs.handles.Add(1), nil
}

// Read returns up to size bytes of the file starting at offset. Reading at or
// past the end returns an empty slice.
func (fs *FileSystem) Read(path string, size int, offset int64) ([]byte, error) {
	var out []byte
	err := fs.inspect(types.OpRead, path, func(p string) error {
		if offset < 0 || size < 0 {
			return fmt.Errorf("%w: negative offset or size", common.ErrInvalidPath)
		}
		e, err := fs.requireFile(p)
		if err != nil {
			return err
		}
		out = []byte{}
		if offset >= int64(len(e.Content)) {
			return nil
		}
		end := min(offset+int64(size), int64(len(e.Content)))
		out = e.Content[offset:end]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Readdir lists ".", ".." and the names of the direct children of a directory.
func (fs *FileSystem) Readdir(path string) ([]string, error) {
	var names []string
	err := fs.inspect(types.OpReaddir, path, func(p string) error {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return err
		}
		if !attr.IsDir() {
			return common.ErrNotDirectory
		}
		names = append([]string{".", ".."}, fs.store.Meta.Children(p)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Readlink returns the target of a symbolic link.
func (fs *FileSystem) Readlink(path string) (string, error) {
	var target string
	err := fs.inspect(types.OpReadlink, path, func(p string) error {
		e, ok := fs.store.Capture(p)
		if !ok {
			return common.ErrNotFound
		}
		if !e.Attr.IsSymlink() {
			return fmt.Errorf("%w: not a symbolic link", common.ErrInvalidPath)
		}
		target = string(e.Content)
		return nil
	})
	return target, err
}

// Getattr returns a copy of the record at path.
func (fs *FileSystem) Getattr(path string) (store.Attr, error) {
	var attr store.Attr
	err := fs.inspect(types.OpGetattr, path, func(p string) error {
		var err error
		attr, err = fs.requireAttr(p)
		return err
	})
	return attr, err
}

// Getxattr returns one extended attribute, or ErrNoData when it is unset.
func (fs *FileSystem) Getxattr(path, name string) ([]byte, error) {
	var value []byte
	err := fs.inspect(types.OpGetxattr, path, func(p string) error {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return err
		}
		v, ok := attr.Xattrs[name]
		if !ok {
			return common.ErrNoData
		}
		value = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Listxattr returns the sorted extended attribute names of path.
func (fs *FileSystem) Listxattr(path string) ([]string, error) {
	var names []string
	err := fs.inspect(types.OpListxattr, path, func(p string) error {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return err
		}
		names = attr.XattrNames()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// Statfs reports the configured block figures and the live inode count.
func (fs *FileSystem) Statfs(path string) (types.Statfs, error) {
	var st types.Statfs
	err := fs.inspect(types.OpStatfs, path, func(p string) error {
		if _, err := fs.requireAttr(p); err != nil {
			return err
		}
		live := fs.store.Inodes.Live()
		var free uint64
		if fs.statfs.MaxFiles > live {
			free = fs.statfs.MaxFiles - live
		}
		st = types.Statfs{
			BlockSize:       fs.statfs.BlockSize,
			Blocks:          fs.statfs.Blocks,
			BlocksFree:      fs.statfs.BlocksAvailable,
			BlocksAvailable: fs.statfs.BlocksAvailable,
			Files:           live,
			FilesFree:       free,
			NameMax:         nameMax,
		}
		return nil
	})
	return st, err
}
