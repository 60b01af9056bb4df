package filesystem

import (
	"fmt"
	"slices"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"
)

// planFunc inspects the store for the normalized path p and returns the
// batch to record. A nil builder with a nil error means there is nothing to
// change and nothing is recorded.
type planFunc func(p string) (*journal.Builder, error)

// mutate runs one recorded operation: it validates the path, builds the
// batch under the write lock, executes the batch's redo steps and pushes it
// onto the journal. Nothing is recorded when planning fails.
func (fs *FileSystem) mutate(op, rawPath string, plan planFunc) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	err := fs.mutateLocked(op, rawPath, plan)
	fs.observe(op, rawPath, err)
	return err
}

func (fs *FileSystem) mutateLocked(op, rawPath string, plan planFunc) error {
	p, err := resolve(op, rawPath)
	if err != nil {
		return err
	}
	bb, err := plan(p)
	if err != nil {
		return common.WrapError(op, p, err)
	}
	if bb == nil {
		return nil
	}
	return common.WrapError(op, p, fs.commit(bb.Build()))
}

// newAttr builds the record for a fresh entry owned by the filesystem owner.
func (fs *FileSystem) newAttr(mode uint32, nlink uint32) store.Attr {
	now := fs.now()
	return store.Attr{
		Ino:   fs.store.Inodes.Allocate(),
		Mode:  mode,
		Nlink: nlink,
		Uid:   fs.uid,
		Gid:   fs.gid,
		Ctime: now,
		Mtime: now,
		Atime: now,
	}
}

// requireVacant checks that p is free and its parent is a directory.
func (fs *FileSystem) requireVacant(p string) (string, store.Attr, error) {
	if fs.store.Meta.Has(p) {
		return "", store.Attr{}, common.ErrAlreadyExists
	}
	return fs.requireParentDir(p)
}

// requireFile returns the captured entry at p, rejecting directories.
func (fs *FileSystem) requireFile(p string) (store.Entry, error) {
	e, ok := fs.store.Capture(p)
	if !ok {
		return store.Entry{}, common.ErrNotFound
	}
	if e.Attr.IsDir() {
		return store.Entry{}, common.ErrIsDirectory
	}
	return e, nil
}

func (fs *FileSystem) requireAttr(p string) (store.Attr, error) {
	attr, ok := fs.store.Meta.Get(p)
	if !ok {
		return store.Attr{}, common.ErrNotFound
	}
	return attr, nil
}

// Create makes an empty regular file and returns a new handle.
func (fs *FileSystem) Create(path string, mode uint32) (uint64, error) {
	err := fs.mutate(types.OpCreate, path, func(p string) (*journal.Builder, error) {
		if _, _, err := fs.requireVacant(p); err != nil {
			return nil, err
		}
		entry := store.Entry{
			Attr:       fs.newAttr(store.ModeRegular|(mode&store.ModePermMask), 1),
			Content:    []byte{},
			HasContent: true,
		}
		return journal.NewBatch(types.OpCreate, p).
			Undo(journal.Remove{Path: p}).
			Redo(journal.Restore{Path: p, Entry: entry}), nil
	})
	if err != nil {
		return 0, err
	}
	return fs.handles.Add(1), nil
}

// Mkdir makes an empty directory and adds a link to its parent.
func (fs *FileSystem) Mkdir(path string, mode uint32) error {
	return fs.mutate(types.OpMkdir, path, func(p string) (*journal.Builder, error) {
		parent, _, err := fs.requireVacant(p)
		if err != nil {
			return nil, err
		}
		entry := store.Entry{Attr: fs.newAttr(store.ModeDir|(mode&store.ModePermMask), 2)}
		return journal.NewBatch(types.OpMkdir, p).
			Undo(journal.Rmdir{Path: p}).
			Redo(
				journal.Restore{Path: p, Entry: entry},
				journal.AdjustLinks{Path: parent, Delta: 1},
			), nil
	})
}

// Symlink creates path as a symbolic link whose content is target.
func (fs *FileSystem) Symlink(path, target string) error {
	return fs.mutate(types.OpSymlink, path, func(p string) (*journal.Builder, error) {
		if _, _, err := fs.requireVacant(p); err != nil {
			return nil, err
		}
		attr := fs.newAttr(store.ModeSymlink|0o777, 1)
		attr.Size = int64(len(target))
		entry := store.Entry{Attr: attr, Content: []byte(target), HasContent: true}
		return journal.NewBatch(types.OpSymlink, p).
			Undo(journal.Unlink{Path: p}).
			Redo(journal.Restore{Path: p, Entry: entry}), nil
	})
}

// Unlink removes a file or symlink.
func (fs *FileSystem) Unlink(path string) error {
	return fs.mutate(types.OpUnlink, path, func(p string) (*journal.Builder, error) {
		if p == "/" {
			return nil, common.ErrRootImmutable
		}
		e, err := fs.requireFile(p)
		if err != nil {
			return nil, err
		}
		return journal.NewBatch(types.OpUnlink, p).
			Undo(journal.Restore{Path: p, Entry: e}).
			Redo(journal.Unlink{Path: p}), nil
	})
}

// Rmdir removes an empty directory.
func (fs *FileSystem) Rmdir(path string) error {
	return fs.mutate(types.OpRmdir, path, func(p string) (*journal.Builder, error) {
		if p == "/" {
			return nil, common.ErrRootImmutable
		}
		e, ok := fs.store.Capture(p)
		if !ok {
			return nil, common.ErrNotFound
		}
		if !e.Attr.IsDir() {
			return nil, common.ErrNotDirectory
		}
		if fs.store.Meta.HasChildren(p) {
			return nil, common.ErrNotEmpty
		}
		parent := store.ParentPath(p)
		parentAttr, err := fs.requireAttr(parent)
		if err != nil {
			return nil, err
		}
		return journal.NewBatch(types.OpRmdir, p).
			Undo(
				journal.Restore{Path: p, Entry: e},
				journal.SetLinks{Path: parent, Nlink: parentAttr.Nlink},
			).
			Redo(journal.Rmdir{Path: p}), nil
	})
}

// Rename moves oldPath to newPath. A directory carries its whole subtree
// with it. An existing entry at newPath is replaced when the types agree
// and, for directories, it is empty.
func (fs *FileSystem) Rename(oldPath, newPath string) error {
	return fs.mutate(types.OpRename, oldPath, func(from string) (*journal.Builder, error) {
		to, err := resolve(types.OpRename, newPath)
		if err != nil {
			return nil, err
		}
		plan, err := fs.planRename(from, to)
		if err != nil {
			return nil, err
		}
		bb := journal.NewBatch(types.OpRename, from).Redo(journal.Rename{Old: from, New: to})
		if plan.noop {
			return bb, nil
		}

		// Undo runs last-to-first: drop the moved entries, bring back the
		// displaced one, restore the originals, then the parent link counts.
		var undo []journal.Step
		if plan.source.IsDir() || (plan.displaced != nil && plan.displaced.Attr.IsDir()) {
			for _, parent := range uniq(plan.oldParent, plan.newParent) {
				attr, err := fs.requireAttr(parent)
				if err != nil {
					return nil, err
				}
				undo = append(undo, journal.SetLinks{Path: parent, Nlink: attr.Nlink})
			}
		}
		for _, sp := range plan.subtree {
			e, _ := fs.store.Capture(sp)
			undo = append(undo, journal.Restore{Path: sp, Entry: e})
		}
		if plan.displaced != nil {
			undo = append(undo, journal.Restore{Path: to, Entry: *plan.displaced})
		}
		for _, sp := range plan.subtree {
			undo = append(undo, journal.Remove{Path: to + sp[len(from):]})
		}
		return bb.Undo(undo...), nil
	})
}

// Truncate cuts or zero-extends a file to length bytes.
func (fs *FileSystem) Truncate(path string, length int64) error {
	return fs.mutate(types.OpTruncate, path, func(p string) (*journal.Builder, error) {
		if length < 0 {
			return nil, fmt.Errorf("%w: negative length %d", common.ErrInvalidPath, length)
		}
		if length > fs.statfs.MaxFileSize {
			return nil, fmt.Errorf("%w: length %d exceeds %d", common.ErrFileTooLarge, length, fs.statfs.MaxFileSize)
		}
		e, err := fs.requireFile(p)
		if err != nil {
			return nil, err
		}
		var undo journal.Step = journal.Truncate{Path: p, Length: int64(len(e.Content))}
		if length < int64(len(e.Content)) {
			undo = journal.Write{Path: p, Data: e.Content[length:], Offset: length}
		}
		return journal.NewBatch(types.OpTruncate, p).
			Undo(undo).
			Redo(journal.Truncate{Path: p, Length: length}), nil
	})
}

// Write splices data into the file at offset, zero-filling any gap, and
// reports the number of bytes written.
func (fs *FileSystem) Write(path string, data []byte, offset int64) (int, error) {
	err := fs.mutate(types.OpWrite, path, func(p string) (*journal.Builder, error) {
		if offset < 0 {
			return nil, fmt.Errorf("%w: negative offset %d", common.ErrInvalidPath, offset)
		}
		// Compared this way round so offset+len(data) cannot overflow
		if offset > fs.statfs.MaxFileSize-int64(len(data)) {
			return nil, fmt.Errorf("%w: write ends past %d", common.ErrFileTooLarge, fs.statfs.MaxFileSize)
		}
		e, err := fs.requireFile(p)
		if err != nil {
			return nil, err
		}
		return journal.NewBatch(types.OpWrite, p).
			Undo(journal.SetContent{Path: p, Content: e.Content}).
			Redo(journal.Write{Path: p, Data: slices.Clone(data), Offset: offset}), nil
	})
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// Chmod replaces the permission bits, keeping the type bits.
func (fs *FileSystem) Chmod(path string, mode uint32) error {
	return fs.mutate(types.OpChmod, path, func(p string) (*journal.Builder, error) {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return nil, err
		}
		return journal.NewBatch(types.OpChmod, p).
			Undo(journal.Chmod{Path: p, Mode: attr.Perm()}).
			Redo(journal.Chmod{Path: p, Mode: mode & store.ModePermMask}), nil
	})
}

// Chown replaces the owner and group.
func (fs *FileSystem) Chown(path string, uid, gid uint32) error {
	return fs.mutate(types.OpChown, path, func(p string) (*journal.Builder, error) {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return nil, err
		}
		return journal.NewBatch(types.OpChown, p).
			Undo(journal.Chown{Path: p, Uid: attr.Uid, Gid: attr.Gid}).
			Redo(journal.Chown{Path: p, Uid: uid, Gid: gid}), nil
	})
}

// Utimens sets the access and modification times. Nil times means now.
func (fs *FileSystem) Utimens(path string, times *types.Times) error {
	return fs.mutate(types.OpUtimens, path, func(p string) (*journal.Builder, error) {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return nil, err
		}
		var next types.Times
		if times != nil {
			next = *times
		} else {
			now := fs.now()
			next = types.Times{Atime: now, Mtime: now}
		}
		return journal.NewBatch(types.OpUtimens, p).
			Undo(journal.SetTimes{Path: p, Atime: attr.Atime, Mtime: attr.Mtime}).
			Redo(journal.SetTimes{Path: p, Atime: next.Atime, Mtime: next.Mtime}), nil
	})
}

// Setxattr sets an extended attribute, replacing any previous value.
func (fs *FileSystem) Setxattr(path, name string, value []byte) error {
	return fs.mutate(types.OpSetxattr, path, func(p string) (*journal.Builder, error) {
		if name == "" {
			return nil, fmt.Errorf("%w: empty attribute name", common.ErrInvalidPath)
		}
		attr, err := fs.requireAttr(p)
		if err != nil {
			return nil, err
		}
		var undo journal.Step = journal.RemoveXattr{Path: p, Name: name}
		if prev, ok := attr.Xattrs[name]; ok {
			undo = journal.SetXattr{Path: p, Name: name, Value: prev}
		}
		return journal.NewBatch(types.OpSetxattr, p).
			Undo(undo).
			Redo(journal.SetXattr{Path: p, Name: name, Value: slices.Clone(value)}), nil
	})
}

// Removexattr drops an extended attribute. Removing an absent name succeeds
// and records nothing.
func (fs *FileSystem) Removexattr(path, name string) error {
	return fs.mutate(types.OpRemovexattr, path, func(p string) (*journal.Builder, error) {
		attr, err := fs.requireAttr(p)
		if err != nil {
			return nil, err
		}
		prev, ok := attr.Xattrs[name]
		if !ok {
			return nil, nil
		}
		return journal.NewBatch(types.OpRemovexattr, p).
			Undo(journal.SetXattr{Path: p, Name: name, Value: prev}).
			Redo(journal.RemoveXattr{Path: p, Name: name}), nil
	})
}

func uniq(a, b string) []string {
	if a == b {
		return []string{a}
	}
	return []string{a, b}
}
