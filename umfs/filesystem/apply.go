package filesystem

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"
)

// applyStep executes one journal step against the stores without recording
// anything. It is the single place store state changes; forward calls,
// undo and redo all go through it. Callers hold fs.mu exclusively.
func (fs *FileSystem) applyStep(step journal.Step) error {
	var err error
	switch s := step.(type) {
	case journal.Restore:
		fs.store.Put(s.Path, s.Entry.Clone())
	case journal.Remove:
		if _, ok := fs.store.Delete(s.Path); !ok {
			err = common.ErrNotFound
		}
	case journal.Unlink:
		err = fs.unlinkEntry(s.Path)
	case journal.Rmdir:
		err = fs.rmdirEntry(s.Path)
	case journal.Rename:
		err = fs.renameEntries(s.Old, s.New)
	case journal.Truncate:
		err = fs.updateContent(s.Path, func(b []byte) []byte { return resize(b, s.Length) })
	case journal.Write:
		err = fs.updateContent(s.Path, func(b []byte) []byte { return splice(b, s.Data, s.Offset) })
	case journal.SetContent:
		err = fs.updateContent(s.Path, func([]byte) []byte { return slices.Clone(s.Content) })
	case journal.Chmod:
		err = fs.updateAttr(s.Path, func(a *store.Attr) {
			a.Mode = a.Type() | (s.Mode & store.ModePermMask)
		})
	case journal.Chown:
		err = fs.updateAttr(s.Path, func(a *store.Attr) { a.Uid, a.Gid = s.Uid, s.Gid })
	case journal.SetTimes:
		err = fs.updateAttr(s.Path, func(a *store.Attr) { a.Atime, a.Mtime = s.Atime, s.Mtime })
	case journal.SetXattr:
		err = fs.updateAttr(s.Path, func(a *store.Attr) {
			if a.Xattrs == nil {
				a.Xattrs = make(map[string][]byte)
			}
			a.Xattrs[s.Name] = slices.Clone(s.Value)
		})
	case journal.RemoveXattr:
		err = fs.updateAttr(s.Path, func(a *store.Attr) {
			delete(a.Xattrs, s.Name)
			if len(a.Xattrs) == 0 {
				a.Xattrs = nil
			}
		})
	case journal.SetLinks:
		err = fs.updateAttr(s.Path, func(a *store.Attr) { a.Nlink = s.Nlink })
	case journal.AdjustLinks:
		err = fs.updateAttr(s.Path, func(a *store.Attr) { a.Nlink = uint32(int64(a.Nlink) + int64(s.Delta)) })
	default:
		err = fmt.Errorf("unsupported journal step %T", step)
	}
	if err != nil {
		return common.WrapError(step.Kind().String(), step.Target(), err)
	}
	fs.store.RecomputeRootSize()
	return nil
}

// updateAttr replaces the record at p with a modified copy.
func (fs *FileSystem) updateAttr(p string, fn func(*store.Attr)) error {
	attr, ok := fs.store.Meta.Get(p)
	if !ok {
		return common.ErrNotFound
	}
	fn(&attr)
	fs.store.Meta.Set(p, attr)
	return nil
}

// updateContent replaces the content at p with fn(old) and sets the record's
// size to match.
func (fs *FileSystem) updateContent(p string, fn func([]byte) []byte) error {
	attr, ok := fs.store.Meta.Get(p)
	if !ok {
		return common.ErrNotFound
	}
	if attr.IsDir() {
		return common.ErrIsDirectory
	}
	old, _ := fs.store.Content.Get(p)
	content := fn(old)
	fs.store.Content.Set(p, content)
	attr.Size = int64(len(content))
	fs.store.Meta.Set(p, attr)
	return nil
}

func (fs *FileSystem) unlinkEntry(p string) error {
	attr, ok := fs.store.Meta.Get(p)
	if !ok {
		return common.ErrNotFound
	}
	if attr.IsDir() {
		return common.ErrIsDirectory
	}
	fs.store.Delete(p)
	return nil
}

func (fs *FileSystem) rmdirEntry(p string) error {
	if p == "/" {
		return common.ErrRootImmutable
	}
	attr, ok := fs.store.Meta.Get(p)
	if !ok {
		return common.ErrNotFound
	}
	if !attr.IsDir() {
		return common.ErrNotDirectory
	}
	if fs.store.Meta.HasChildren(p) {
		return common.ErrNotEmpty
	}
	fs.store.Delete(p)
	return fs.updateAttr(store.ParentPath(p), func(a *store.Attr) {
		if a.Nlink > 0 {
			a.Nlink--
		}
	})
}

// renameEntries moves oldPath and everything below it to newPath, displacing
// a compatible entry already at newPath. Moving a directory between parents
// moves one link from the old parent to the new one.
func (fs *FileSystem) renameEntries(oldPath, newPath string) error {
	plan, err := fs.planRename(oldPath, newPath)
	if err != nil || plan.noop {
		return err
	}

	if plan.displaced != nil {
		fs.store.Delete(newPath)
		if plan.displaced.Attr.IsDir() {
			if err := fs.updateAttr(plan.newParent, func(a *store.Attr) { a.Nlink-- }); err != nil {
				return err
			}
		}
	}

	moved := make([]store.Entry, len(plan.subtree))
	for i, p := range plan.subtree {
		moved[i], _ = fs.store.Delete(p)
	}
	for i, p := range plan.subtree {
		fs.store.Put(newPath+strings.TrimPrefix(p, oldPath), moved[i])
	}

	if plan.source.IsDir() && plan.oldParent != plan.newParent {
		if err := fs.updateAttr(plan.oldParent, func(a *store.Attr) { a.Nlink-- }); err != nil {
			return err
		}
		if err := fs.updateAttr(plan.newParent, func(a *store.Attr) { a.Nlink++ }); err != nil {
			return err
		}
	}
	return nil
}

// renamePlan is everything rename needs to know, gathered before any change.
type renamePlan struct {
	noop      bool
	source    store.Attr
	subtree   []string
	displaced *store.Entry
	oldParent string
	newParent string
}

func (fs *FileSystem) planRename(oldPath, newPath string) (renamePlan, error) {
	var plan renamePlan
	if oldPath == "/" || newPath == "/" {
		return plan, common.ErrRootImmutable
	}
	source, ok := fs.store.Meta.Get(oldPath)
	if !ok {
		return plan, common.ErrNotFound
	}
	plan.source = source
	if oldPath == newPath {
		plan.noop = true
		return plan, nil
	}
	if strings.HasPrefix(newPath, oldPath+"/") {
		return plan, fmt.Errorf("%w: cannot move %s into itself", common.ErrInvalidPath, oldPath)
	}

	newParent, _, err := fs.requireParentDir(newPath)
	if err != nil {
		return plan, err
	}
	plan.newParent = newParent
	plan.oldParent = store.ParentPath(oldPath)

	if existing, ok := fs.store.Capture(newPath); ok {
		switch {
		case source.IsDir() && !existing.Attr.IsDir():
			return plan, common.ErrNotDirectory
		case !source.IsDir() && existing.Attr.IsDir():
			return plan, common.ErrIsDirectory
		case existing.Attr.IsDir() && fs.store.Meta.HasChildren(newPath):
			return plan, common.ErrNotEmpty
		}
		plan.displaced = &existing
	}

	plan.subtree = fs.store.Meta.Subtree(oldPath)
	return plan, nil
}

// resize returns b cut or zero-extended to length.
func resize(b []byte, length int64) []byte {
	if length < 0 {
		length = 0
	}
	out := make([]byte, length)
	copy(out, b)
	return out
}

// splice writes data into b at offset: bytes before offset are kept (zero
// padded if b is shorter), then data, then whatever of b lies past
// offset+len(data).
func splice(b, data []byte, offset int64) []byte {
	if offset < 0 {
		offset = 0
	}
	end := offset + int64(len(data))
	size := max(int64(len(b)), end)
	out := make([]byte, size)
	copy(out, b)
	copy(out[offset:], data)
	return out
}
