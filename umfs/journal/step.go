package journal

import (
	"fmt"
	"slices"
	"time"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"
)

// StepKind tags each replayable operation.
type StepKind uint8

const (
	KindRestore StepKind = iota + 1
	KindRemove
	KindUnlink
	KindRmdir
	KindRename
	KindTruncate
	KindWrite
	KindSetContent
	KindChmod
	KindChown
	KindSetTimes
	KindSetXattr
	KindRemoveXattr
	KindSetLinks
	KindAdjustLinks
)

// String returns a string representation of the kind.
func (k StepKind) String() string {
	switch k {
	case KindRestore:
		return "restore"
	case KindRemove:
		return "remove"
	case KindUnlink:
		return "unlink"
	case KindRmdir:
		return "rmdir"
	case KindRename:
		return "rename"
	case KindTruncate:
		return "truncate"
	case KindWrite:
		return "write"
	case KindSetContent:
		return "set-content"
	case KindChmod:
		return "chmod"
	case KindChown:
		return "chown"
	case KindSetTimes:
		return "set-times"
	case KindSetXattr:
		return "setxattr"
	case KindRemoveXattr:
		return "removexattr"
	case KindSetLinks:
		return "set-links"
	case KindAdjustLinks:
		return "adjust-links"
	default:
		return "unknown"
	}
}

// Step is one typed, replayable operation with all of its data captured up
// front. The set of implementations is closed: only this package defines them.
type Step interface {
	Kind() StepKind
	// Target is the primary path the step touches.
	Target() string
	String() string
	clone() Step
}

// Restore puts a captured record (and content, if any) back at Path.
type Restore struct {
	Path  string
	Entry store.Entry
}

// Remove drops Path without any type checks or link accounting.
type Remove struct{ Path string }

// Unlink removes a file or symlink.
type Unlink struct{ Path string }

// Rmdir removes a directory and drops one link from its parent.
type Rmdir struct{ Path string }

// Rename moves Old (and its subtree) to New.
type Rename struct{ Old, New string }

// Truncate resizes Path to Length, zero-filling on growth.
type Truncate struct {
	Path   string
	Length int64
}

// Write splices Data into Path at Offset.
type Write struct {
	Path   string
	Data   []byte
	Offset int64
}

// SetContent replaces the whole content of Path.
type SetContent struct {
	Path    string
	Content []byte
}

// Chmod replaces the permission bits of Path.
type Chmod struct {
	Path string
	Mode uint32
}

// Chown replaces the ownership of Path.
type Chown struct {
	Path     string
	Uid, Gid uint32
}

// SetTimes replaces the access and modification times of Path.
type SetTimes struct {
	Path         string
	Atime, Mtime time.Time
}

// SetXattr sets one extended attribute.
type SetXattr struct {
	Path, Name string
	Value      []byte
}

// RemoveXattr drops one extended attribute.
type RemoveXattr struct{ Path, Name string }

// SetLinks pins the link count of Path.
type SetLinks struct {
	Path  string
	Nlink uint32
}

// AdjustLinks moves the link count of Path by Delta.
type AdjustLinks struct {
	Path  string
	Delta int32
}

func (Restore) Kind() StepKind     { return KindRestore }
func (Remove) Kind() StepKind      { return KindRemove }
func (Unlink) Kind() StepKind      { return KindUnlink }
func (Rmdir) Kind() StepKind       { return KindRmdir }
func (Rename) Kind() StepKind      { return KindRename }
func (Truncate) Kind() StepKind    { return KindTruncate }
func (Write) Kind() StepKind       { return KindWrite }
func (SetContent) Kind() StepKind  { return KindSetContent }
func (Chmod) Kind() StepKind       { return KindChmod }
func (Chown) Kind() StepKind       { return KindChown }
func (SetTimes) Kind() StepKind    { return KindSetTimes }
func (SetXattr) Kind() StepKind    { return KindSetXattr }
func (RemoveXattr) Kind() StepKind { return KindRemoveXattr }
func (SetLinks) Kind() StepKind    { return KindSetLinks }
func (AdjustLinks) Kind() StepKind { return KindAdjustLinks }

func (s Restore) Target() string     { return s.Path }
func (s Remove) Target() string      { return s.Path }
func (s Unlink) Target() string      { return s.Path }
func (s Rmdir) Target() string       { return s.Path }
func (s Rename) Target() string      { return s.Old }
func (s Truncate) Target() string    { return s.Path }
func (s Write) Target() string       { return s.Path }
func (s SetContent) Target() string  { return s.Path }
func (s Chmod) Target() string       { return s.Path }
func (s Chown) Target() string       { return s.Path }
func (s SetTimes) Target() string    { return s.Path }
func (s SetXattr) Target() string    { return s.Path }
func (s RemoveXattr) Target() string { return s.Path }
func (s SetLinks) Target() string    { return s.Path }
func (s AdjustLinks) Target() string { return s.Path }

func (s Restore) String() string {
	return fmt.Sprintf("restore %s (%s, %d bytes)", s.Path, s.Entry.Attr.NodeTypeString(), len(s.Entry.Content))
}
func (s Remove) String() string { return "remove " + s.Path }
func (s Unlink) String() string { return "unlink " + s.Path }
func (s Rmdir) String() string  { return "rmdir " + s.Path }
func (s Rename) String() string { return fmt.Sprintf("rename %s -> %s", s.Old, s.New) }
func (s Truncate) String() string {
	return fmt.Sprintf("truncate %s %d", s.Path, s.Length)
}
func (s Write) String() string {
	return fmt.Sprintf("write %s %d bytes @%d", s.Path, len(s.Data), s.Offset)
}
func (s SetContent) String() string {
	return fmt.Sprintf("set-content %s %d bytes", s.Path, len(s.Content))
}
func (s Chmod) String() string { return fmt.Sprintf("chmod %s %#o", s.Path, s.Mode) }
func (s Chown) String() string { return fmt.Sprintf("chown %s %d:%d", s.Path, s.Uid, s.Gid) }
func (s SetTimes) String() string {
	return fmt.Sprintf("set-times %s atime=%s mtime=%s", s.Path,
		s.Atime.Format(time.RFC3339Nano), s.Mtime.Format(time.RFC3339Nano))
}
func (s SetXattr) String() string {
	return fmt.Sprintf("setxattr %s %s (%d bytes)", s.Path, s.Name, len(s.Value))
}
func (s RemoveXattr) String() string { return fmt.Sprintf("removexattr %s %s", s.Path, s.Name) }
func (s SetLinks) String() string    { return fmt.Sprintf("set-links %s %d", s.Path, s.Nlink) }
func (s AdjustLinks) String() string { return fmt.Sprintf("adjust-links %s %+d", s.Path, s.Delta) }

func (s Restore) clone() Step     { return Restore{Path: s.Path, Entry: s.Entry.Clone()} }
func (s Remove) clone() Step      { return s }
func (s Unlink) clone() Step      { return s }
func (s Rmdir) clone() Step       { return s }
func (s Rename) clone() Step      { return s }
func (s Truncate) clone() Step    { return s }
func (s Write) clone() Step       { s.Data = slices.Clone(s.Data); return s }
func (s SetContent) clone() Step  { s.Content = slices.Clone(s.Content); return s }
func (s Chmod) clone() Step       { return s }
func (s Chown) clone() Step       { return s }
func (s SetTimes) clone() Step    { return s }
func (s SetXattr) clone() Step    { s.Value = slices.Clone(s.Value); return s }
func (s RemoveXattr) clone() Step { return s }
func (s SetLinks) clone() Step    { return s }
func (s AdjustLinks) clone() Step { return s }

// CloneSteps deep-copies a step list so replay never aliases journal data.
func CloneSteps(steps []Step) []Step {
	if steps == nil {
		return nil
	}
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[i] = s.clone()
	}
	return out
}
