// Package filesystem implements the in-memory filesystem core: standard
// filesystem operations over the metadata and content stores, with every
// mutation recorded as one undo/redo batch in the journal.
package filesystem

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	internal "github.com/ZanzyTHEbar/undo-memfs/umfs"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/interfaces"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/store"

	"github.com/rs/zerolog"
)

var _ interfaces.UndoFileSystem = (*FileSystem)(nil)

// FileSystem is the in-memory filesystem plus its undo/redo journal.
//
// All mutations, undo and redo included, run under one exclusive lock;
// read-only operations share it. A reader therefore sees the store either
// before or after a batch, never in between.
type FileSystem struct {
	mu      sync.RWMutex
	store   *store.Store
	journal *journal.Journal
	handles atomic.Uint64

	uid, gid uint32
	statfs   types.StatfsConfig
	now      func() time.Time
	metrics  *common.OperationMetrics
	logger   zerolog.Logger

	journalDepth int
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(fs *FileSystem) { fs.logger = logger }
}

// WithMetrics records operation and journal metrics.
func WithMetrics(m *common.OperationMetrics) Option {
	return func(fs *FileSystem) { fs.metrics = m }
}

// WithClock overrides the time source used for new records and utimens.
func WithClock(now func() time.Time) Option {
	return func(fs *FileSystem) { fs.now = now }
}

// WithOwner sets the uid/gid given to new entries.
func WithOwner(uid, gid uint32) Option {
	return func(fs *FileSystem) { fs.uid, fs.gid = uid, gid }
}

// WithJournalDepth bounds the undo history. Zero keeps everything.
func WithJournalDepth(n int) Option {
	return func(fs *FileSystem) { fs.journalDepth = n }
}

// WithStatfs sets the figures reported by Statfs.
func WithStatfs(cfg types.StatfsConfig) Option {
	return func(fs *FileSystem) { fs.statfs = cfg }
}

// New creates a filesystem holding only "/".
func New(opts ...Option) *FileSystem {
	fs := &FileSystem{
		uid: uint32(os.Getuid()),
		gid: uint32(os.Getgid()),
		statfs: types.StatfsConfig{
			BlockSize:       uint32(internal.DefaultStatfsBlockSize),
			Blocks:          uint64(internal.DefaultStatfsBlocks),
			BlocksAvailable: uint64(internal.DefaultStatfsBlocksAvailable),
			MaxFiles:        uint64(internal.DefaultStatfsMaxFiles),
			MaxFileSize:     internal.DefaultMaxFileSize,
		},
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(fs)
	}
	if fs.statfs.MaxFileSize <= 0 {
		fs.statfs.MaxFileSize = internal.DefaultMaxFileSize
	}
	fs.logger = fs.logger.With().Str("component", "filesystem").Logger()

	jopts := []journal.Option{journal.WithMaxDepth(fs.journalDepth)}
	if fs.metrics != nil {
		jopts = append(jopts, journal.WithObserver(fs.metrics))
	}
	fs.journal = journal.New(fs.logger, jopts...)

	now := fs.now()
	fs.store = store.New(store.Attr{
		Mode:  store.ModeDir | 0o755,
		Nlink: 2,
		Uid:   fs.uid,
		Gid:   fs.gid,
		Ctime: now,
		Mtime: now,
		Atime: now,
	})
	return fs
}

// Undo reverts the most recent batch. It returns journal.ErrNothingToUndo
// when there is no history, which callers should treat as a no-op.
func (fs *FileSystem) Undo() (journal.Batch, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	b, err := fs.journal.Undo(fs.applyStep)
	fs.observe(types.OpUndo, "", err)
	return b, err
}

// Redo reapplies the most recently undone batch. It returns
// journal.ErrNothingToRedo when nothing is available.
func (fs *FileSystem) Redo() (journal.Batch, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	b, err := fs.journal.Redo(fs.applyStep)
	fs.observe(types.OpRedo, "", err)
	return b, err
}

// History returns a copy of the journal stacks.
func (fs *FileSystem) History() journal.History {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.journal.Inspect()
}

// Group runs fn and folds every batch recorded meanwhile into one composite
// batch labelled label, so a single undo reverts all of it. Batches from
// other callers that land while fn runs are folded in as well. The group is
// kept even when fn fails, since whatever fn managed to change did happen.
func (fs *FileSystem) Group(label string, fn func() error) error {
	fs.mu.Lock()
	mark := fs.journal.Mark()
	fs.mu.Unlock()

	err := fn()

	fs.mu.Lock()
	if b, ok := fs.journal.Squash(mark, label); ok {
		fs.logger.Debug().Str("batch", b.ID.String()).Str("label", label).Int("undo_steps", len(b.Undo)).Msg("Group recorded")
	}
	fs.mu.Unlock()
	return err
}

// Snapshot deep-copies every entry, for diagnostics and tests.
func (fs *FileSystem) Snapshot() map[string]store.Entry {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.store.Snapshot()
}

// commit executes the redo steps of b as the forward effect and, only if
// they all succeed, pushes b onto the journal. Callers hold fs.mu and have
// already validated the preconditions, so a failure here means the store
// and the batch disagree.
func (fs *FileSystem) commit(b journal.Batch) error {
	for _, step := range b.Redo {
		if err := fs.applyStep(step); err != nil {
			fs.logger.Error().Err(err).Str("op", b.Op).Str("step", step.String()).Msg("Forward step failed")
			return err
		}
	}
	fs.journal.Apply(b)
	return nil
}

func (fs *FileSystem) observe(op, path string, err error) {
	fs.metrics.Observe(op, err)
	if err == nil {
		fs.logger.Debug().Str("op", op).Str("path", path).Msg("Operation completed")
		return
	}
	if errors.Is(err, journal.ErrNothingToUndo) || errors.Is(err, journal.ErrNothingToRedo) {
		fs.logger.Debug().Str("op", op).Msg(err.Error())
		return
	}
	fs.logger.Debug().Err(err).Str("op", op).Str("path", path).Msg("Operation failed")
}

// resolve validates and normalizes p.
func resolve(op, p string) (string, error) {
	if err := common.ValidatePath(p); err != nil {
		return "", common.WrapError(op, p, err)
	}
	return store.NormalizePath(p), nil
}

// requireParentDir checks that the parent of p exists and is a directory.
func (fs *FileSystem) requireParentDir(p string) (string, store.Attr, error) {
	parent := store.ParentPath(p)
	attr, ok := fs.store.Meta.Get(parent)
	if !ok {
		return "", store.Attr{}, common.ErrNotFound
	}
	if !attr.IsDir() {
		return "", store.Attr{}, common.ErrNotDirectory
	}
	return parent, attr, nil
}
