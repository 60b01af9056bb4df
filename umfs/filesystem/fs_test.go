package filesystem

import (
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	internal "github.com/ZanzyTHEbar/undo-memfs/umfs"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/types"
	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	t := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTestFS(t *testing.T, opts ...Option) *FileSystem {
	t.Helper()
	base := []Option{
		WithLogger(zerolog.New(io.Discard)),
		WithClock(tickingClock()),
		WithOwner(1000, 1000),
	}
	return New(append(base, opts...)...)
}

func TestNewFileSystem(t *testing.T) {
	fs := newTestFS(t)

	root, err := fs.Getattr("/")
	require.NoError(t, err)
	assert.True(t, root.IsDir())
	assert.Equal(t, uint64(1), root.Ino)
	assert.Equal(t, uint32(2), root.Nlink)
	assert.Equal(t, uint32(0o755), root.Perm())
	assert.Equal(t, int64(0), root.Size)
	assert.Equal(t, uint32(1000), root.Uid)

	h := fs.History()
	assert.Empty(t, h.Undo)
	assert.Empty(t, h.RedoSource)
	assert.Empty(t, h.RedoAfterUndo)
}

func TestUndoRedoScenario(t *testing.T) {
	fs := newTestFS(t)
	empty := fs.Snapshot()

	_, err := fs.Create("/f", 0o644)
	require.NoError(t, err)
	n, err := fs.Write("/f", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, fs.Truncate("/f", 3))
	assertContent(t, fs, "/f", "hel")

	_, err = fs.Undo()
	require.NoError(t, err)
	assertContent(t, fs, "/f", "hello")

	_, err = fs.Undo()
	require.NoError(t, err)
	assertContent(t, fs, "/f", "")

	_, err = fs.Undo()
	require.NoError(t, err)
	_, err = fs.Getattr("/f")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, empty, fs.Snapshot())

	_, err = fs.Undo()
	assert.ErrorIs(t, err, journal.ErrNothingToUndo)

	for range 3 {
		_, err = fs.Redo()
		require.NoError(t, err)
	}
	assertContent(t, fs, "/f", "hel")

	_, err = fs.Redo()
	assert.ErrorIs(t, err, journal.ErrNothingToRedo)
}

func TestRootSizeTracksContent(t *testing.T) {
	fs := newTestFS(t)

	_, err := fs.Create("/a", 0o644)
	require.NoError(t, err)
	_, err = fs.Write("/a", []byte("12345"), 0)
	require.NoError(t, err)
	require.NoError(t, fs.Symlink("/l", "/a"))

	root, err := fs.Getattr("/")
	require.NoError(t, err)
	assert.Equal(t, int64(7), root.Size)

	_, err = fs.Undo()
	require.NoError(t, err)
	root, _ = fs.Getattr("/")
	assert.Equal(t, int64(5), root.Size)
}

func TestNewWorkClearsRedo(t *testing.T) {
	fs := newTestFS(t)

	require.NoError(t, fs.Mkdir("/a", 0o755))
	_, err := fs.Undo()
	require.NoError(t, err)
	assert.Len(t, fs.History().RedoAfterUndo, 1)

	require.NoError(t, fs.Mkdir("/b", 0o755))
	assert.Empty(t, fs.History().RedoAfterUndo)

	_, err = fs.Redo()
	assert.ErrorIs(t, err, journal.ErrNothingToRedo)
	_, err = fs.Getattr("/a")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRedoIsRepeatable(t *testing.T) {
	fs := newTestFS(t)

	require.NoError(t, fs.Mkdir("/d", 0o755))
	_, err := fs.Create("/d/f", 0o600)
	require.NoError(t, err)
	_, err = fs.Write("/d/f", []byte("data"), 2)
	require.NoError(t, err)
	require.NoError(t, fs.Rename("/d", "/e"))
	want := fs.Snapshot()

	for range 3 {
		for range 4 {
			_, err := fs.Undo()
			require.NoError(t, err)
		}
		for range 4 {
			_, err := fs.Redo()
			require.NoError(t, err)
		}
		assert.Equal(t, want, fs.Snapshot())
	}
}

func TestFailedOperationRecordsNothing(t *testing.T) {
	fs := newTestFS(t)
	require.NoError(t, fs.Mkdir("/a", 0o755))
	_, err := fs.Create("/f", 0o644)
	require.NoError(t, err)
	depth := len(fs.History().Undo)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"MkdirExisting", func() error { return fs.Mkdir("/a", 0o755) }, common.ErrAlreadyExists},
		{"CreateMissingParent", func() error { _, err := fs.Create("/nope/f", 0o644); return err }, common.ErrNotFound},
		{"UnlinkDirectory", func() error { return fs.Unlink("/a") }, common.ErrIsDirectory},
		{"RmdirRoot", func() error { return fs.Rmdir("/") }, common.ErrRootImmutable},
		{"RenameRoot", func() error { return fs.Rename("/", "/x") }, common.ErrRootImmutable},
		{"WriteDirectory", func() error { _, err := fs.Write("/a", []byte("x"), 0); return err }, common.ErrIsDirectory},
		{"RelativePath", func() error { return fs.Mkdir("rel", 0o755) }, common.ErrInvalidPath},
		{"ChmodMissing", func() error { return fs.Chmod("/missing", 0o600) }, common.ErrNotFound},
		{"UnlinkRoot", func() error { return fs.Unlink("/") }, common.ErrRootImmutable},
		{"TruncateHuge", func() error { return fs.Truncate("/f", 1<<62) }, common.ErrFileTooLarge},
		{"WriteHugeOffset", func() error { _, err := fs.Write("/f", []byte("x"), 1<<62); return err }, common.ErrFileTooLarge},
		{"WriteOffsetOverflow", func() error { _, err := fs.Write("/f", []byte("xy"), math.MaxInt64); return err }, common.ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var opErr *common.OpError
			assert.ErrorAs(t, err, &opErr)
			assert.Len(t, fs.History().Undo, depth)
		})
	}
}

func TestMaxFileSize(t *testing.T) {
	fs := newTestFS(t, WithStatfs(types.StatfsConfig{BlockSize: 512, Blocks: 16, BlocksAvailable: 8, MaxFiles: 16, MaxFileSize: 8}))
	_, err := fs.Create("/f", 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/f", 8))
	assert.ErrorIs(t, fs.Truncate("/f", 9), common.ErrFileTooLarge)

	n, err := fs.Write("/f", []byte("abc"), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, err = fs.Write("/f", []byte("abc"), 6)
	assert.ErrorIs(t, err, common.ErrFileTooLarge)

	attr, err := fs.Getattr("/f")
	require.NoError(t, err)
	assert.Equal(t, int64(8), attr.Size)
	assert.Len(t, fs.History().Undo, 3)
}

func TestMaxFileSizeDefaultsWhenUnset(t *testing.T) {
	fs := newTestFS(t, WithStatfs(types.StatfsConfig{BlockSize: 512, Blocks: 16, BlocksAvailable: 8, MaxFiles: 16}))
	_, err := fs.Create("/f", 0o644)
	require.NoError(t, err)

	require.NoError(t, fs.Truncate("/f", 1024))
	assert.ErrorIs(t, fs.Truncate("/f", internal.DefaultMaxFileSize+1), common.ErrFileTooLarge)
}

func TestGroupFoldsIntoOneBatch(t *testing.T) {
	fs := newTestFS(t)
	empty := fs.Snapshot()

	err := fs.Group("touch x", func() error {
		if err := fs.Mkdir("/x", 0o755); err != nil {
			return err
		}
		if _, err := fs.Create("/x/f", 0o644); err != nil {
			return err
		}
		_, err := fs.Write("/x/f", []byte("abc"), 0)
		return err
	})
	require.NoError(t, err)
	done := fs.Snapshot()

	h := fs.History()
	require.Len(t, h.Undo, 1)
	assert.Equal(t, "touch x", h.Undo[0].Op)

	b, err := fs.Undo()
	require.NoError(t, err)
	assert.Equal(t, "touch x", b.Op)
	assert.Equal(t, empty, fs.Snapshot())

	_, err = fs.Redo()
	require.NoError(t, err)
	assert.Equal(t, done, fs.Snapshot())
}

func TestGroupWithoutChangesRecordsNothing(t *testing.T) {
	fs := newTestFS(t)

	err := fs.Group("ls", func() error {
		_, err := fs.Readdir("/")
		return err
	})
	require.NoError(t, err)
	assert.Empty(t, fs.History().Undo)
}

func TestJournalDepthLimit(t *testing.T) {
	fs := newTestFS(t, WithJournalDepth(2))

	for i := range 3 {
		require.NoError(t, fs.Mkdir(fmt.Sprintf("/d%d", i), 0o755))
	}
	assert.Len(t, fs.History().Undo, 2)

	for range 2 {
		_, err := fs.Undo()
		require.NoError(t, err)
	}
	_, err := fs.Undo()
	assert.ErrorIs(t, err, journal.ErrNothingToUndo)

	_, err = fs.Getattr("/d0")
	assert.NoError(t, err, "trimmed history leaves its effect in place")
}

func TestJournalDepthLimitKeepsGroupsWhole(t *testing.T) {
	fs := newTestFS(t, WithJournalDepth(2))
	before := fs.Snapshot()

	err := fs.Group("mkdir -p a/b/c", func() error {
		for _, p := range []string{"/a", "/a/b", "/a/b/c"} {
			if err := fs.Mkdir(p, 0o755); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	h := fs.History()
	require.Len(t, h.Undo, 1)
	assert.Len(t, h.Undo[0].Steps, 3)

	_, err = fs.Undo()
	require.NoError(t, err)
	assert.Equal(t, before, fs.Snapshot())
}

func TestConcurrentOperations(t *testing.T) {
	fs := newTestFS(t)
	const workers = 32

	p := pool.New().WithErrors().WithMaxGoroutines(8)
	for i := range workers {
		p.Go(func() error {
			path := fmt.Sprintf("/f%02d", i)
			if _, err := fs.Create(path, 0o644); err != nil {
				return err
			}
			if _, err := fs.Write(path, []byte(path), 0); err != nil {
				return err
			}
			_, err := fs.Readdir("/")
			return err
		})
	}
	require.NoError(t, p.Wait())

	names, err := fs.Readdir("/")
	require.NoError(t, err)
	assert.Len(t, names, workers+2)
	assert.Len(t, fs.History().Undo, workers*2)

	undo := pool.New().WithErrors().WithMaxGoroutines(4)
	for range workers * 2 {
		undo.Go(func() error {
			_, err := fs.Undo()
			return err
		})
	}
	require.NoError(t, undo.Wait())

	snap := fs.Snapshot()
	assert.Len(t, snap, 1)
	assert.Contains(t, snap, "/")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := common.NewOperationMetrics(reg)
	fs := newTestFS(t, WithMetrics(m))

	require.NoError(t, fs.Mkdir("/a", 0o755))
	assert.Error(t, fs.Mkdir("/a", 0o755))
	_, err := fs.Undo()
	require.NoError(t, err)
	_, err = fs.Redo()
	require.NoError(t, err)
	_, err = fs.Redo()
	assert.ErrorIs(t, err, journal.ErrNothingToRedo)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("mkdir", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("mkdir", "exists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OperationsTotal.WithLabelValues("redo", "nothing_to_redo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryMoves.WithLabelValues("undo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryMoves.WithLabelValues("redo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JournalDepth.WithLabelValues("undo")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.JournalDepth.WithLabelValues("redo_after_undo")))

	// A second set of metrics on the same registry reuses the collectors
	again := common.NewOperationMetrics(reg)
	assert.Same(t, m.OperationsTotal, again.OperationsTotal)
}

func assertContent(t *testing.T, fs *FileSystem, path, want string) {
	t.Helper()
	attr, err := fs.Getattr(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(want)), attr.Size)

	got, err := fs.Read(path, 1<<16, 0)
	require.NoError(t, err)
	assert.Equal(t, want, string(got))
}
