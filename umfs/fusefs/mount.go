package fusefs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/interfaces"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/rs/zerolog"
)

// ErrInvalidMountPoint is returned when the mount point is empty or not a
// directory.
var ErrInvalidMountPoint = errors.New("invalid mount point")

// MountOptions configures the FUSE mount.
type MountOptions struct {
	Point      string
	AllowOther bool
	Debug      bool
	FsName     string
}

// Mount serves ops at opts.Point. It creates the mount point if needed,
// blocks until ctx is cancelled and then unmounts.
func Mount(ctx context.Context, ops interfaces.Operations, opts MountOptions, logger zerolog.Logger) error {
	if opts.Point == "" {
		return ErrInvalidMountPoint
	}
	if err := os.MkdirAll(opts.Point, 0o755); err != nil {
		return fmt.Errorf("create mount point %s: %w", opts.Point, err)
	}
	if info, err := os.Stat(opts.Point); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInvalidMountPoint, opts.Point)
	}

	fsName := opts.FsName
	if fsName == "" {
		fsName = "umfs"
	}
	root := NewRoot(ops, logger)
	server, err := fs.Mount(opts.Point, root, &fs.Options{
		MountOptions: fuse.MountOptions{
			AllowOther: opts.AllowOther,
			FsName:     fsName,
			Name:       "umfs",
			Debug:      opts.Debug,
		},
		EntryTimeout:    zeroTimeout(),
		AttrTimeout:     zeroTimeout(),
		NegativeTimeout: zeroTimeout(),
		RootStableAttr:  &fs.StableAttr{Mode: fuse.S_IFDIR, Ino: 1},
	})
	if err != nil {
		return fmt.Errorf("mount %s: %w", opts.Point, err)
	}
	root.logger.Info().Str("mountpoint", opts.Point).Msg("Filesystem mounted")

	<-ctx.Done()

	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmount %s: %w", opts.Point, err)
	}
	server.Wait()
	root.logger.Info().Str("mountpoint", opts.Point).Msg("Filesystem unmounted")
	return nil
}
