package fusefs

import (
	"errors"
	"syscall"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/filesystem/common"

	"github.com/hanwen/go-fuse/v2/fs"
)

// toErrno converts a filesystem error to the errno the kernel expects.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return fs.OK
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch {
	case errors.Is(err, common.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, common.ErrNoData):
		return syscall.ENODATA
	case errors.Is(err, common.ErrAlreadyExists):
		return syscall.EEXIST
	case errors.Is(err, common.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, common.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, common.ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, common.ErrInvalidPath):
		return syscall.EINVAL
	case errors.Is(err, common.ErrRootImmutable):
		return syscall.EBUSY
	case errors.Is(err, common.ErrFileTooLarge):
		return syscall.EFBIG
	}
	return syscall.EIO
}
