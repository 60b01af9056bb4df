package common

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/undo-memfs/umfs/journal"
)

// Common error types used across filesystem packages
var (
	ErrNotFound      = errors.New("no such file or directory")
	ErrNoData        = errors.New("no such attribute")
	ErrAlreadyExists = errors.New("file exists")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrNotDirectory  = errors.New("not a directory")
	ErrIsDirectory   = errors.New("is a directory")
	ErrInvalidPath   = errors.New("invalid path")
	ErrRootImmutable = errors.New("root directory cannot be removed or renamed")
	ErrFileTooLarge  = errors.New("file too large")
)

// MaxPathLength bounds accepted paths.
const MaxPathLength = 4096

// OpError records the operation and path that produced a filesystem error.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// WrapError attaches op and path to err. A nil err stays nil.
func WrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var opErr *OpError
	if errors.As(err, &opErr) {
		return err
	}
	return &OpError{Op: op, Path: path, Err: err}
}

// ValidatePath checks that p is a usable absolute path
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	if len(p) > MaxPathLength {
		return fmt.Errorf("%w: path too long (max %d characters)", ErrInvalidPath, MaxPathLength)
	}
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: %q is not absolute", ErrInvalidPath, p)
	}
	if strings.Contains(p, "\x00") {
		return fmt.Errorf("%w: path contains NUL", ErrInvalidPath)
	}
	return nil
}

// ErrorCode returns a short stable label for err, used as a metric label.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrAlreadyExists):
		return "exists"
	case errors.Is(err, ErrNotEmpty):
		return "not_empty"
	case errors.Is(err, ErrNotDirectory):
		return "not_directory"
	case errors.Is(err, ErrIsDirectory):
		return "is_directory"
	case errors.Is(err, ErrInvalidPath):
		return "invalid_path"
	case errors.Is(err, ErrRootImmutable):
		return "root_immutable"
	case errors.Is(err, ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, journal.ErrNothingToUndo):
		return "nothing_to_undo"
	case errors.Is(err, journal.ErrNothingToRedo):
		return "nothing_to_redo"
	default:
		return "error"
	}
}
