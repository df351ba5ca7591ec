//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"

	"github.com/participadf/ouvidoria/internal/errors"
)

// openFileNoFollow opens a file for writing with O_NOFOLLOW, so a recording is
// never written through a symlink planted at the output path.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot write to symlink: " + path)
		}
		return nil, errors.NewInvalidRequest("cannot open " + path + ": " + err.Error())
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openFileNoFollowRead opens an attachment or recording source for reading.
// Symlinks on the final component are rejected.
func openFileNoFollowRead(path string) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest("cannot read from symlink: " + path)
		}
		if stderrors.Is(err, syscall.ENOENT) {
			return nil, errors.NewInvalidRequest("file not found: " + path)
		}
		return nil, errors.NewInternal(err)
	}
	return os.NewFile(uintptr(fd), path), nil
}
