//go:build windows

package ops

import (
	"os"

	"github.com/participadf/ouvidoria/internal/errors"
)

// openFileNoFollow opens a file for writing.
// O_NOFOLLOW is not available on Windows.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, errors.NewInvalidRequest("cannot open " + path + ": " + err.Error())
	}
	return f, nil
}

// openFileNoFollowRead opens a file for reading. See openFileNoFollow.
func openFileNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewInvalidRequest("file not found: " + path)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}
