//go:build windows

package ops

import (
	"os"

	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// createNoFollow creates path for writing. Windows has no O_NOFOLLOW;
// validateBackupPath has already rejected symlinks.
func createNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
}

// openNoFollow opens path read-only.
func openNoFollow(path string) (*os.File, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("file", path)
	}
	return f, err
}
