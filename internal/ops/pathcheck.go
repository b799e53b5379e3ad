package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/config"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// pathAccess says whether a backup path is about to be read or written.
type pathAccess int

const (
	accessRead pathAccess = iota
	accessWrite
)

// backupExt is the only extension ExportCode writes and ImportCode reads.
const backupExt = ".jsonl"

// validateBackupPath checks a code backup path before any file is opened:
//   - no ".." components
//   - .jsonl extension
//   - the file sits directly in ~/.boltdiy/exports or an allowed_paths entry
//   - neither the parent directory nor the file is a symlink
//
// Nested directories are refused so that only the final component can be
// swapped between the check and the open, and that one is opened O_NOFOLLOW.
func validateBackupPath(path string, access pathAccess, cfg *config.Config) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(path) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	if filepath.Ext(cleaned) != backupExt {
		return "", errors.NewInvalidRequest("path must have " + backupExt + " extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	allowed, err := allowedBackupDirs(cfg)
	if err != nil {
		return "", err
	}

	parent := filepath.Dir(absPath)
	if !isDirectlyIn(parent, allowed) {
		return "", errors.NewInvalidRequest(
			fmt.Sprintf("file must be directly in an allowed directory (no subdirectories); allowed: %v", allowed))
	}
	if info, err := os.Lstat(parent); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", errors.NewInvalidRequest("parent directory must not be a symlink")
	}

	info, err := os.Lstat(absPath)
	switch {
	case err == nil && info.Mode()&os.ModeSymlink != 0:
		return "", errors.NewInvalidRequest("path must not be a symlink")
	case os.IsNotExist(err) && access == accessRead:
		return "", errors.NewNotFound("file", path)
	}

	return absPath, nil
}

// allowedBackupDirs returns the default exports dir plus every absolute
// allowed_paths entry, with symlinked entries resolved to their targets.
func allowedBackupDirs(cfg *config.Config) ([]string, error) {
	def, err := DefaultExportsDir()
	if err != nil {
		return nil, err
	}
	dirs := []string{def}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, filepath.Clean(p))
			}
		}
	}

	result := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if info, err := os.Lstat(d); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(d)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			d = resolved
		}
		result = append(result, d)
	}
	return result, nil
}

func isDirectlyIn(dir string, allowed []string) bool {
	dir = filepath.Clean(dir)
	for _, a := range allowed {
		if dir == filepath.Clean(a) {
			return true
		}
	}
	return false
}

// DefaultExportsDir returns ~/.boltdiy/exports.
func DefaultExportsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(home, config.DirName, "exports"), nil
}

func containsTraversal(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == filepath.Separator
	}) {
		if part == ".." {
			return true
		}
	}
	return false
}
