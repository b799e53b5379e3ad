package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// backupSchemaVersion is written into every backup header.
const backupSchemaVersion = "1"

// ExportCodeInput contains parameters for the ExportCode operation.
type ExportCodeInput struct {
	Path string // optional, default: ~/.boltdiy/exports/code-<user>-<timestamp>.jsonl
}

// ExportCodeOutput contains the result of the ExportCode operation.
type ExportCodeOutput struct {
	Path       string    `json:"path"`
	Count      int       `json:"count"`
	ExportedAt time.Time `json:"exported_at"`
}

// backupHeader is the first line of a code backup file.
type backupHeader struct {
	Backup        bool      `json:"_boltdiy_code_backup"`
	SchemaVersion string    `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`
	UserID        string    `json:"user_id"`
}

// backupRecord is one code state in a backup file. Ids and owner are left
// out so a backup can be restored under a different account.
type backupRecord struct {
	FilePath     string    `json:"file_path"`
	Content      string    `json:"code_content"`
	Language     string    `json:"language"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// ExportCode writes every code state the caller owns to a JSONL file: a
// header line, then one record per path, newest first. The file is built
// under a temp name and renamed into place, so an existing backup at the
// same path survives a failed export.
func (f *Facade) ExportCode(ctx context.Context, p *domain.Principal, input ExportCodeInput) (*ExportCodeOutput, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	now := f.Now()
	path := input.Path
	if path == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, fmt.Sprintf("code-%s-%s%s", p.ShortID(8), now.UTC().Format("2006-01-02T150405"), backupExt))
	}

	absPath, err := validateBackupPath(path, accessWrite, f.cfg)
	if err != nil {
		return nil, err
	}

	items, err := f.ListCode(ctx, p)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := absPath + "." + hex.EncodeToString(suffix) + ".tmp"
	file, err := createNoFollow(tempPath)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	done := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !done {
			os.Remove(tempPath)
		}
	}()

	enc := json.NewEncoder(file)
	enc.SetEscapeHTML(false)
	header := backupHeader{
		Backup:        true,
		SchemaVersion: backupSchemaVersion,
		ExportedAt:    now,
		UserID:        p.ID,
	}
	if err := enc.Encode(header); err != nil {
		return nil, errors.NewInternal(err)
	}
	for _, c := range items {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}
		rec := backupRecord{
			FilePath:     c.FilePath,
			Content:      c.Content,
			Language:     c.Language,
			LastModified: c.LastModified,
		}
		if err := enc.Encode(rec); err != nil {
			return nil, errors.NewInternal(err)
		}
	}

	if err := file.Sync(); err != nil {
		return nil, errors.NewInternal(err)
	}
	// Windows refuses to rename an open file.
	if err := file.Close(); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if info, err := os.Lstat(absPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("path must not be a symlink")
	}
	if err := os.Rename(tempPath, absPath); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(absPath); statErr == nil {
				return nil, errors.NewInvalidRequest("export destination already exists; choose a new path or delete the existing file")
			}
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	done = true
	f.logger.InfoContext(ctx, "code exported", "user_id", p.ID, "path", absPath, "count", len(items))
	return &ExportCodeOutput{
		Path:       absPath,
		Count:      len(items),
		ExportedAt: now,
	}, nil
}
