package ops

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// ImportMode controls what happens when a backup record names a path the
// caller already has saved.
type ImportMode string

const (
	ImportModeReplace ImportMode = "replace" // overwrite the saved content
	ImportModeSkip    ImportMode = "skip"    // keep the saved content
)

// ImportCodeInput contains parameters for the ImportCode operation.
type ImportCodeInput struct {
	Path string     // required
	Mode ImportMode // default: replace
}

// ImportCodeOutput contains the result of the ImportCode operation.
type ImportCodeOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError describes one backup line that could not be restored.
type ImportError struct {
	Line     int    `json:"line"`
	FilePath string `json:"file_path,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// ImportCode restores code states from a file written by ExportCode into the
// caller's account. Restored rows go through SaveCode, so they get the usual
// validation and last_modified is the import time. Bad lines are reported in
// Errors and do not stop the import; a store failure does.
func (f *Facade) ImportCode(ctx context.Context, p *domain.Principal, input ImportCodeInput) (*ImportCodeOutput, error) {
	if err := authorize(p); err != nil {
		return nil, err
	}

	mode := input.Mode
	if mode == "" {
		mode = ImportModeReplace
	}
	if mode != ImportModeReplace && mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: replace, skip")
	}

	absPath, err := validateBackupPath(input.Path, accessRead, f.cfg)
	if err != nil {
		return nil, err
	}

	file, err := openNoFollow(absPath)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) || errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), f.maxBackupLine())

	out := &ImportCodeOutput{Errors: []ImportError{}}
	line := 0
	sawHeader := false
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		if !sawHeader {
			var h backupHeader
			if err := json.Unmarshal(raw, &h); err != nil || !h.Backup {
				return nil, errors.NewInvalidRequest("not a code backup file: missing header")
			}
			sawHeader = true
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}

		var rec backupRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			out.Errors = append(out.Errors, ImportError{
				Line:    line,
				Code:    string(errors.ErrInvalidRequest),
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}
		if strings.TrimSpace(rec.FilePath) == "" {
			out.Errors = append(out.Errors, ImportError{
				Line:    line,
				Code:    string(errors.ErrInvalidRequest),
				Message: "file_path is required",
			})
			continue
		}

		if mode == ImportModeSkip {
			existing, err := f.LoadCode(ctx, p, rec.FilePath)
			if err != nil && !errors.Is(err, errors.ErrInvalidRequest) {
				return nil, err
			}
			if existing != nil {
				out.Skipped++
				continue
			}
		}

		_, err := f.SaveCode(ctx, p, SaveCodeInput{
			Content:  rec.Content,
			Language: rec.Language,
			Path:     rec.FilePath,
		})
		switch {
		case err == nil:
			out.Imported++
		case errors.Is(err, errors.ErrStoreFailure):
			return nil, err
		default:
			out.Errors = append(out.Errors, ImportError{
				Line:     line,
				FilePath: rec.FilePath,
				Code:     string(errors.CodeOf(err)),
				Message:  err.Error(),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("failed to read import file: %v", err))
	}
	if !sawHeader {
		return nil, errors.NewInvalidRequest("not a code backup file: missing header")
	}

	f.logger.InfoContext(ctx, "code imported",
		"user_id", p.ID, "path", absPath, "imported", out.Imported, "skipped", out.Skipped, "errors", len(out.Errors))
	return out, nil
}

// maxBackupLine bounds a single record line. JSON escaping can grow content
// up to six times (\u00XX), plus room for the other fields.
func (f *Facade) maxBackupLine() int {
	if f.cfg.CodeMaxBytes <= 0 {
		return 64 << 20
	}
	return 6*f.cfg.CodeMaxBytes + 64*1024
}
