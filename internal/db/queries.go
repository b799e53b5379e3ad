package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const codeStateColumns = `id, user_id, file_path, code_content, language, last_modified, created_at, updated_at`

// UpsertCodeState inserts c, or overwrites content, language and timestamps of
// the existing row with the same (user_id, file_path). The id and created_at of
// an existing row are kept. Returns the stored row.
func UpsertCodeState(ctx context.Context, db *sql.DB, c *domain.CodeState) (*domain.CodeState, error) {
	query := `
		INSERT INTO user_code_states (` + codeStateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, file_path) DO UPDATE SET
			code_content  = excluded.code_content,
			language      = excluded.language,
			last_modified = excluded.last_modified,
			updated_at    = excluded.updated_at
		RETURNING ` + codeStateColumns

	row := db.QueryRowContext(ctx, query,
		c.ID, c.UserID, c.FilePath, c.Content, c.Language,
		toMillis(c.LastModified), toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	stored, err := scanCodeState(row)
	if err != nil {
		return nil, errors.NewStoreFailure("upsert code state", err)
	}
	return stored, nil
}

// GetCodeState returns the most recently modified row for (userID, filePath).
// Returns a NOT_FOUND error when no row exists.
func GetCodeState(ctx context.Context, db *sql.DB, userID, filePath string) (*domain.CodeState, error) {
	query := `
		SELECT ` + codeStateColumns + `
		FROM user_code_states
		WHERE user_id = ? AND file_path = ?
		ORDER BY last_modified DESC
		LIMIT 1
	`

	c, err := scanCodeState(db.QueryRowContext(ctx, query, userID, filePath))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("code state", filePath)
	}
	if err != nil {
		return nil, errors.NewStoreFailure("load code state", err)
	}
	return c, nil
}

// ListCodeStates returns every code state owned by userID, newest last_modified first.
func ListCodeStates(ctx context.Context, db *sql.DB, userID string) ([]domain.CodeState, error) {
	query := `
		SELECT ` + codeStateColumns + `
		FROM user_code_states
		WHERE user_id = ?
		ORDER BY last_modified DESC, id DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.NewStoreFailure("list code states", err)
	}
	defer rows.Close()

	items := []domain.CodeState{}
	for rows.Next() {
		c, err := scanCodeState(rows)
		if err != nil {
			return nil, errors.NewStoreFailure("list code states", err)
		}
		items = append(items, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailure("list code states", err)
	}
	return items, nil
}

// InsertSession stores a new session row.
func InsertSession(ctx context.Context, db *sql.DB, s *domain.Session) error {
	query := `
		INSERT INTO user_sessions (id, user_id, session_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		s.ID, s.UserID, s.Name, toMillis(s.CreatedAt), toMillis(s.UpdatedAt),
	)
	if err != nil {
		return errors.NewStoreFailure("create session", err)
	}
	return nil
}

// ListSessions returns every session owned by userID, newest first.
func ListSessions(ctx context.Context, db *sql.DB, userID string) ([]domain.Session, error) {
	query := `
		SELECT id, user_id, session_name, created_at, updated_at
		FROM user_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.NewStoreFailure("list sessions", err)
	}
	defer rows.Close()

	items := []domain.Session{}
	for rows.Next() {
		var (
			s                    domain.Session
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Name, &createdAt, &updatedAt); err != nil {
			return nil, errors.NewStoreFailure("list sessions", err)
		}
		s.CreatedAt = fromMillis(createdAt)
		s.UpdatedAt = fromMillis(updatedAt)
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailure("list sessions", err)
	}
	return items, nil
}

// scanCodeState scans a single row into a CodeState.
func scanCodeState(row rowScanner) (*domain.CodeState, error) {
	var (
		c                                  domain.CodeState
		lastModified, createdAt, updatedAt int64
	)

	err := row.Scan(
		&c.ID, &c.UserID, &c.FilePath, &c.Content, &c.Language,
		&lastModified, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.LastModified = fromMillis(lastModified)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// toMillis converts a time to Unix milliseconds for storage.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts stored Unix milliseconds back to a UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
