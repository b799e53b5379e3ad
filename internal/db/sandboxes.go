package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/Ojasdixit/boltdiy/internal/domain"
	"github.com/Ojasdixit/boltdiy/internal/errors"
)

const sandboxColumns = `id, user_id, sandbox_url, status, created_at, expires_at`

// InsertSandbox stores a new sandbox row.
func InsertSandbox(ctx context.Context, db *sql.DB, s *domain.Sandbox) error {
	if !s.Status.Valid() {
		return errors.NewInvalidRequest("unknown sandbox status: " + string(s.Status))
	}
	query := `
		INSERT INTO sandboxes (` + sandboxColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		s.ID, s.UserID, s.URL, string(s.Status), toMillis(s.CreatedAt), toMillis(s.ExpiresAt),
	)
	if err != nil {
		return errors.NewStoreFailure("create sandbox", err)
	}
	return nil
}

// GetActiveSandbox returns the most recently created sandbox for userID whose
// status is active and whose expiry is not before now.
// Returns a NOT_FOUND error when there is none.
func GetActiveSandbox(ctx context.Context, db *sql.DB, userID string, now time.Time) (*domain.Sandbox, error) {
	query := `
		SELECT ` + sandboxColumns + `
		FROM sandboxes
		WHERE user_id = ? AND status = ? AND expires_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	row := db.QueryRowContext(ctx, query, userID, string(domain.SandboxActive), toMillis(now))
	s, err := scanSandbox(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFound("active sandbox", userID)
	}
	if err != nil {
		return nil, errors.NewStoreFailure("load active sandbox", err)
	}
	return s, nil
}

// ListSandboxes returns every sandbox owned by userID regardless of status, newest first.
func ListSandboxes(ctx context.Context, db *sql.DB, userID string) ([]domain.Sandbox, error) {
	query := `
		SELECT ` + sandboxColumns + `
		FROM sandboxes
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, errors.NewStoreFailure("list sandboxes", err)
	}
	defer rows.Close()

	items := []domain.Sandbox{}
	for rows.Next() {
		s, err := scanSandbox(rows)
		if err != nil {
			return nil, errors.NewStoreFailure("list sandboxes", err)
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreFailure("list sandboxes", err)
	}
	return items, nil
}

// ExpireSandboxes marks every sandbox with expires_at < now as expired and
// returns how many rows changed. Rows already expired are not touched, so a
// repeated call with the same now changes nothing. An empty userID sweeps all users.
func ExpireSandboxes(ctx context.Context, db *sql.DB, userID string, now time.Time) (int, error) {
	query := `
		UPDATE sandboxes
		SET status = ?
		WHERE expires_at < ? AND status != ?
	`
	args := []any{string(domain.SandboxExpired), toMillis(now), string(domain.SandboxExpired)}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.NewStoreFailure("expire sandboxes", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewStoreFailure("expire sandboxes", err)
	}
	return int(rowsAffected), nil
}

// SetSandboxStatus updates the status of one sandbox owned by userID.
func SetSandboxStatus(ctx context.Context, db *sql.DB, userID, id string, status domain.SandboxStatus) error {
	if !status.Valid() {
		return errors.NewInvalidRequest("unknown sandbox status: " + string(status))
	}
	result, err := db.ExecContext(ctx,
		`UPDATE sandboxes SET status = ? WHERE id = ? AND user_id = ?`,
		string(status), id, userID,
	)
	if err != nil {
		return errors.NewStoreFailure("update sandbox status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewStoreFailure("update sandbox status", err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("sandbox", id)
	}
	return nil
}

// scanSandbox scans a single row into a Sandbox.
func scanSandbox(row rowScanner) (*domain.Sandbox, error) {
	var (
		s                    domain.Sandbox
		status               string
		createdAt, expiresAt int64
	)

	if err := row.Scan(&s.ID, &s.UserID, &s.URL, &status, &createdAt, &expiresAt); err != nil {
		return nil, err
	}

	s.Status = domain.SandboxStatus(status)
	s.CreatedAt = fromMillis(createdAt)
	s.ExpiresAt = fromMillis(expiresAt)
	return &s, nil
}
