package domain

import "time"

// Defaults applied when a save or load omits the path or language.
const (
	DefaultFilePath = "/main.js"
	DefaultLanguage = "javascript"
)

// CodeState is the persisted snapshot of a user's editable content for one
// file path. At most one row exists per (UserID, FilePath).
type CodeState struct {
	// ID is a ULID assigned on first save; later saves keep it
	ID string `json:"id"`

	// UserID owns the row
	UserID string `json:"user_id"`

	// FilePath is the normalized path, e.g. "/main.js"
	FilePath string `json:"file_path"`

	// Content is the full editor buffer
	Content string `json:"code_content"`

	// Language is a lowercase language tag, e.g. "javascript"
	Language string `json:"language"`

	// LastModified is overwritten on every save
	LastModified time.Time `json:"last_modified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
