package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ojasdixit/boltdiy/internal/errors"
)

func writeBackup(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

const testHeader = `{"_boltdiy_code_backup":true,"schema_version":"1"}`

func TestImportCode_ExportRoundTripAcrossUsers(t *testing.T) {
	f, _, _ := testSetup(t)
	dir := t.TempDir()
	f.cfg.AllowedPaths = []string{dir}
	ctx := context.Background()

	_, err := f.SaveCode(ctx, alice, SaveCodeInput{Content: "one", Path: "/one.js"})
	require.NoError(t, err)
	_, err = f.SaveCode(ctx, alice, SaveCodeInput{Content: "two", Path: "/two.py", Language: "python"})
	require.NoError(t, err)

	exported, err := f.ExportCode(ctx, alice, ExportCodeInput{Path: filepath.Join(dir, "a.jsonl")})
	require.NoError(t, err)

	out, err := f.ImportCode(ctx, bob, ImportCodeInput{Path: exported.Path})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Imported)
	assert.Empty(t, out.Errors)

	got, err := f.LoadCode(ctx, bob, "/two.py")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "two", got.Content)
	assert.Equal(t, "python", got.Language)
	assert.Equal(t, bob.ID, got.UserID)
}

func TestImportCode_Modes(t *testing.T) {
	f, _, _ := testSetup(t)
	dir := t.TempDir()
	f.cfg.AllowedPaths = []string{dir}
	ctx := context.Background()

	path := writeBackup(t, dir, "b.jsonl", testHeader,
		`{"file_path":"/main.js","code_content":"from backup"}`,
		`{"file_path":"/new.js","code_content":"new"}`)

	_, err := f.SaveCode(ctx, alice, SaveCodeInput{Content: "local"})
	require.NoError(t, err)

	out, err := f.ImportCode(ctx, alice, ImportCodeInput{Path: path, Mode: ImportModeSkip})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Imported)
	assert.Equal(t, 1, out.Skipped)
	got, _ := f.LoadCode(ctx, alice, "/main.js")
	assert.Equal(t, "local", got.Content)

	out, err = f.ImportCode(ctx, alice, ImportCodeInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Imported)
	got, _ = f.LoadCode(ctx, alice, "/main.js")
	assert.Equal(t, "from backup", got.Content)

	items, err := f.ListCode(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestImportCode_BadLinesReported(t *testing.T) {
	f, _, _ := testSetup(t)
	dir := t.TempDir()
	f.cfg.AllowedPaths = []string{dir}
	f.cfg.CodeMaxBytes = 4

	path := writeBackup(t, dir, "bad.jsonl", testHeader,
		`not json`,
		``,
		`{"code_content":"x"}`,
		`{"file_path":"/big.js","code_content":"too big"}`,
		`{"file_path":"/ok.js","code_content":"ok"}`)

	out, err := f.ImportCode(context.Background(), alice, ImportCodeInput{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Imported)
	require.Len(t, out.Errors, 3)
	assert.Equal(t, 2, out.Errors[0].Line)
	assert.Equal(t, "INVALID_REQUEST", out.Errors[0].Code)
	assert.Equal(t, 4, out.Errors[1].Line)
	assert.Equal(t, 5, out.Errors[2].Line)
	assert.Equal(t, "/big.js", out.Errors[2].FilePath)
	assert.Equal(t, "CONTENT_TOO_LARGE", out.Errors[2].Code)
}

func TestImportCode_Validation(t *testing.T) {
	f, _, _ := testSetup(t)
	dir := t.TempDir()
	f.cfg.AllowedPaths = []string{dir}
	ctx := context.Background()

	noHeader := writeBackup(t, dir, "nohdr.jsonl", `{"file_path":"/a.js","code_content":"a"}`)
	empty := writeBackup(t, dir, "empty.jsonl", ``)

	tests := []struct {
		name  string
		input ImportCodeInput
		code  errors.ErrorCode
	}{
		{"missing path", ImportCodeInput{}, errors.ErrInvalidRequest},
		{"bad mode", ImportCodeInput{Path: noHeader, Mode: "rename"}, errors.ErrInvalidRequest},
		{"missing file", ImportCodeInput{Path: filepath.Join(dir, "nope.jsonl")}, errors.ErrNotFound},
		{"no header", ImportCodeInput{Path: noHeader}, errors.ErrInvalidRequest},
		{"empty file", ImportCodeInput{Path: empty}, errors.ErrInvalidRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ImportCode(ctx, alice, tc.input)
			assert.True(t, errors.Is(err, tc.code), "got %v", err)
		})
	}

	_, err := f.ImportCode(ctx, nil, ImportCodeInput{Path: noHeader})
	assert.True(t, errors.Is(err, errors.ErrUnauthenticated))

	items, err := f.ListCode(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, items, "rejected files restore nothing")
}
