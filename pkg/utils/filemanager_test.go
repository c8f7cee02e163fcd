package utils

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunLayout(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2025, 9, 26, 10, 15, 0, 0, time.UTC)

	layout := NewRunLayout(dir, started)
	require.NoError(t, layout.EnsureDirectories())

	assert.True(t, strings.HasPrefix(filepath.Base(layout.Root), "run_20250926_101500_"))
	assert.Len(t, layout.RunID, 26)
	assert.Equal(t, filepath.Join(layout.Root, "Weekly Scanned Copies Folder", "Week 39"), layout.WeekDir("Week 39"))
	assert.Equal(t,
		filepath.Join(layout.Root, "Weekly Scanned Copies Folder", "Week 39 - Monthly Reconciliation & Interest"),
		layout.MonthlyDir("Week 39"))
	assert.Equal(t, filepath.Join(layout.Root, "logs", "ldcc1_processor_20250926_101500.log"), layout.LogFile())

	for _, d := range []string{layout.ScannedCopies, layout.Reports, layout.Payments, layout.Logs, layout.Input} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// A second run at the same second gets its own folder.
	assert.NotEqual(t, layout.Root, NewRunLayout(dir, started).Root)
}

func TestWriteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "out.txt")

	write := func(s string) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := io.WriteString(w, s)
			return err
		}
	}

	require.NoError(t, WriteFile(ctx, path, Overwrite, write("first")))
	require.NoError(t, WriteFile(ctx, path, Overwrite, write("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	err = WriteFile(ctx, path, Exclusive, write("third"))
	assert.ErrorIs(t, err, os.ErrExist)

	boom := errors.New("boom")
	err = WriteFile(ctx, filepath.Join(t.TempDir(), "x.txt"), Overwrite, func(io.Writer) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestConfirmWritten_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	err := ConfirmWritten(context.Background(), path)
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestArchiveInput(t *testing.T) {
	src := filepath.Join(t.TempDir(), "benefits.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644))

	layout := NewRunLayout(t.TempDir(), time.Now())
	archived, err := layout.ArchiveInput(src)
	require.NoError(t, err)

	assert.FileExists(t, src)
	data, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestGenerateOutputFileName(t *testing.T) {
	layout := &RunLayout{RunID: "01ABC", Timestamp: "20250926_101500"}

	got := layout.GenerateOutputFileName("audit_trail_{timestamp}_{runid}_{week}.json", map[string]string{"week": "39"})
	assert.Equal(t, "audit_trail_20250926_101500_01ABC_39.json", got)
}

func TestWriteErrorLog(t *testing.T) {
	layout := NewRunLayout(t.TempDir(), time.Now())
	require.NoError(t, layout.EnsureDirectories())

	path, err := layout.WriteErrorLog(context.Background(), "benefits.csv", nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = layout.WriteErrorLog(context.Background(), "benefits.csv", []ErrorLogEntry{
		{Step: "validate", ErrorType: "InvalidValueError", ErrorMessage: "bad amount", RowNumber: 4, FieldName: "Benefit", FieldValue: "abc"},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Total Errors: 1")
	assert.Contains(t, string(data), "Row Number: 4")
	assert.Contains(t, string(data), "Value:      abc")
}
