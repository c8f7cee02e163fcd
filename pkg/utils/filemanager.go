// =============================================================================
// LDCC1 Processor - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for a processing run:
//   - Run folder layout (scanned copies, reports, payment output, logs)
//   - Input archival (a copy of every input is kept with the run)
//   - Confirmed artifact writes
//   - Error log generation
//   - File naming utilities
//
// RUN LAYOUT:
//   <output_dir>/run_<yyyymmdd_hhmmss>_<ulid>/
//     Weekly Scanned Copies Folder/Week NN/
//     Weekly Scanned Copies Folder/Week NN - Monthly Reconciliation & Interest/
//     reports/
//     payment_output/
//     logs/ldcc1_processor_<yyyymmdd_hhmmss>.log
//     input/
//
// Every run gets a new folder, so nothing from an earlier run is overwritten.
//
// =============================================================================

package utils

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"
)

// TimestampFormat is used in run folder and file names.
const TimestampFormat = "20060102_150405"

const (
	scannedCopiesDir = "Weekly Scanned Copies Folder"
	monthlySuffix    = " - Monthly Reconciliation & Interest"
)

// =============================================================================
// RUN LAYOUT
// =============================================================================

// RunLayout holds the directories of one processing run.
type RunLayout struct {
	// RunID uniquely identifies the run.
	RunID string

	// Timestamp is the run start, formatted with TimestampFormat.
	Timestamp string

	Root          string
	ScannedCopies string
	Reports       string
	Payments      string
	Logs          string
	Input         string
}

// NewRunLayout computes the layout of a new run under outputDir. Nothing is
// created until EnsureDirectories is called.
func NewRunLayout(outputDir string, started time.Time) *RunLayout {
	ts := started.Format(TimestampFormat)
	id := ulid.Make().String()
	root := filepath.Join(outputDir, fmt.Sprintf("run_%s_%s", ts, id))

	return &RunLayout{
		RunID:         id,
		Timestamp:     ts,
		Root:          root,
		ScannedCopies: filepath.Join(root, scannedCopiesDir),
		Reports:       filepath.Join(root, "reports"),
		Payments:      filepath.Join(root, "payment_output"),
		Logs:          filepath.Join(root, "logs"),
		Input:         filepath.Join(root, "input"),
	}
}

// EnsureDirectories creates all run directories if they don't exist.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (l *RunLayout) EnsureDirectories() error {
	dirs := []string{
		l.ScannedCopies,
		l.Reports,
		l.Payments,
		l.Logs,
		l.Input,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// WeekDir is the scanned copies folder of a week, e.g. "Week 07".
func (l *RunLayout) WeekDir(weekLabel string) string {
	return filepath.Join(l.ScannedCopies, weekLabel)
}

// MonthlyDir is the monthly reconciliation folder, named after the week the
// interest is booked in.
func (l *RunLayout) MonthlyDir(weekLabel string) string {
	return filepath.Join(l.ScannedCopies, weekLabel+monthlySuffix)
}

// LogFile is the path of the run log.
func (l *RunLayout) LogFile() string {
	return filepath.Join(l.Logs, fmt.Sprintf("ldcc1_processor_%s.log", l.Timestamp))
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInput copies an input file into the run's input folder.
//
// RETURNS:
//   - The path to the archived copy.
//   - An error if archival fails.
//
// NOTE: Inputs are copied, not moved, so the caller's file stays in place.
func (l *RunLayout) ArchiveInput(filePath string) (string, error) {
	archivePath := filepath.Join(l.Input, filepath.Base(filePath))

	if err := os.MkdirAll(l.Input, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := copyFile(filePath, archivePath); err != nil {
		return "", fmt.Errorf("failed to copy file to archive: %w", err)
	}

	return archivePath, nil
}

// =============================================================================
// CONFIRMED WRITES
// =============================================================================

// WriteMode controls what happens when the target file already exists.
type WriteMode int

const (
	// Overwrite truncates an existing file.
	Overwrite WriteMode = iota

	// Exclusive fails if the file exists.
	Exclusive
)

// ErrNotConfirmed is returned when a written file cannot be found on disk
// with content after the confirmation retries.
var ErrNotConfirmed = errors.New("file not confirmed on disk")

// WriteFile writes a file through write, syncs and closes it, then confirms
// it is on disk before returning. Parent directories are created.
func WriteFile(ctx context.Context, path string, mode WriteMode, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == Exclusive {
		flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
	}

	if err := writeAndSync(path, flags, write); err != nil {
		return err
	}

	return ConfirmWritten(ctx, path)
}

func writeAndSync(path string, flags int, write func(w io.Writer) error) (err error) {
	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()

	writer := bufio.NewWriter(file)
	if err := write(writer); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	return file.Sync()
}

// ConfirmWritten waits, with a bounded exponential backoff, until path exists
// with non-zero size.
func ConfirmWritten(ctx context.Context, path string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 2 * time.Second

	err := backoff.Retry(func() error {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return ErrNotConfirmed
		case err != nil:
			return backoff.Permanent(err)
		case info.Size() == 0:
			return ErrNotConfirmed
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, 8), ctx))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

// =============================================================================
// OUTPUT FILE NAMING
// =============================================================================

// GenerateOutputFileName fills a file name template.
//
// PARAMETERS:
//   - format: The format string for the file name.
//             Placeholders:
//               {timestamp} - The run timestamp (YYYYMMDD_HHMMSS)
//               {runid}     - The run id
//   - params: Extra placeholder values, e.g. {"week": "39"} for {week}.
//
// RETURNS:
//   - The generated file name.
//
// EXAMPLE:
//   format: "processing_summary_{timestamp}_{runid}.json"
//   output: "processing_summary_20250926_101500_01K5Z7....json"
func (l *RunLayout) GenerateOutputFileName(format string, params map[string]string) string {
	replacements := map[string]string{
		"{timestamp}": l.Timestamp,
		"{runid}":     l.RunID,
	}

	for key, value := range params {
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}

	return result
}

// =============================================================================
// ERROR LOG GENERATION
// =============================================================================

// ErrorLogEntry represents a single error log entry.
type ErrorLogEntry struct {
	Timestamp    time.Time
	Step         string
	ErrorType    string
	ErrorMessage string
	RowNumber    int
	FieldName    string
	FieldValue   string
}

// WriteErrorLog writes error entries to reports/error_log_<timestamp>.txt.
//
// RETURNS:
//   - The path to the error log file, or "" when there are no entries.
//   - An error if writing fails.
func (l *RunLayout) WriteErrorLog(ctx context.Context, inputFile string, entries []ErrorLogEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	logPath := filepath.Join(l.Reports, l.GenerateOutputFileName("error_log_{timestamp}.txt", nil))

	err := WriteFile(ctx, logPath, Overwrite, func(w io.Writer) error {
		header := fmt.Sprintf("LDCC1 Processor - Error Log\n"+
			"Run:          %s\n"+
			"Input:        %s\n"+
			"Total Errors: %d\n"+
			"================================================================================\n\n",
			l.RunID,
			inputFile,
			len(entries))
		if _, err := io.WriteString(w, header); err != nil {
			return err
		}

		for i, entry := range entries {
			entryStr := fmt.Sprintf("Error #%d\n"+
				"  Timestamp:  %s\n"+
				"  Step:       %s\n"+
				"  Error Type: %s\n"+
				"  Message:    %s\n",
				i+1,
				entry.Timestamp.Format("2006-01-02 15:04:05"),
				entry.Step,
				entry.ErrorType,
				entry.ErrorMessage)

			if entry.RowNumber > 0 {
				entryStr += fmt.Sprintf("  Row Number: %d\n", entry.RowNumber)
			}
			if entry.FieldName != "" {
				entryStr += fmt.Sprintf("  Field:      %s\n", entry.FieldName)
			}
			if entry.FieldValue != "" {
				entryStr += fmt.Sprintf("  Value:      %s\n", entry.FieldValue)
			}

			if _, err := io.WriteString(w, entryStr+"\n"); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "================================================================================\n"+
			"End of Error Log\n")
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to write error log: %w", err)
	}

	return logPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	_, err = io.Copy(destFile, sourceFile)
	if err != nil {
		return err
	}

	return destFile.Sync()
}
