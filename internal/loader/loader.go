// =============================================================================
// LDCC1 Processor - Data Loader
// =============================================================================
//
// This module detects the input format and delegates to the CSV or Excel
// parser.
//
// FORMAT DETECTION:
//   1. The extension decides for .csv and .xlsx.
//   2. .xls and anything else is sniffed from the first bytes, because files
//      saved from the benefits portal often carry the wrong extension:
//        PK\x03\x04         -> xlsx (zip container)
//        D0 CF 11 E0 A1 B1  -> xls  (OLE2 compound document)
//        printable text     -> csv
//
// =============================================================================

package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/ldcc1-processor/internal/csvparser"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/internal/xlsxparser"
)

// =============================================================================
// ERRORS
// =============================================================================

// UnsupportedFormatError is returned when the input is neither CSV nor Excel.
type UnsupportedFormatError struct {
	Path      string
	Extension string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported input format %q for %s (expected .csv, .xlsx or .xls)", e.Extension, e.Path)
}

// FileReadError is returned when the input cannot be read: missing file,
// permission denied, corrupt workbook or no data.
type FileReadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileReadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot read %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("cannot read %s: %s", e.Path, e.Reason)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}

// =============================================================================
// LOADING
// =============================================================================

// Format names.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
)

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// Options controls loading.
type Options struct {
	// Sheet selects the worksheet of Excel inputs.
	Sheet string
}

// Load reads the input file into a table.
func Load(path string, opts Options) (*types.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &FileReadError{Path: path, Reason: statReason(err), Err: err}
	}
	if info.IsDir() {
		return nil, &FileReadError{Path: path, Reason: "is a directory"}
	}
	if info.Size() == 0 {
		return nil, &FileReadError{Path: path, Reason: "file is empty"}
	}

	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	var table *types.Table
	switch format {
	case FormatCSV:
		table, err = csvparser.Parse(path)
	case FormatXLSX:
		table, err = xlsxparser.Parse(path, opts.Sheet)
	case FormatXLS:
		table, err = xlsxparser.ParseXLS(path, opts.Sheet)
	}
	if err != nil {
		return nil, &FileReadError{Path: path, Reason: parseReason(err), Err: err}
	}

	return table, nil
}

// DetectFormat determines the file format from its extension, sniffing the
// content when the extension is ambiguous.
func DetectFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}

	head, err := readHead(path, 512)
	if err != nil {
		return "", &FileReadError{Path: path, Reason: statReason(err), Err: err}
	}

	switch {
	case bytes.HasPrefix(head, zipMagic):
		return FormatXLSX, nil
	case bytes.HasPrefix(head, oleMagic):
		return FormatXLS, nil
	case looksLikeText(head):
		return FormatCSV, nil
	}

	return "", &UnsupportedFormatError{Path: path, Extension: ext}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

// looksLikeText reports whether the sample is UTF-8 text without control
// characters other than whitespace.
func looksLikeText(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	sample = bytes.TrimPrefix(sample, []byte{0xEF, 0xBB, 0xBF})

	// The sample may end mid-rune.
	for len(sample) > 0 && !utf8.Valid(sample) {
		sample = sample[:len(sample)-1]
	}
	if len(sample) == 0 {
		return false
	}

	for _, r := range string(sample) {
		if r < 0x20 && r != '\n' && r != '\r' && r != '\t' {
			return false
		}
	}
	return true
}

func statReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "file not found"
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	default:
		return "cannot open file"
	}
}

func parseReason(err error) string {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "permission denied"
	case errors.Is(err, csvparser.ErrEmpty):
		return "file is empty"
	case errors.Is(err, csvparser.ErrNoData), errors.Is(err, xlsxparser.ErrNoData):
		return "no data rows"
	case errors.Is(err, xlsxparser.ErrNoSheets):
		return "workbook has no sheets"
	default:
		return "file is corrupt or unreadable"
	}
}
