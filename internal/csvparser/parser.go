// =============================================================================
// LDCC1 Processor - CSV Parser
// =============================================================================
//
// This module reads benefits spreadsheets exported as CSV into a types.Table.
//
// FEATURES:
//   - Delimiter detection (comma, semicolon, tab, pipe) from the header line
//   - UTF-8 byte order mark removal (Excel "CSV UTF-8" exports)
//   - Lenient quoting and variable field counts
//   - Blank rows skipped, blank headers named Column_N
//
// =============================================================================

package csvparser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/ldcc1-processor/internal/types"
)

// ErrEmpty is returned when the input has no header row.
var ErrEmpty = errors.New("CSV file is empty")

// ErrNoData is returned when the input has a header row but no data rows.
var ErrNoData = errors.New("CSV file has no data rows")

// =============================================================================
// MAIN PARSING FUNCTIONS
// =============================================================================

// Parse reads a CSV file from disk.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//
// RETURNS:
//   - A table with cleaned headers and one entry per non-blank data row.
//   - An error if the file cannot be opened or parsed, or holds no data.
func Parse(filePath string) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := ParseReader(file)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath
	return table, nil
}

// ParseReader reads CSV data from r.
func ParseReader(r io.Reader) (*types.Table, error) {
	reader := bufio.NewReader(r)

	// Skip a UTF-8 byte order mark.
	if bom, err := reader.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = reader.Discard(3)
	}

	firstLine, _ := reader.Peek(4096)

	csvReader := csv.NewReader(reader)
	configureReader(csvReader, detectDelimiter(firstLine))

	var (
		table   *types.Table
		headers []string
	)
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if isRowEmpty(row) {
			continue
		}

		// The first non-blank record is the header row.
		if table == nil {
			headers = cleanHeaders(row)
			table = &types.Table{
				Format:  "csv",
				Headers: headers,
			}
			continue
		}

		line, _ := csvReader.FieldPos(0)
		table.Rows = append(table.Rows, normaliseRow(row, len(headers)))
		table.RowNumbers = append(table.RowNumbers, line)
	}

	if table == nil {
		return nil, ErrEmpty
	}

	if len(table.Rows) == 0 {
		return nil, ErrNoData
	}

	return table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// configureReader configures the csv.Reader for spreadsheet exports.
func configureReader(reader *csv.Reader, delimiter rune) {
	reader.Comma = delimiter

	// Allow variable number of fields per record.
	reader.FieldsPerRecord = -1

	// Allow lazy quotes (non-standard quoting).
	reader.LazyQuotes = true

	reader.TrimLeadingSpace = true
}

// detectDelimiter picks the most frequent candidate delimiter on the first
// line, defaulting to a comma.
func detectDelimiter(sample []byte) rune {
	line := sample
	if idx := bytes.IndexByte(sample, '\n'); idx >= 0 {
		line = sample[:idx]
	}

	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, candidate := range []rune{';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(candidate))); n > bestCount {
			best, bestCount = candidate, n
		}
	}
	return best
}

// cleanHeaders trims header names and names blank columns Column_N.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))

	for i, header := range headers {
		header = strings.TrimSpace(header)

		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}

		cleaned[i] = header
	}

	return cleaned
}

// normaliseRow trims cells and pads or truncates the row to width.
func normaliseRow(row []string, width int) []string {
	out := make([]string, width)
	for i := 0; i < width && i < len(row); i++ {
		out[i] = strings.TrimSpace(row[i])
	}
	return out
}

// isRowEmpty checks if all cells in a row are empty.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
