// =============================================================================
// LDCC1 Processor - PDF Writer Module
// =============================================================================
//
// This module renders the procedure documents as PDFs. Every document is a
// fixed template filled with data, so the same inputs always produce the
// same bytes.
//
// DOCUMENT STRUCTURE:
//
//   +--------------------------------------------------------------+
//   | Title                                            (bold, 14pt) |
//   | Subtitle lines                                         (10pt) |
//   |--------------------------------------------------------------|
//   | Section heading                                  (bold, 11pt) |
//   | Paragraphs                                                    |
//   | +----------+-----------+-----------+                          |
//   | | Column   | Column    | Column    |     (header row, shaded) |
//   | +----------+-----------+-----------+                          |
//   | | cell     |      £0.00|      £0.00|                          |
//   | | Total    |      £0.00|      £0.00|       (totals row, bold) |
//   | +----------+-----------+-----------+                          |
//   | ...                                                           |
//   | Footer lines                                                  |
//   |                                     Page n of N     (footer)  |
//   +--------------------------------------------------------------+
//
// DETERMINISM:
//   - Creation and modification dates are set from the options, never the
//     wall clock.
//   - Catalog sorting is enabled so internal maps are written in order.
//   - Only the core fonts are used; nothing is embedded.
//
// =============================================================================

package pdfwriter

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

// =============================================================================
// PDF GENERATION OPTIONS
// =============================================================================

// GenerateOptions contains options for PDF generation.
type GenerateOptions struct {
	// Orientation is "P" (portrait) or "L" (landscape).
	// Default: "L", as the worksheets were printed.
	Orientation string

	// PageSize is the paper size.
	// Default: "A4"
	PageSize string

	// FontFamily is a core font family.
	// Default: "Helvetica"
	FontFamily string

	// FontSize is the body font size in points.
	// Default: 10
	FontSize float64

	// Author is written to the document properties.
	Author string

	// CreationDate is written to the document properties. Set it to the
	// processing date so output is reproducible.
	CreationDate time.Time
}

// DefaultGenerateOptions returns the default generation options.
func DefaultGenerateOptions() GenerateOptions {
	return GenerateOptions{
		Orientation:  "L",
		PageSize:     "A4",
		FontFamily:   "Helvetica",
		FontSize:     10,
		Author:       "LDCC1 Processor",
		CreationDate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// DOCUMENT MODEL
// =============================================================================

// Align is a cell alignment.
type Align string

const (
	AlignLeft   Align = "L"
	AlignCenter Align = "C"
	AlignRight  Align = "R"
)

// Column describes one table column.
type Column struct {
	Header string

	// Width is a relative weight; the columns share the printable width.
	Width float64

	Align Align
}

// Table is a grid of text cells.
type Table struct {
	Columns []Column
	Rows    [][]string

	// Totals, if set, is printed as a bold final row.
	Totals []string
}

// Section is a block of the document.
type Section struct {
	Heading    string
	Paragraphs []string
	Table      *Table

	// NewPage starts the section on a new page.
	NewPage bool
}

// Document is a complete PDF document.
type Document struct {
	Title    string
	Subtitle []string
	Sections []Section
	Footer   []string
}

// =============================================================================
// PDF GENERATION FUNCTIONS
// =============================================================================

// Generate renders a document with the default options.
func Generate(doc Document) ([]byte, error) {
	return GenerateWithOptions(doc, DefaultGenerateOptions())
}

// GenerateWithOptions renders a document.
//
// PARAMETERS:
//   - doc: The document to render.
//   - options: Page and font settings.
//
// RETURNS:
//   - The PDF as a byte slice.
//   - An error if rendering fails.
//
// GENERATION PROCESS:
//   1. Create the page and set the fixed document properties
//   2. Write the title block
//   3. For each section: heading, paragraphs, then the table
//   4. Write the footer lines
//   5. Serialise to a buffer
func GenerateWithOptions(doc Document, options GenerateOptions) ([]byte, error) {
	pdf := fpdf.New(options.Orientation, "mm", options.PageSize, "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(options.CreationDate)
	pdf.SetModificationDate(options.CreationDate)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")

	// Core fonts are cp1252; "£" needs translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(tr(doc.Title), false)
	pdf.SetAuthor(tr(options.Author), false)
	pdf.SetCreator(tr(options.Author), false)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(options.FontFamily, "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pdf.AddPage()
	w := &pageWriter{pdf: pdf, tr: tr, options: options}

	w.title(doc.Title, doc.Subtitle)
	for _, section := range doc.Sections {
		w.section(section)
	}
	if len(doc.Footer) > 0 {
		pdf.Ln(4)
		for _, line := range doc.Footer {
			w.paragraph(line)
		}
	}

	var buffer bytes.Buffer
	if err := pdf.Output(&buffer); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	return buffer.Bytes(), nil
}

// =============================================================================
// PAGE WRITING
// =============================================================================

type pageWriter struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	options GenerateOptions
}

func (w *pageWriter) lineHeight() float64 {
	return w.options.FontSize * 0.55
}

func (w *pageWriter) printableWidth() float64 {
	pageW, _ := w.pdf.GetPageSize()
	left, _, right, _ := w.pdf.GetMargins()
	return pageW - left - right
}

func (w *pageWriter) title(title string, subtitle []string) {
	w.pdf.SetFont(w.options.FontFamily, "B", 14)
	w.pdf.CellFormat(0, 8, w.tr(title), "", 1, "L", false, 0, "")

	w.pdf.SetFont(w.options.FontFamily, "", w.options.FontSize)
	for _, line := range subtitle {
		w.pdf.CellFormat(0, w.lineHeight(), w.tr(line), "", 1, "L", false, 0, "")
	}

	x, y := w.pdf.GetXY()
	w.pdf.Line(x, y+1, x+w.printableWidth(), y+1)
	w.pdf.Ln(4)
}

func (w *pageWriter) section(s Section) {
	if s.NewPage {
		w.pdf.AddPage()
	}
	if s.Heading != "" {
		w.pdf.SetFont(w.options.FontFamily, "B", 11)
		w.pdf.CellFormat(0, 7, w.tr(s.Heading), "", 1, "L", false, 0, "")
	}
	for _, p := range s.Paragraphs {
		w.paragraph(p)
	}
	if s.Table != nil {
		w.table(*s.Table)
	}
	w.pdf.Ln(3)
}

func (w *pageWriter) paragraph(text string) {
	w.pdf.SetFont(w.options.FontFamily, "", w.options.FontSize)
	w.pdf.MultiCell(0, w.lineHeight(), w.tr(text), "", "L", false)
}

func (w *pageWriter) table(t Table) {
	widths := columnWidths(t.Columns, w.printableWidth())
	h := w.lineHeight() + 1.5

	header := func() {
		w.pdf.SetFont(w.options.FontFamily, "B", w.options.FontSize)
		w.pdf.SetFillColor(220, 220, 220)
		for i, c := range t.Columns {
			w.pdf.CellFormat(widths[i], h, w.tr(c.Header), "1", 0, "C", true, 0, "")
		}
		w.pdf.Ln(-1)
	}

	row := func(cells []string, style string) {
		_, pageH := w.pdf.GetPageSize()
		_, _, _, bottom := w.pdf.GetMargins()
		if w.pdf.GetY()+h > pageH-bottom-5 {
			w.pdf.AddPage()
			header()
		}
		w.pdf.SetFont(w.options.FontFamily, style, w.options.FontSize)
		for i, c := range t.Columns {
			value := ""
			if i < len(cells) {
				value = cells[i]
			}
			align := c.Align
			if align == "" {
				align = AlignLeft
			}
			w.pdf.CellFormat(widths[i], h, w.tr(value), "1", 0, string(align), false, 0, "")
		}
		w.pdf.Ln(-1)
	}

	header()
	for _, r := range t.Rows {
		row(r, "")
	}
	if t.Totals != nil {
		row(t.Totals, "B")
	}
}

// columnWidths scales the relative column widths to the printable width.
func columnWidths(columns []Column, total float64) []float64 {
	var sum float64
	for _, c := range columns {
		if c.Width > 0 {
			sum += c.Width
		} else {
			sum++
		}
	}

	widths := make([]float64, len(columns))
	for i, c := range columns {
		weight := c.Width
		if weight <= 0 {
			weight = 1
		}
		widths[i] = total * weight / sum
	}
	return widths
}
