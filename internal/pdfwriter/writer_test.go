package pdfwriter

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() Document {
	rows := make([][]string, 60)
	for i := range rows {
		rows[i] = []string{"JS", "£85.50"}
	}
	return Document{
		Title:    "Week 39 benefits",
		Subtitle: []string{"Week commencing 22/09/2025"},
		Sections: []Section{
			{
				Heading:    "Benefits received",
				Paragraphs: []string{"All amounts in pounds sterling."},
				Table: &Table{
					Columns: []Column{{Header: "Client", Width: 2}, {Header: "Benefit", Width: 1, Align: AlignRight}},
					Rows:    rows,
					Totals:  []string{"Total", "£5,130.00"},
				},
			},
			{Heading: "Notes", NewPage: true, Paragraphs: []string{"Checked."}},
		},
		Footer: []string{"Prepared by: ________"},
	}
}

func TestGenerate(t *testing.T) {
	out, err := Generate(sampleDocument())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestGenerate_Deterministic(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.CreationDate = time.Date(2025, 9, 26, 0, 0, 0, 0, time.UTC)

	first, err := GenerateWithOptions(sampleDocument(), opts)
	require.NoError(t, err)
	second, err := GenerateWithOptions(sampleDocument(), opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestColumnWidths(t *testing.T) {
	widths := columnWidths([]Column{{Width: 2}, {Width: 1}, {}}, 200)
	assert.Equal(t, []float64{100, 50, 50}, widths)
}
