// =============================================================================
// LDCC1 Processor - Money
// =============================================================================
//
// All balances are carried as integer pence. Conversion from spreadsheet text
// and back to display currency happens only here, at the input and output
// boundaries of the pipeline.
//
// =============================================================================

package types

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Pence is an amount in minor currency units.
type Pence int64

var maxPence = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a display amount such as "£1,234.56", "85.5" or
// "(10.00)" into pence.
//
// An empty string parses as zero. Amounts with more than two decimal places
// are rejected rather than rounded, since rounding would silently move money.
func ParseAmount(s string) (Pence, error) {
	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return 0, nil
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	cleaned = strings.NewReplacer("£", "", "$", "", "€", "", ",", "", " ", "", "GBP", "").Replace(cleaned)
	if strings.HasPrefix(cleaned, "-") {
		negative = !negative
		cleaned = strings.TrimPrefix(cleaned, "-")
	}
	if cleaned == "" {
		return 0, fmt.Errorf("not a number: %q", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if !d.Round(2).Equal(d) {
		return 0, fmt.Errorf("more than two decimal places: %q", s)
	}

	minor := d.Shift(2)
	if minor.Abs().GreaterThan(maxPence) {
		return 0, fmt.Errorf("amount out of range: %q", s)
	}

	p := Pence(minor.IntPart())
	if negative {
		p = -p
	}
	return p, nil
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(s string) Pence {
	p, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Decimal returns the amount in major units.
func (p Pence) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// String formats the amount as "£1,234.56".
func (p Pence) String() string {
	sign := ""
	d := p.Decimal()
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	fixed := d.StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + "£" + b.String() + "." + frac
}

// Plain formats the amount without currency symbol or separators ("1234.56"),
// for machine-readable outputs.
func (p Pence) Plain() string {
	return p.Decimal().StringFixed(2)
}

// =============================================================================
// CHECKED ARITHMETIC
// =============================================================================

// Add returns p+q and false if the result overflows.
func (p Pence) Add(q Pence) (Pence, bool) {
	r := p + q
	if (q > 0 && r < p) || (q < 0 && r > p) {
		return 0, false
	}
	return r, true
}

// Sub returns p-q and false if the result overflows.
func (p Pence) Sub(q Pence) (Pence, bool) {
	if q == math.MinInt64 {
		return 0, false
	}
	return p.Add(-q)
}
