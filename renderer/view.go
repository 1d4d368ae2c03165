package renderer

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/etnz/loandash"
)

// Placeholder is the content of a cell whose value is missing.
const Placeholder = "—"

var (
	lakh     = decimal.NewFromInt(100000)
	thousand = decimal.NewFromInt(1000)
)

// FormatLakhs formats an amount in lakhs with 2 decimals: 250000 is
// "Rs 2.50L". An absent or zero amount is "Rs 0".
func FormatLakhs(a loandash.Amount) string {
	if a.IsZero() {
		return "Rs 0"
	}
	return "Rs " + a.Decimal().Div(lakh).StringFixed(2) + "L"
}

// FormatThousands formats an amount in thousands rounded to the unit: 45000
// is "Rs 45k".
func FormatThousands(a loandash.Amount) string {
	return "Rs " + a.Decimal().Div(thousand).StringFixed(0) + "k"
}

// Tile is one summary figure.
type Tile struct {
	Label string
	Value string
}

// Column is a loan table column.
type Column struct {
	Header string
	Right  bool // numeric, right aligned
}

// View is the renderable form of a snapshot: summary tiles and the loan
// table, every value already formatted.
type View struct {
	Empty       bool // no snapshot to show
	Variant     loandash.Variant
	LoanCount   int
	Tiles       []Tile
	Columns     []Column
	Rows        [][]string // in snapshot order
	LastUpdated string
}

// NewView builds the view of s. It reads s and never modifies it; a nil s
// gives an Empty view.
func NewView(s *loandash.Snapshot) View {
	return build(s, scaled)
}

// NewExactView is NewView with every amount in full rupees.
func NewExactView(s *loandash.Snapshot) View {
	return build(s, exact)
}

// formats picks how amounts are written.
type formats struct {
	total  func(loandash.Amount) string
	emi    func(loandash.Amount) string
	amount func(loandash.Amount) string // optional amounts, absent is the placeholder
}

var scaled = formats{
	total: FormatLakhs,
	emi:   FormatThousands,
	amount: func(a loandash.Amount) string {
		if !a.Valid() {
			return Placeholder
		}
		return FormatLakhs(a)
	},
}

var exact = formats{
	total:  exactAmount,
	emi:    exactAmount,
	amount: exactAmount,
}

func exactAmount(a loandash.Amount) string {
	if !a.Valid() {
		return Placeholder
	}
	return a.String()
}

func build(s *loandash.Snapshot, f formats) View {
	if s == nil {
		return View{Empty: true}
	}
	v := View{
		Variant:     s.Variant,
		LoanCount:   s.Len(),
		LastUpdated: s.LastUpdated,
	}
	if v.LastUpdated == "" {
		v.LastUpdated = s.GeneratedAt
	}
	v.Tiles = []Tile{
		{"Total Loans", strconv.Itoa(s.Len())},
		{"Total Outstanding", f.total(s.Total())},
		{"Total Monthly EMI", f.total(s.TotalEMI)},
	}

	switch s.Variant {
	case loandash.VariantExposure:
		v.Tiles = append(v.Tiles, Tile{"Total Savings (70% OTS)", f.total(s.TotalSavings)})
		v.Columns = []Column{
			{Header: "Provider"},
			{Header: "Account Ref"},
			{Header: "Outstanding", Right: true},
			{Header: "EMI", Right: true},
			{Header: "Tenure", Right: true},
			{Header: "OTS (70%)", Right: true},
			{Header: "Savings", Right: true},
		}
		for _, l := range s.Loans() {
			v.Rows = append(v.Rows, []string{
				text(l.Name()),
				text(l.Ref()),
				f.total(l.Outstanding),
				f.emi(l.EMI),
				tenure(l.TenureMonths),
				f.amount(l.OTSAmount),
				f.amount(l.Savings),
			})
		}
	default:
		v.Columns = []Column{
			{Header: "Lender"},
			{Header: "Loan ID"},
			{Header: "Outstanding", Right: true},
			{Header: "EMI", Right: true},
			{Header: "Rate", Right: true},
			{Header: "Remaining", Right: true},
		}
		for _, l := range s.Loans() {
			v.Rows = append(v.Rows, []string{
				text(l.Name()),
				text(l.Ref()),
				f.total(l.Outstanding),
				f.emi(l.EMI),
				text(l.Rate.String()),
				remaining(l.Remaining, l.TenureMonths),
			})
		}
	}
	return v
}

func text(s string) string {
	if s == "" {
		return Placeholder
	}
	return s
}

func tenure(m loandash.Months) string {
	if !m.Valid() {
		return Placeholder
	}
	return m.String() + " months"
}

// remaining is "remaining/tenure".
func remaining(r, t loandash.Months) string {
	if !r.Valid() {
		return Placeholder
	}
	return r.String() + "/" + text(t.String())
}
