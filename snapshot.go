package loandash

import (
	"fmt"
	"iter"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// Variant is the schema generation of a masters document.
type Variant int

const (
	// VariantOutstanding is the schema keyed by lender and loan id, with a
	// total_outstanding and per loan rate and remaining installments.
	VariantOutstanding Variant = iota
	// VariantExposure is the schema keyed by provider and account reference,
	// with a total_exposure and the one-time-settlement savings.
	VariantExposure
)

func (v Variant) String() string {
	switch v {
	case VariantExposure:
		return "exposure"
	case VariantOutstanding:
		return "outstanding"
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}

// Loan is one entry of a masters document.
type Loan struct {
	Provider   string `json:"provider,omitempty"`
	Lender     string `json:"lender,omitempty"`
	AccountRef string `json:"account_ref,omitempty"`
	LoanID     string `json:"loan_id,omitempty"`

	Outstanding Amount  `json:"outstanding"`
	EMI         Amount  `json:"emi"`
	Principal   Amount  `json:"principal"`
	Fees        Amount  `json:"fees"`
	Rate        Percent `json:"rate"`

	TenureMonths     Months `json:"tenure_months"`
	Remaining        Months `json:"remaining"`
	InstallmentsPaid Months `json:"installments_paid"`

	OTSAmount Amount `json:"ots_amount_70pct"` // settlement offer, 70% of outstanding
	Savings   Amount `json:"savings"`

	StartDate    string `json:"start_date,omitempty"`
	SanctionDate string `json:"sanction_date,omitempty"`
}

// Name returns the provider, or the lender for the older schema.
func (l Loan) Name() string {
	if l.Provider != "" {
		return l.Provider
	}
	return l.Lender
}

// Ref returns the account reference, or the loan id for the older schema.
func (l Loan) Ref() string {
	if l.AccountRef != "" {
		return l.AccountRef
	}
	return l.LoanID
}

// UnmarshalJSON decodes a loan. Identifiers are accepted as strings or numbers
// since they come straight out of a spreadsheet.
func (l *Loan) UnmarshalJSON(data []byte) error {
	type plain Loan
	var raw struct {
		plain
		Provider   jsoniter.RawMessage `json:"provider"`
		Lender     jsoniter.RawMessage `json:"lender"`
		AccountRef jsoniter.RawMessage `json:"account_ref"`
		LoanID     jsoniter.RawMessage `json:"loan_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*l = Loan(raw.plain)
	var err error
	for _, f := range []struct {
		dst *string
		src jsoniter.RawMessage
	}{
		{&l.Provider, raw.Provider},
		{&l.Lender, raw.Lender},
		{&l.AccountRef, raw.AccountRef},
		{&l.LoanID, raw.LoanID},
	} {
		if *f.dst, err = text(f.src); err != nil {
			return err
		}
	}
	return nil
}

// text decodes a JSON string, number or null into a string.
func text(raw jsoniter.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n jsoniter.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("invalid identifier %s: %w", raw, err)
	}
	return n.String(), nil
}

// Snapshot is a masters document: the backend-computed aggregate of the whole
// loan portfolio at a point in time.
//
// A Snapshot is immutable once decoded, a refresh replaces it wholesale.
type Snapshot struct {
	Variant Variant

	keys  []string        // document order
	loans map[string]Loan // by key

	TotalExposure     Amount
	TotalOutstanding  Amount
	TotalEMI          Amount
	TotalSavings      Amount
	TotalOTSLiability Amount

	LastUpdated string // backend local time, "2006-01-02 15:04:05"
	GeneratedAt string
}

// NewSnapshot returns an empty snapshot of the given variant.
func NewSnapshot(v Variant) *Snapshot {
	return &Snapshot{Variant: v, loans: make(map[string]Loan)}
}

// Put adds or replaces a loan. A replaced loan keeps its position.
//
// Put is meant for building a snapshot, it must not be called on a snapshot
// that has been published to readers.
func (s *Snapshot) Put(key string, l Loan) {
	if s.loans == nil {
		s.loans = make(map[string]Loan)
	}
	if _, exists := s.loans[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.loans[key] = l
}

// Len returns the number of distinct loan keys.
func (s *Snapshot) Len() int { return len(s.keys) }

// Keys returns the loan keys in document order.
func (s *Snapshot) Keys() []string { return slices.Clone(s.keys) }

// Loan returns the loan for key.
func (s *Snapshot) Loan(key string) (Loan, bool) {
	l, ok := s.loans[key]
	return l, ok
}

// Loans iterates over the loans in document order.
func (s *Snapshot) Loans() iter.Seq2[string, Loan] {
	return func(yield func(string, Loan) bool) {
		for _, k := range s.keys {
			if !yield(k, s.loans[k]) {
				return
			}
		}
	}
}

// Total returns the portfolio total: total_exposure for the exposure schema,
// total_outstanding otherwise. When the expected field is absent the other
// one is used.
func (s *Snapshot) Total() Amount {
	first, second := s.TotalOutstanding, s.TotalExposure
	if s.Variant == VariantExposure {
		first, second = second, first
	}
	if first.Valid() {
		return first
	}
	return second
}

// DecodeSnapshot decodes a masters document.
//
// The loans object keeps its document order, a duplicated key keeps its first
// position and its last value. A loans array is keyed by 1-based position.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	s := NewSnapshot(VariantOutstanding)
	exposure := false

	it := jsoniter.ParseBytes(json, data)
	it.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		switch field {
		case "loans":
			readLoans(it, s)
		case "total_exposure":
			exposure = true
			it.ReadVal(&s.TotalExposure)
		case "total_savings":
			exposure = true
			it.ReadVal(&s.TotalSavings)
		case "total_outstanding":
			it.ReadVal(&s.TotalOutstanding)
		case "total_emi":
			it.ReadVal(&s.TotalEMI)
		case "total_ots_liability":
			it.ReadVal(&s.TotalOTSLiability)
		case "last_updated":
			s.LastUpdated = readText(it)
		case "generated_at":
			s.GeneratedAt = readText(it)
		default:
			it.Skip()
		}
		return it.Error == nil
	})
	if it.Error != nil {
		return nil, fmt.Errorf("cannot decode masters document: %w", it.Error)
	}

	for _, l := range s.loans {
		if l.Provider != "" || l.AccountRef != "" || l.OTSAmount.Valid() {
			exposure = true
			break
		}
	}
	if exposure {
		s.Variant = VariantExposure
	}
	return s, nil
}

func readLoans(it *jsoniter.Iterator, s *Snapshot) {
	switch it.WhatIsNext() {
	case jsoniter.ObjectValue:
		it.ReadMapCB(func(it *jsoniter.Iterator, key string) bool {
			var l Loan
			it.ReadVal(&l)
			s.Put(key, l)
			return it.Error == nil
		})
	case jsoniter.ArrayValue:
		i := 0
		it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			i++
			var l Loan
			it.ReadVal(&l)
			s.Put(strconv.Itoa(i), l)
			return it.Error == nil
		})
	case jsoniter.NilValue:
		it.Skip()
	default:
		it.ReportError("decode loans", "expect an object or an array")
	}
}

// readText reads a string, anything else (null, a number) is skipped.
func readText(it *jsoniter.Iterator) string {
	if it.WhatIsNext() == jsoniter.StringValue {
		return it.ReadString()
	}
	it.Skip()
	return ""
}

// MarshalJSON writes the masters document back, loans in document order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	var loans jsonObjectWriter
	for k, l := range s.Loans() {
		loans.Append(k, l)
	}
	var w jsonObjectWriter
	w.Append("loans", &loans)
	w.Optional("total_exposure", s.TotalExposure)
	w.Optional("total_outstanding", s.TotalOutstanding)
	w.Optional("total_emi", s.TotalEMI)
	w.Optional("total_savings", s.TotalSavings)
	w.Optional("total_ots_liability", s.TotalOTSLiability)
	w.Optional("last_updated", s.LastUpdated)
	w.Optional("generated_at", s.GeneratedAt)
	return w.MarshalJSON()
}
