package quotes

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meenmo/curvekit/calendar"
	"github.com/meenmo/curvekit/marketdata"
	"github.com/meenmo/curvekit/utils"
)

// File is the JSON input schema.
//
// Conventions:
// - values are in percent by default (0.762 means 0.762%); set "units" to
// "decimal" for raw decimals
// - tenors are business-day (D), week (W), month (M) or year (Y) counts
type File struct {
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Units    string  `json:"units"`
	Quotes   []Quote `json:"quotes"`
}

type Quote struct {
	Tenor string          `json:"tenor"`
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

var hundred = decimal.NewFromInt(100)

// Parse decodes and validates a quote file into a snapshot in decimal units.
// Quotes keep file order.
func Parse(r io.Reader) (marketdata.Snapshot, error) {
	var f File
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return marketdata.Snapshot{}, fmt.Errorf("failed to parse JSON input: %w", err)
	}
	return f.Snapshot()
}

func (f File) Snapshot() (marketdata.Snapshot, error) {
	ccy := strings.ToUpper(strings.TrimSpace(f.Currency))
	if ccy == "" {
		return marketdata.Snapshot{}, fmt.Errorf("currency is required")
	}
	if _, err := utils.ParseDate(f.Date); err != nil {
		return marketdata.Snapshot{}, fmt.Errorf("invalid date: %v", err)
	}
	if len(f.Quotes) == 0 {
		return marketdata.Snapshot{}, fmt.Errorf("quotes are required")
	}
	var scale decimal.Decimal
	switch strings.ToLower(strings.TrimSpace(f.Units)) {
	case "", "percent", "pct":
		scale = hundred
	case "decimal":
		scale = decimal.NewFromInt(1)
	default:
		return marketdata.Snapshot{}, fmt.Errorf("invalid units %q (use percent or decimal)", f.Units)
	}

	s := marketdata.Snapshot{Currency: ccy, Date: f.Date, Quotes: make([]marketdata.Quote, 0, len(f.Quotes))}
	for i, q := range f.Quotes {
		tn, err := calendar.ParseTenor(q.Tenor)
		if err != nil {
			return marketdata.Snapshot{}, fmt.Errorf("quote %d: %w", i, err)
		}
		typ := strings.ToLower(strings.TrimSpace(q.Type))
		switch typ {
		case "deposit", "future", "swap":
		default:
			return marketdata.Snapshot{}, fmt.Errorf("quote %d (%s): unknown type %q", i, tn, q.Type)
		}
		s.Quotes = append(s.Quotes, marketdata.Quote{Tenor: tn.String(), Type: typ, Value: q.Value.Div(scale)})
	}
	return s, nil
}

// Format renders v with a fixed number of decimal places.
func Format(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}
