package marketdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meenmo/curvekit/calendar"
	"github.com/meenmo/curvekit/instrument"
	"github.com/meenmo/curvekit/utils"
)

// Quote is one par quote of a tenor ladder. Values are decimals (0.00762, not 0.762%).
type Quote struct {
	Tenor string          `json:"tenor"`
	Type  string          `json:"type"` // deposit | future | swap
	Value decimal.Decimal `json:"value"`
}

// Snapshot is a dated ladder for one currency. Date is the spot date, which is
// also the curve epoch.
type Snapshot struct {
	Currency string  `json:"currency"`
	Date     string  `json:"date"`
	Quotes   []Quote `json:"quotes"`
}

func (s Snapshot) Spot() (time.Time, error) {
	return utils.ParseDate(s.Date)
}

// FixingFeed supplies index fixings, e.g. the 6M term rate on the spot date.
type FixingFeed interface {
	RateOn(date time.Time) (float64, bool)
}

// MapFixingFeed is a static map-backed implementation keyed by YYYY-MM-DD.
type MapFixingFeed struct {
	rates map[string]float64
}

func NewMapFixingFeed(rates map[string]float64) *MapFixingFeed {
	return &MapFixingFeed{rates: rates}
}

func (m *MapFixingFeed) RateOn(date time.Time) (float64, bool) {
	val, ok := m.rates[date.Format(utils.DateLayout)]
	return val, ok
}

// Conventions are the ladder conventions of one currency.
type Conventions struct {
	Calendar        *calendar.Calendar
	DepositDayCount utils.DayCount
	FixedLeg        instrument.LegConvention
	FloatLeg        instrument.LegConvention
}

// USDConventions: ACT/360 deposits, annual ACT/360 fixed vs annual SOFR OIS on
// the Federal Reserve calendar.
func USDConventions() Conventions {
	cal := calendar.Standard(calendar.USD)
	leg := instrument.LegConvention{Frequency: instrument.FreqAnnual, DayCount: utils.Act360, Calendar: cal}
	return Conventions{Calendar: cal, DepositDayCount: utils.Act360, FixedLeg: leg, FloatLeg: leg}
}

// EURConventions: ACT/360 deposits, annual ACT/360 fixed vs annual ESTR OIS on TARGET.
func EURConventions() Conventions {
	cal := calendar.Standard(calendar.TARGET)
	leg := instrument.LegConvention{Frequency: instrument.FreqAnnual, DayCount: utils.Act360, Calendar: cal}
	return Conventions{Calendar: cal, DepositDayCount: utils.Act360, FixedLeg: leg, FloatLeg: leg}
}

// ConventionsFor returns the ladder conventions of a currency.
func ConventionsFor(ccy string) (Conventions, error) {
	switch strings.ToUpper(ccy) {
	case "USD":
		return USDConventions(), nil
	case "EUR":
		return EURConventions(), nil
	}
	return Conventions{}, fmt.Errorf("ConventionsFor: unsupported currency %q", ccy)
}

// USDFunding is the reference USD funding snapshot.
func USDFunding() Snapshot {
	return Snapshot{
		Currency: "USD",
		Date:     "2025-01-06",
		Quotes: []Quote{
			{Tenor: "2D", Type: "deposit", Value: decimal.RequireFromString("0.00195")},
			{Tenor: "1W", Type: "deposit", Value: decimal.RequireFromString("0.00176")},
			{Tenor: "1M", Type: "deposit", Value: decimal.RequireFromString("0.00301")},
			{Tenor: "1Y", Type: "swap", Value: decimal.RequireFromString("0.00762")},
			{Tenor: "2Y", Type: "swap", Value: decimal.RequireFromString("0.01055")},
		},
	}
}

// USDTermFixings holds 3M and 6M term fixings by date.
func USDTermFixings() map[string]FixingFeed {
	return map[string]FixingFeed{
		"3M": NewMapFixingFeed(map[string]float64{"2025-01-06": 0.00255}),
		"6M": NewMapFixingFeed(map[string]float64{"2025-01-06": 0.00348}),
	}
}

// Ladder builds single-curve calibration instruments and quotes from a
// snapshot, in snapshot order. Every instrument starts on the spot date.
// Optional discount turns swaps into dual-curve instruments.
func Ladder(s Snapshot, conv Conventions, discount instrument.DiscountCurve) ([]instrument.Instrument, []instrument.ManifestQuote, error) {
	spot, err := s.Spot()
	if err != nil {
		return nil, nil, fmt.Errorf("Ladder %s: %w", s.Currency, err)
	}
	insts := make([]instrument.Instrument, 0, len(s.Quotes))
	quotes := make([]instrument.ManifestQuote, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		tenor, err := calendar.ParseTenor(q.Tenor)
		if err != nil {
			return nil, nil, fmt.Errorf("Ladder %s: %w", s.Currency, err)
		}
		mat := conv.Calendar.AddTenor(spot, tenor)
		id := fmt.Sprintf("%s-%s-%s", s.Currency, strings.ToUpper(q.Type), tenor)
		value := q.Value.InexactFloat64()

		var inst instrument.Instrument
		var measure string
		switch strings.ToLower(q.Type) {
		case "deposit":
			inst, err = instrument.NewDeposit(id, spot, mat, conv.DepositDayCount)
			measure = instrument.Rate
		case "future":
			inst, err = instrument.NewFuture(id, spot, mat, conv.DepositDayCount, 0)
			measure = instrument.ForwardRate
		case "swap":
			inst, err = instrument.NewFixFloatSwap(instrument.SwapParams{
				ID:            id,
				EffectiveDate: spot,
				MaturityDate:  mat,
				FixedLeg:      conv.FixedLeg,
				FloatLeg:      conv.FloatLeg,
				Discount:      discount,
			})
			measure = instrument.SwapRate
		default:
			return nil, nil, fmt.Errorf("Ladder %s: unknown quote type %q", s.Currency, q.Type)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("Ladder %s: %w", s.Currency, err)
		}
		insts = append(insts, inst)
		quotes = append(quotes, instrument.ManifestQuote{Measure: measure, Value: value})
	}
	return insts, quotes, nil
}

// USDTermSwaps holds par swap ladders of fixed (annual ACT/360) against the
// 3M and 6M term indices, dated like USDFunding.
func USDTermSwaps() map[string]Snapshot {
	ladder := func(r1, r2 string) Snapshot {
		return Snapshot{
			Currency: "USD",
			Date:     "2025-01-06",
			Quotes: []Quote{
				{Tenor: "1Y", Type: "swap", Value: decimal.RequireFromString(r1)},
				{Tenor: "2Y", Type: "swap", Value: decimal.RequireFromString(r2)},
			},
		}
	}
	return map[string]Snapshot{
		"3M": ladder("0.0080", "0.0106"),
		"6M": ladder("0.0085", "0.0112"),
	}
}

// TermLadder builds the projection ladder of a term index: the fixing as a
// deposit over one index tenor, then the swaps of s with a float leg paying
// at the index frequency and discounted on discount.
func TermLadder(s Snapshot, index string, fixing float64, conv Conventions, discount instrument.DiscountCurve) ([]instrument.Instrument, []instrument.ManifestQuote, error) {
	spot, err := s.Spot()
	if err != nil {
		return nil, nil, fmt.Errorf("TermLadder %s %s: %w", s.Currency, index, err)
	}
	tn, err := calendar.ParseTenor(index)
	if err != nil {
		return nil, nil, fmt.Errorf("TermLadder %s: %w", s.Currency, err)
	}
	if tn.Months() == 0 {
		return nil, nil, fmt.Errorf("TermLadder %s: index %s is not a month or year tenor", s.Currency, index)
	}
	float := conv.FloatLeg
	float.Frequency = instrument.Frequency(tn.Months())
	if discount == nil {
		return nil, nil, fmt.Errorf("TermLadder %s %s: discount curve is required", s.Currency, index)
	}

	prefix := fmt.Sprintf("%s-%s", s.Currency, tn)
	dep, err := instrument.NewDeposit(prefix+"-FIXING", spot, conv.Calendar.AddTenor(spot, tn), conv.DepositDayCount)
	if err != nil {
		return nil, nil, fmt.Errorf("TermLadder %s: %w", prefix, err)
	}
	insts := []instrument.Instrument{dep}
	quotes := []instrument.ManifestQuote{{Measure: instrument.Rate, Value: fixing}}
	for _, q := range s.Quotes {
		if strings.ToLower(q.Type) != "swap" {
			return nil, nil, fmt.Errorf("TermLadder %s: quote type %q, want swap", prefix, q.Type)
		}
		mt, err := calendar.ParseTenor(q.Tenor)
		if err != nil {
			return nil, nil, fmt.Errorf("TermLadder %s: %w", prefix, err)
		}
		sw, err := instrument.NewFixFloatSwap(instrument.SwapParams{
			ID:            fmt.Sprintf("%s-SWAP-%s", prefix, mt),
			EffectiveDate: spot,
			MaturityDate:  conv.Calendar.AddTenor(spot, mt),
			FixedLeg:      conv.FixedLeg,
			FloatLeg:      float,
			Discount:      discount,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("TermLadder %s: %w", prefix, err)
		}
		insts = append(insts, sw)
		quotes = append(quotes, instrument.ManifestQuote{Measure: instrument.SwapRate, Value: q.Value.InexactFloat64()})
	}
	return insts, quotes, nil
}
