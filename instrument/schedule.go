package instrument

import (
	"fmt"
	"time"

	"github.com/meenmo/curvekit/calendar"
	"github.com/meenmo/curvekit/utils"
)

// Frequency is a payment frequency in months; 0 means a single period.
type Frequency int

const (
	FreqAnnual    Frequency = 12
	FreqSemi      Frequency = 6
	FreqQuarterly Frequency = 3
	FreqMonthly   Frequency = 1
	FreqOnce      Frequency = 0
)

// LegConvention captures the schedule settings of one leg.
type LegConvention struct {
	Frequency    Frequency
	DayCount     utils.DayCount
	Calendar     *calendar.Calendar
	PayDelayDays int
	// EOM rolls month-end start dates to month ends.
	EOM bool
}

// Period is one accrual period.
type Period struct {
	Start   time.Time
	End     time.Time
	Pay     time.Time
	Accrual float64
}

// GenerateSchedule builds accrual periods from effective to maturity, rolling
// backward from maturity so that any stub falls at the front. A front stub of
// a week or less is merged into the first regular period.
func GenerateSchedule(effective, maturity time.Time, leg LegConvention) ([]Period, error) {
	if !maturity.After(effective) {
		return nil, fmt.Errorf("GenerateSchedule: maturity %s not after effective %s", maturity.Format("2006-01-02"), effective.Format("2006-01-02"))
	}
	if leg.Frequency < 0 {
		return nil, fmt.Errorf("GenerateSchedule: unsupported frequency %d", leg.Frequency)
	}
	cal := leg.Calendar
	if cal == nil {
		cal = calendar.WeekendsOnly("")
	}

	unadjusted := []time.Time{maturity}
	if leg.Frequency > 0 {
		months := int(leg.Frequency)
		for k := 1; ; k++ {
			var d time.Time
			if leg.EOM && utils.IsMonthEnd(maturity) {
				d = utils.AddMonth(maturity, -k*months)
				d = time.Date(d.Year(), d.Month()+1, 0, 0, 0, 0, 0, time.UTC)
			} else {
				d = utils.AddMonth(maturity, -k*months)
			}
			if !d.After(effective) {
				break
			}
			unadjusted = append([]time.Time{d}, unadjusted...)
		}
		// A tiny front stub is folded into the first regular period.
		if len(unadjusted) > 1 {
			if gap := utils.Days(effective, unadjusted[0]); gap > 0 && gap <= 7 {
				unadjusted = unadjusted[1:]
			}
		}
	}

	periods := make([]Period, 0, len(unadjusted))
	start := effective
	for i, d := range unadjusted {
		end := cal.Adjust(d)
		if i == len(unadjusted)-1 {
			end = maturity
		}
		pay := end
		if leg.PayDelayDays != 0 {
			pay = cal.AddBusinessDays(end, leg.PayDelayDays)
		}
		periods = append(periods, Period{
			Start:   start,
			End:     end,
			Pay:     pay,
			Accrual: utils.YearFraction(start, end, leg.DayCount),
		})
		start = end
	}
	return periods, nil
}

func payDates(periods []Period) []time.Time {
	out := make([]time.Time, len(periods))
	for i, p := range periods {
		out[i] = p.Pay
	}
	return out
}

func boundaryDates(periods []Period) []time.Time {
	out := make([]time.Time, 0, len(periods)+1)
	for _, p := range periods {
		out = append(out, p.Start, p.End)
	}
	return out
}
