package curve

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/curvekit/stretch"
	"github.com/meenmo/curvekit/utils"
)

// ErrQuantityUnsupported is returned by Evaluate when a curve kind cannot
// produce the requested quantity.
var ErrQuantityUnsupported = errors.New("curve: quantity not supported by curve kind")

// Kind tags what the latent state of a curve represents.
type Kind int

const (
	// Discount curves carry discount factors.
	Discount Kind = iota
	// Forward curves carry projection (pseudo) discount factors of one index tenor.
	Forward
	// Credit curves carry survival probabilities.
	Credit
	// Govvie curves carry government bond discount factors.
	Govvie
	// FX curves carry outright forward FX rates.
	FX
)

var kindNames = map[Kind]string{
	Discount: "discount",
	Forward:  "forward",
	Credit:   "credit",
	Govvie:   "govvie",
	FX:       "fx",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("ParseKind: unknown curve kind %q", s)
}

// Extrapolation is the documented rule per kind: FX holds the last outright,
// everything else extends the last instantaneous forward.
func (k Kind) Extrapolation() stretch.Extrapolation {
	if k == FX {
		return stretch.Flat
	}
	return stretch.FlatForward
}

// discountLike kinds expose DF and simple forwards.
func (k Kind) discountLike() bool {
	return k == Discount || k == Forward || k == Govvie
}

// Quantity selects what Evaluate returns.
type Quantity int

const (
	DiscountFactor Quantity = iota
	// ForwardRate is the simple forward from the date to one year later for DF-like
	// kinds, and the forward hazard rate for credit curves.
	ForwardRate
	SurvivalProbability
	FXRate
	// Latent is the raw stretch value for any kind.
	Latent
)

// Label identifies a curve in a container.
type Label struct {
	Kind     Kind
	Currency string
	// Tenor names the index tenor of forward curves ("3M", "6M").
	Tenor string
	// Entity names a credit reference entity, bond issuer or FX pair.
	Entity string
}

func (l Label) String() string {
	s := l.Kind.String() + ":" + l.Currency
	if l.Tenor != "" {
		s += ":" + l.Tenor
	}
	if l.Entity != "" {
		s += ":" + l.Entity
	}
	return s
}

// Curve is an immutable calibrated curve. All methods are safe for concurrent use.
type Curve struct {
	label   Label
	epoch   time.Time
	dc      utils.DayCount
	stretch *stretch.Stretch
	knots   []time.Time
}

// New freezes a fully calibrated stretch into a curve. knots are the calendar
// dates of the stretch knots after the epoch. The stretch is copied.
func New(label Label, epoch time.Time, dc utils.DayCount, st *stretch.Stretch, knots []time.Time) (*Curve, error) {
	if st == nil || st.State() != stretch.Calibrated {
		return nil, fmt.Errorf("curve.New %s: %w", label, stretch.ErrNotCalibrated)
	}
	if len(knots) != st.Len() {
		return nil, fmt.Errorf("curve.New %s: %d knot dates for %d segments", label, len(knots), st.Len())
	}
	return &Curve{
		label:   label,
		epoch:   epoch,
		dc:      dc,
		stretch: st.Clone(),
		knots:   append([]time.Time(nil), knots...),
	}, nil
}

func (c *Curve) Label() Label     { return c.label }
func (c *Curve) Kind() Kind       { return c.label.Kind }
func (c *Curve) Epoch() time.Time { return c.epoch }

// Knots returns the calibrated pillar dates.
func (c *Curve) Knots() []time.Time { return append([]time.Time(nil), c.knots...) }

// Time converts a date to curve time.
func (c *Curve) Time(d time.Time) float64 {
	return utils.YearFraction(c.epoch, d, c.dc)
}

// Value returns the latent state at d.
func (c *Curve) Value(d time.Time) float64 {
	return c.stretch.Evaluate(c.Time(d))
}

// Derivative returns the order-th derivative of the latent state at d with
// respect to curve time.
func (c *Curve) Derivative(d time.Time, order int) float64 {
	return c.stretch.Derivative(c.Time(d), order)
}

// Roughness is ∫y''² of the latent state over the calibrated knots.
func (c *Curve) Roughness() float64 {
	return c.stretch.Roughness()
}

func (c *Curve) mustBe(ok bool, what string) {
	if !ok {
		panic(fmt.Sprintf("curve %s: %s not defined for %s curves", c.label, what, c.label.Kind))
	}
}

// DF returns the discount factor at d. It panics on credit and FX curves.
func (c *Curve) DF(d time.Time) float64 {
	c.mustBe(c.label.Kind.discountLike(), "DF")
	return c.Value(d)
}

// Forward returns the simple forward rate between d1 and d2 for DF-like curves
// (ACT/360 accrual), or the average hazard rate for credit curves.
func (c *Curve) Forward(d1, d2 time.Time) float64 {
	switch {
	case c.label.Kind.discountLike():
		tau := utils.YearFraction(d1, d2, utils.Act360)
		if tau == 0 {
			return 0
		}
		return (c.Value(d1)/c.Value(d2) - 1) / tau
	case c.label.Kind == Credit:
		tau := c.Time(d2) - c.Time(d1)
		if tau == 0 {
			return 0
		}
		return -math.Log(c.Value(d2)/c.Value(d1)) / tau
	}
	c.mustBe(false, "Forward")
	return 0
}

// Survival returns the survival probability at d. It panics on non-credit curves.
func (c *Curve) Survival(d time.Time) float64 {
	c.mustBe(c.label.Kind == Credit, "Survival")
	return c.Value(d)
}

// FX returns the outright forward at d. It panics on non-FX curves.
func (c *Curve) FX(d time.Time) float64 {
	c.mustBe(c.label.Kind == FX, "FX")
	return c.Value(d)
}

// ZeroRate returns the continuously compounded zero rate in percent, on the
// curve's own day count.
func (c *Curve) ZeroRate(d time.Time) float64 {
	c.mustBe(c.label.Kind.discountLike() || c.label.Kind == Credit, "ZeroRate")
	t := c.Time(d)
	if t <= 0 {
		return 0
	}
	return -math.Log(c.Value(d)) / t * 100
}

// Evaluate is the checked, tagged access path.
func (c *Curve) Evaluate(d time.Time, q Quantity) (float64, error) {
	k := c.label.Kind
	switch q {
	case Latent:
		return c.Value(d), nil
	case DiscountFactor:
		if k.discountLike() {
			return c.Value(d), nil
		}
	case ForwardRate:
		if k.discountLike() || k == Credit {
			return c.Forward(d, d.AddDate(1, 0, 0)), nil
		}
	case SurvivalProbability:
		if k == Credit {
			return c.Value(d), nil
		}
	case FXRate:
		if k == FX {
			return c.Value(d), nil
		}
	}
	return 0, fmt.Errorf("Evaluate %s quantity %d: %w", c.label, q, ErrQuantityUnsupported)
}
