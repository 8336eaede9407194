package curve

import "sort"

// Container maps labels to calibrated curves. It does no locking: any number of
// readers may share it, but Set must not run concurrently with anything else.
type Container struct {
	curves map[Label]*Curve
}

func NewContainer() *Container {
	return &Container{curves: make(map[Label]*Curve)}
}

// Set stores c under l, replacing any previous curve.
func (s *Container) Set(l Label, c *Curve) {
	s.curves[l] = c
}

// Get returns the curve under l, or nil.
func (s *Container) Get(l Label) *Curve {
	return s.curves[l]
}

func (s *Container) Len() int {
	return len(s.curves)
}

// Labels returns the stored labels in a stable order.
func (s *Container) Labels() []Label {
	out := make([]Label, 0, len(s.curves))
	for l := range s.curves {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].String() < out[j].String()
	})
	return out
}
