package calib

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/meenmo/curvekit/curve"
	"github.com/meenmo/curvekit/instrument"
)

// Job is one independent curve build. Dependencies (discount or reference
// curves) are captured by the instruments and only read.
type Job struct {
	Label       curve.Label
	Epoch       time.Time
	Instruments []instrument.Instrument
	Quotes      []instrument.ManifestQuote
	// Options are applied after the shared options passed to BuildAll.
	Options []Option
}

// Result is the output of one Job.
type Result struct {
	Label       curve.Label
	Curve       *curve.Curve
	Diagnostics []Diagnostic
}

// BuildAll calibrates independent curves on at most maxParallel goroutines.
// Results come back in job order. The first failure cancels jobs that have
// not started and is returned with its job label.
func BuildAll(ctx context.Context, jobs []Job, maxParallel int, opts ...Option) ([]Result, error) {
	if maxParallel < 1 {
		maxParallel = 1
	}
	results := make([]Result, len(jobs))
	p := pool.New().
		WithMaxGoroutines(maxParallel).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i, job := range jobs {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("BuildAll %s: %w", job.Label, err)
			}
			all := append(append([]Option(nil), opts...), job.Options...)
			b, err := NewBuilder(job.Label, job.Epoch, all...)
			if err != nil {
				return fmt.Errorf("BuildAll %s: %w", job.Label, err)
			}
			c, err := b.Build(job.Instruments, job.Quotes)
			if err != nil {
				return fmt.Errorf("BuildAll %s: %w", job.Label, err)
			}
			results[i] = Result{Label: job.Label, Curve: c, Diagnostics: b.Diagnostics()}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Put stores every result in the container.
func Put(dst *curve.Container, results []Result) {
	for _, r := range results {
		dst.Set(r.Label, r.Curve)
	}
}
