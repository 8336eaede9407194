package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/meenmo/curvekit/config"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	c := config.Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if c.Calibration.Tolerance != 1e-10 || c.Calibration.AbsoluteTolerance != 1e-14 {
		t.Fatalf("tolerances = %g/%g", c.Calibration.Tolerance, c.Calibration.AbsoluteTolerance)
	}
	if c.Solver.MaxIterations != 100 {
		t.Fatalf("solver cap = %d, want 100", c.Solver.MaxIterations)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "curvekit.toml")
	body := `
[calibration]
tolerance = 1e-9
max_newton_iterations = 7

[spline]
basis = "hyperbolic"
tension = 2.5
continuity = 2

[smoothing]
enabled = true
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Calibration.Tolerance != 1e-9 || c.Calibration.MaxNewtonIterations != 7 {
		t.Fatalf("calibration = %+v", c.Calibration)
	}
	if c.Spline.Basis != "hyperbolic" || c.Spline.Tension != 2.5 || c.Spline.Continuity != 2 {
		t.Fatalf("spline = %+v", c.Spline)
	}
	if !c.Smoothing.Enabled {
		t.Fatalf("smoothing not enabled")
	}
	// Untouched keys keep their defaults.
	if c.Solver.Method != "newton" || c.Calibration.AbsoluteTolerance != 1e-14 {
		t.Fatalf("defaults lost: %+v %+v", c.Solver, c.Calibration)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CURVEKIT_SOLVER_METHOD", "brent")
	t.Setenv("CURVEKIT_CALIBRATION_MAX_PARALLEL_BUILDS", "9")

	c, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Solver.Method != "brent" {
		t.Fatalf("method = %q, want brent", c.Solver.Method)
	}
	if c.Calibration.MaxParallelBuilds != 9 {
		t.Fatalf("parallel builds = %d, want 9", c.Calibration.MaxParallelBuilds)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"bad basis":      "[spline]\nbasis = \"akima\"\n",
		"negative tol":   "[calibration]\ntolerance = -1.0\n",
		"huge tension":   "[spline]\nbasis = \"exponential\"\ntension = 900.0\ncontinuity = 0\n",
		"degree too low": "[spline]\ndegree = 1\ncontinuity = 1\n",
		"exponential C1": "[spline]\nbasis = \"exponential\"\ncontinuity = 1\n",
		"exponential C2": "[spline]\nbasis = \"exponential\"\ncontinuity = 2\n",
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "c.toml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := config.Load(path); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestBasisLenBoundsContinuity(t *testing.T) {
	t.Parallel()

	cases := []struct {
		basis      string
		degree     int
		continuity int
		want       int
		valid      bool
	}{
		{"polynomial", 3, 2, 4, true},
		{"polynomial", 2, 1, 3, true},
		{"polynomial", 2, 2, 3, false},
		{"exponential", 3, 0, 2, true},
		{"exponential", 3, 1, 2, false},
		{"hyperbolic", 3, 2, 4, true},
	}
	for _, tc := range cases {
		c := config.Default()
		c.Spline.Basis, c.Spline.Degree, c.Spline.Continuity = tc.basis, tc.degree, tc.continuity
		if got := c.Spline.BasisLen(); got != tc.want {
			t.Fatalf("%s degree %d: BasisLen = %d, want %d", tc.basis, tc.degree, got, tc.want)
		}
		if err := c.Validate(); (err == nil) != tc.valid {
			t.Fatalf("%s C%d: Validate = %v, want valid=%v", tc.basis, tc.continuity, err, tc.valid)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestWatchReturnsInitial(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "w.yaml")
	if err := os.WriteFile(path, []byte("solver:\n  max_iterations: 42\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, stop, err := config.Watch(path, nil, func(config.Config) {})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()
	if c.Solver.MaxIterations != 42 {
		t.Fatalf("max iterations = %d, want 42", c.Solver.MaxIterations)
	}
}
