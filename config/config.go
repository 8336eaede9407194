package config

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. CURVEKIT_CALIBRATION_TOLERANCE.
const EnvPrefix = "CURVEKIT"

type Config struct {
	Calibration CalibrationConfig `mapstructure:"calibration" toml:"calibration"`
	Spline      SplineConfig      `mapstructure:"spline"      toml:"spline"`
	Solver      SolverConfig      `mapstructure:"solver"      toml:"solver"`
	Smoothing   SmoothingConfig   `mapstructure:"smoothing"   toml:"smoothing"`
	Log         LogConfig         `mapstructure:"log"         toml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"     toml:"metrics"`
}

type CalibrationConfig struct {
	// Tolerance is the relative repricing tolerance |v-q| <= Tolerance*|q|.
	Tolerance float64 `mapstructure:"tolerance" toml:"tolerance" validate:"gt=0,lt=1"`

	// AbsoluteTolerance floors the repricing tolerance for quotes near zero.
	AbsoluteTolerance float64 `mapstructure:"absolute_tolerance" toml:"absolute_tolerance" validate:"gt=0"`

	// MaxNewtonIterations caps re-linearisation of nonlinear instruments per segment.
	MaxNewtonIterations int `mapstructure:"max_newton_iterations" toml:"max_newton_iterations" validate:"min=1,max=1000"`

	// DayCount converts dates to curve time.
	DayCount string `mapstructure:"day_count" toml:"day_count" validate:"oneof=ACT/365F ACT/360"`

	// MaxParallelBuilds bounds BuildAll workers.
	MaxParallelBuilds int `mapstructure:"max_parallel_builds" toml:"max_parallel_builds" validate:"min=1"`

	// SensitivityBump is the quote bump for the manifest-measure finite difference.
	SensitivityBump float64 `mapstructure:"sensitivity_bump" toml:"sensitivity_bump" validate:"gt=0"`
}

type SplineConfig struct {
	Basis string `mapstructure:"basis" toml:"basis" validate:"oneof=polynomial exponential hyperbolic"`

	// Degree applies to the polynomial basis.
	Degree int `mapstructure:"degree" toml:"degree" validate:"min=1,max=8"`

	// Tension applies to the exponential and hyperbolic bases.
	Tension float64 `mapstructure:"tension" toml:"tension" validate:"gte=0,lt=700"`

	// Continuity is the derivative order matched at knots by the bootstrap.
	Continuity int `mapstructure:"continuity" toml:"continuity" validate:"min=0,max=2"`

	Ridge float64 `mapstructure:"ridge" toml:"ridge" validate:"gte=0"`
}

type SolverConfig struct {
	Method        string  `mapstructure:"method"         toml:"method"         validate:"oneof=bisection brent newton"`
	Criterion     string  `mapstructure:"criterion"      toml:"criterion"      validate:"oneof=residual width either"`
	Tolerance     float64 `mapstructure:"tolerance"      toml:"tolerance"      validate:"gt=0"`
	MaxIterations int     `mapstructure:"max_iterations" toml:"max_iterations" validate:"min=1"`
}

type SmoothingConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`

	// Continuity is the order enforced at knots by the global smoothing pass.
	Continuity int `mapstructure:"continuity" toml:"continuity" validate:"min=0,max=2"`

	// Tolerance is the relative repricing tolerance a smoothed curve must meet.
	Tolerance float64 `mapstructure:"tolerance" toml:"tolerance" validate:"gt=0"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"oneof=debug info warn error"`
	File       string `mapstructure:"file"        toml:"file"`
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`
	Compress   bool   `mapstructure:"compress"    toml:"compress"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"   toml:"enabled"`
	Namespace string `mapstructure:"namespace" toml:"namespace" validate:"required_if=Enabled true"`
}

// Default provides production-ready default values.
func Default() Config {
	return Config{
		Calibration: CalibrationConfig{
			Tolerance:           1e-10,
			AbsoluteTolerance:   1e-14,
			MaxNewtonIterations: 25,
			DayCount:            "ACT/365F",
			MaxParallelBuilds:   4,
			SensitivityBump:     1e-6,
		},
		Spline: SplineConfig{
			Basis:      "polynomial",
			Degree:     3,
			Tension:    1,
			Continuity: 1,
		},
		Solver: SolverConfig{
			Method:        "newton",
			Criterion:     "residual",
			Tolerance:     1e-12,
			MaxIterations: 100,
		},
		Smoothing: SmoothingConfig{
			Continuity: 2,
			Tolerance:  1e-8,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Metrics: MetricsConfig{
			Namespace: "curvekit",
		},
	}
}

// Validate checks every section's constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	// Each segment solves one instrument equation plus Continuity+1 matching
	// conditions, so the basis needs at least Continuity+2 functions.
	if n, need := c.Spline.BasisLen(), c.Spline.Continuity+2; n < need {
		return fmt.Errorf("config validation failed: %s basis has %d functions, C%d continuity needs %d", c.Spline.Basis, n, c.Spline.Continuity, need)
	}
	return nil
}

// BasisLen is the number of functions of the configured basis per segment.
func (s SplineConfig) BasisLen() int {
	switch s.Basis {
	case "exponential":
		return 2
	case "hyperbolic":
		return 4
	default:
		return s.Degree + 1
	}
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the file.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("calibration.tolerance", d.Calibration.Tolerance)
	v.SetDefault("calibration.absolute_tolerance", d.Calibration.AbsoluteTolerance)
	v.SetDefault("calibration.max_newton_iterations", d.Calibration.MaxNewtonIterations)
	v.SetDefault("calibration.day_count", d.Calibration.DayCount)
	v.SetDefault("calibration.max_parallel_builds", d.Calibration.MaxParallelBuilds)
	v.SetDefault("calibration.sensitivity_bump", d.Calibration.SensitivityBump)
	v.SetDefault("spline.basis", d.Spline.Basis)
	v.SetDefault("spline.degree", d.Spline.Degree)
	v.SetDefault("spline.tension", d.Spline.Tension)
	v.SetDefault("spline.continuity", d.Spline.Continuity)
	v.SetDefault("spline.ridge", d.Spline.Ridge)
	v.SetDefault("solver.method", d.Solver.Method)
	v.SetDefault("solver.criterion", d.Solver.Criterion)
	v.SetDefault("solver.tolerance", d.Solver.Tolerance)
	v.SetDefault("solver.max_iterations", d.Solver.MaxIterations)
	v.SetDefault("smoothing.enabled", d.Smoothing.Enabled)
	v.SetDefault("smoothing.continuity", d.Smoothing.Continuity)
	v.SetDefault("smoothing.tolerance", d.Smoothing.Tolerance)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age", d.Log.MaxAge)
	v.SetDefault("log.compress", d.Log.Compress)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load reads path (TOML, YAML or JSON by extension) over the defaults, applies
// CURVEKIT_* environment overrides and validates. An empty path loads the
// defaults and environment only.
func Load(path string) (Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config error: %w", err)
		}
	}
	return decode(v)
}

// Watch loads path and calls fn with every later valid revision of the file.
// Invalid revisions are logged and skipped. The returned stop function
// suppresses further callbacks.
func Watch(path string, logger *slog.Logger, fn func(Config)) (Config, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, nil, fmt.Errorf("read config error: %w", err)
	}
	initial, err := decode(v)
	if err != nil {
		return Config{}, nil, err
	}

	var mu sync.Mutex
	stopped := false
	v.OnConfigChange(func(event fsnotify.Event) {
		if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
			return
		}
		logger.Info("detecting config change", "file", event.Name)
		c, err := decode(v)
		if err != nil {
			logger.Error("reload config failed", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		fn(c)
	})
	v.WatchConfig()

	stop := func() {
		mu.Lock()
		stopped = true
		mu.Unlock()
	}
	return initial, stop, nil
}
