// Package config - Explicit runtime configuration for the overlay pipeline.
//
// A Config is built once (defaults, then an optional YAML file, then CLI flags), validated,
// and passed by value into the components that need it. Nothing mutates it afterwards.
package config

import (
	"image"
	"os"
	"strings"
	"time"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/models"
	"github.com/nvr-ai/go-overlay/models/postprocess"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Supported model input layouts.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Render discard policies.
const (
	// DiscardStarted drops a render once a newer cycle has started.
	DiscardStarted = "started"
	// DiscardRendered drops a render once a newer cycle has drawn.
	DiscardRendered = "rendered"
)

// Supported inference backends.
const (
	BackendCPU      = "cpu"
	BackendCUDA     = "cuda"
	BackendCoreML   = "coreml"
	BackendOpenVINO = "openvino"
	BackendDirectML = "directml"
)

// Config is the full pipeline configuration.
type Config struct {
	Detection Detection       `yaml:"detection"`
	Colors    Colors          `yaml:"colors"`
	Scheduler Scheduler       `yaml:"scheduler"`
	Frame     Frame           `yaml:"frame"`
	Model     Model           `yaml:"model"`
	Profiling Profiling       `yaml:"profiling"`
	Logging   logging.Options `yaml:"logging"`
	Server    Server          `yaml:"server"`
}

// Detection configures postprocessing.
type Detection struct {
	// ConfidenceThreshold is the minimum accepted score, inclusive.
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	// TargetClasses lists the classes of interest.
	TargetClasses []int `yaml:"target_classes"`
	// FilterTargetClasses restricts output to TargetClasses. Off by default: every class is drawn.
	FilterTargetClasses bool `yaml:"filter_target_classes"`
}

// Colors configures the class to color mapping. Values are SVG color keywords or "#rrggbb".
type Colors struct {
	Classes  map[int]string `yaml:"classes"`
	Fallback string         `yaml:"fallback"`
}

// Scheduler configures the frame scheduler.
type Scheduler struct {
	// TickInterval is the fixed period between cycles.
	TickInterval time.Duration `yaml:"tick_interval"`
	// MaxInFlight bounds overlapping cycles. Ticks beyond it are dropped.
	MaxInFlight int `yaml:"max_in_flight"`
	// DiscardPolicy decides when a finished cycle's render is stale.
	DiscardPolicy string `yaml:"discard_policy"`
	// StopOnEnd stops the scheduler once the video ends instead of idling through ticks.
	StopOnEnd bool `yaml:"stop_on_end"`
}

// Frame configures the canvas and tensor size.
type Frame struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Model configures the ONNX model.
type Model struct {
	Path              string   `yaml:"path"`
	SharedLibraryPath string   `yaml:"shared_library_path"`
	Backend           string   `yaml:"backend"`
	DeviceID          int      `yaml:"device_id"`
	InputNames        []string `yaml:"input_names"`
	OutputNames       []string `yaml:"output_names"`
	InputLayout       string   `yaml:"input_layout"`
	IntraOpThreads    int      `yaml:"intra_op_threads"`
	InterOpThreads    int      `yaml:"inter_op_threads"`
}

// Profiling configures the runtime profiler.
type Profiling struct {
	Enabled        bool          `yaml:"enabled"`
	ReportInterval time.Duration `yaml:"report_interval"`
}

// Server configures the HTTP preview server.
type Server struct {
	// Listen is the listen address. Empty disables the server.
	Listen string `yaml:"listen"`
}

// Default returns the default configuration.
func Default() Config {
	classes := make(map[int]string, len(models.DefaultClassColors))
	for id, name := range models.DefaultClassColors {
		classes[id] = name
	}

	return Config{
		Detection: Detection{
			ConfidenceThreshold: 0.5,
			TargetClasses:       append([]int(nil), models.DefaultTargetClasses...),
		},
		Colors: Colors{
			Classes:  classes,
			Fallback: models.DefaultFallbackColor,
		},
		Scheduler: Scheduler{
			TickInterval:  100 * time.Millisecond,
			MaxInFlight:   1,
			DiscardPolicy: DiscardStarted,
		},
		Frame: Frame{
			Width:  640,
			Height: 640,
		},
		Model: Model{
			Backend:     BackendCPU,
			InputNames:  []string{"images"},
			OutputNames: []string{"output0"},
			InputLayout: LayoutNHWC,
		},
		Profiling: Profiling{
			ReportInterval: 2 * time.Second,
		},
		Logging: logging.Options{Level: "info"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Keys missing from the file keep their default. Class colors are merged with the
// default mapping.
//
// Arguments:
//   - path: The YAML file path.
//
// Returns:
//   - Config: The loaded configuration.
//   - error: An error if the file cannot be read, parsed, or fails validation.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing config %s", path)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs error
	fail := func(format string, args ...interface{}) {
		errs = multierr.Append(errs, errors.Errorf(format, args...))
	}

	if t := c.Detection.ConfidenceThreshold; math32.IsNaN(t) || t < 0 || t > 1 {
		fail("detection.confidence_threshold must be within [0,1], got %v", t)
	}
	if c.Detection.FilterTargetClasses && len(c.Detection.TargetClasses) == 0 {
		fail("detection.target_classes must not be empty when filtering is enabled")
	}

	if _, err := c.ClassColorMap(); err != nil {
		fail("colors: %v", err)
	}

	if c.Scheduler.TickInterval <= 0 {
		fail("scheduler.tick_interval must be positive, got %v", c.Scheduler.TickInterval)
	}
	if c.Scheduler.MaxInFlight < 1 {
		fail("scheduler.max_in_flight must be at least 1, got %d", c.Scheduler.MaxInFlight)
	}

	switch c.Scheduler.DiscardPolicy {
	case DiscardStarted, DiscardRendered:
	default:
		fail("scheduler.discard_policy %q is not supported", c.Scheduler.DiscardPolicy)
	}

	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		fail("frame size must be positive, got %dx%d", c.Frame.Width, c.Frame.Height)
	} else if largest := images.MaxResolution(); c.Frame.Width > largest.Width || c.Frame.Height > largest.Height {
		fail("frame size %dx%d exceeds %s", c.Frame.Width, c.Frame.Height, largest)
	}

	switch strings.ToLower(c.Model.Backend) {
	case BackendCPU, BackendCUDA, BackendCoreML, BackendOpenVINO, BackendDirectML:
	default:
		fail("model.backend %q is not supported", c.Model.Backend)
	}
	switch strings.ToLower(c.Model.InputLayout) {
	case LayoutNHWC, LayoutNCHW:
	default:
		fail("model.input_layout %q is not supported", c.Model.InputLayout)
	}
	if len(c.Model.InputNames) != 1 || len(c.Model.OutputNames) != 1 {
		fail("model must declare exactly one input and one output name")
	}

	if c.Profiling.Enabled && c.Profiling.ReportInterval <= 0 {
		fail("profiling.report_interval must be positive, got %v", c.Profiling.ReportInterval)
	}

	if errs != nil {
		return &ValidationError{Problems: multierr.Errors(errs)}
	}
	return nil
}

// ValidationError lists every problem found by Validate. It matches ErrInvalidConfig.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return ErrInvalidConfig.Error() + ": " + strings.Join(msgs, "; ")
}

// Is reports whether target is ErrInvalidConfig.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// FrameSize returns the canvas and tensor size.
func (c Config) FrameSize() image.Point {
	return image.Pt(c.Frame.Width, c.Frame.Height)
}

// ClassColorMap parses the configured class colors.
func (c Config) ClassColorMap() (*models.ClassColorMap, error) {
	return models.ParseClassColorMap(c.Colors.Classes, c.Colors.Fallback)
}

// Postprocess returns the postprocessor configuration.
func (c Config) Postprocess() postprocess.Config {
	return postprocess.Config{
		Threshold:           c.Detection.ConfidenceThreshold,
		CanvasWidth:         c.Frame.Width,
		CanvasHeight:        c.Frame.Height,
		TargetClasses:       append(models.TargetClasses(nil), c.Detection.TargetClasses...),
		FilterTargetClasses: c.Detection.FilterTargetClasses,
	}
}
