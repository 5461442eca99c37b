// Package config - Overlay application configuration loaded from yaml.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/nvr-ai/go-overlay/capture"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/inference/detectors"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of the overlay application.
type Config struct {
	// Mode is the detection mode at start-up.
	Mode detection.Mode `json:"mode" yaml:"mode"`
	// Rotation is the clockwise sensor rotation relative to the display, in degrees.
	Rotation int `json:"rotation" yaml:"rotation"`
	// Workers bounds the inference worker goroutines.
	Workers int `json:"workers" yaml:"workers"`
	// InferTimeout bounds a single inference call; 0 means no bound.
	InferTimeout time.Duration `json:"infer_timeout" yaml:"infer_timeout"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
	// ModelDir holds the model files named by Engine.ModelPattern.
	ModelDir string `json:"model_dir" yaml:"model_dir"`

	Camera  capture.WebcamConfig    `json:"camera" yaml:"camera"`
	Replay  capture.DirectoryConfig `json:"replay" yaml:"replay"`
	Display geometry.Size           `json:"display" yaml:"display"`
	Engine  detectors.Config        `json:"engine" yaml:"engine"`

	// Labels overrides the class names of the box model.
	Labels map[int]string `json:"labels" yaml:"labels"`
}

// DefaultConfig returns the configuration of a portrait phone-sized display
// fed by the first camera.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		Mode:        detection.ModeObjectDetection,
		Rotation:    90,
		Workers:     2,
		LogLevel:    "info",
		MetricsAddr: "",
		ModelDir:    "models",
		Camera:      capture.WebcamConfig{DeviceID: 0, Width: 640, Height: 480, Buffers: 2},
		Replay:      capture.DirectoryConfig{FPS: 30, Loop: true, Buffers: 2},
		Display:     geometry.Size{Width: 1080, Height: 2220},
		Engine:      detectors.DefaultConfig(),
	}
}

// Load reads a yaml file over DefaultConfig. Unknown fields are rejected.
//
// Arguments:
//   - path: The yaml file.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case !c.Mode.Valid():
		return errors.Wrapf(detection.ErrUnknownMode, "%d", int(c.Mode))
	case c.Rotation%90 != 0:
		return errors.Errorf("rotation %d is not a multiple of 90", c.Rotation)
	case c.Workers < 0:
		return errors.Errorf("negative worker count %d", c.Workers)
	case c.InferTimeout < 0:
		return errors.Errorf("negative inference timeout %s", c.InferTimeout)
	case c.Display.Width <= 0 || c.Display.Height <= 0:
		return errors.Errorf("display size %s is not usable", c.Display)
	}
	return errors.Wrap(c.Engine.Validate(), "engine")
}

// QuarterTurns returns Rotation as a geometry rotation.
func (c Config) QuarterTurns() geometry.Rotation {
	return geometry.Rotation(c.Rotation / 90).Normalize()
}

// ClassNames returns the configured labels, or the defaults when none are set.
func (c Config) ClassNames() *detection.ClassNames {
	if len(c.Labels) == 0 {
		return detection.NewClassNames(detection.DefaultClasses...)
	}
	return detection.NewClassNamesFromMap(c.Labels)
}
