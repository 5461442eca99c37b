// Package detectors - onnxruntime backed detection engine.
package detectors

import (
	"fmt"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/inference/providers"
	"github.com/pkg/errors"
)

// Layout names the shape of a box model's output tensor.
type Layout string

const (
	// LayoutYOLO is a YOLOv8 head: [4+classes, anchors].
	LayoutYOLO Layout = "yolo"
	// LayoutRows is a detection-output layer: one [label, score, x1, y1, x2, y2] row per box.
	LayoutRows Layout = "rows"
)

// Config represents the configuration of an ONNXEngine.
type Config struct {
	// Backend execution provider configuration.
	Provider providers.Config `json:"provider" yaml:"provider"`
	// LibraryPath is the onnxruntime shared library; empty resolves the default.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// ModelPattern names the model file of a mode; %s is replaced by the mode name.
	ModelPattern string `json:"model_pattern" yaml:"model_pattern"`
	// InputSize is the side of the square model input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// FrameHeight is the camera frame height; 0 derives it from the buffer length.
	FrameHeight int `json:"frame_height" yaml:"frame_height"`
	// Layout is the box model output layout.
	Layout Layout `json:"layout" yaml:"layout"`
	// Confidence filters boxes below this score.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// KeypointConfidence is the minimum anchor confidence of a keypoint set.
	KeypointConfidence float32 `json:"keypoint_confidence" yaml:"keypoint_confidence"`
	// IoUThreshold controls non-maximum suppression.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// NumClasses is the number of classes of the box model.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// NumKeypoints is the number of keypoints of the pose model.
	NumKeypoints int `json:"num_keypoints" yaml:"num_keypoints"`
}

// DefaultConfig returns the configuration of the bundled models: a
// 640x640 YOLOv8 box model over four classes and an eight point pose model.
//
// Returns:
//   - Config: The default configuration.
func DefaultConfig() Config {
	return Config{
		Provider:           providers.DefaultConfig(),
		ModelPattern:       "%s.onnx",
		InputSize:          640,
		Layout:             LayoutYOLO,
		Confidence:         0.5,
		KeypointConfidence: 0.7,
		IoUThreshold:       0.45,
		NumClasses:         4,
		NumKeypoints:       8,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.InputSize <= 0 || c.InputSize%32 != 0:
		return errors.Errorf("input size %d is not a positive multiple of 32", c.InputSize)
	case c.FrameHeight < 0:
		return errors.Errorf("negative frame height %d", c.FrameHeight)
	case c.Layout != LayoutYOLO && c.Layout != LayoutRows:
		return errors.Errorf("unknown output layout %q", c.Layout)
	case !unit(c.Confidence) || !unit(c.KeypointConfidence) || !unit(c.IoUThreshold):
		return errors.New("thresholds must be within [0, 1]")
	case c.NumClasses <= 0:
		return errors.Errorf("invalid class count %d", c.NumClasses)
	case c.NumKeypoints <= 0:
		return errors.Errorf("invalid keypoint count %d", c.NumKeypoints)
	case c.ModelPattern == "":
		return errors.New("empty model pattern")
	}
	return c.Provider.Validate()
}

// ModelFile returns the asset name of the model for mode.
func (c Config) ModelFile(mode detection.Mode) string {
	return fmt.Sprintf(c.ModelPattern, mode)
}

// anchors returns the number of YOLOv8 anchors for the input size: one per
// cell of the stride 8, 16 and 32 grids.
func (c Config) anchors() int64 {
	n := int64(0)
	for _, stride := range []int{8, 16, 32} {
		g := int64(c.InputSize / stride)
		n += g * g
	}
	return n
}

func unit(v float32) bool { return v >= 0 && v <= 1 }
