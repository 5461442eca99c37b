// Package geometry - Maps detections from camera sensor space to overlay surface space.
package geometry

import (
	"fmt"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/pkg/errors"
)

// ErrDegenerateGeometry is returned when the source frame has no area.
var ErrDegenerateGeometry = errors.New("degenerate source geometry")

// Size is a width and height in pixels.
type Size struct {
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Rotation is the clockwise rotation of the sensor relative to the display in
// quarter turns.
type Rotation int

const (
	// Rotate0 keeps sensor axes.
	Rotate0 Rotation = iota
	// Rotate90 is the portrait phone case: sensor width runs down the display.
	Rotate90
	// Rotate180 mirrors both axes.
	Rotate180
	// Rotate270 swaps axes the other way round.
	Rotate270
)

// Normalize folds any integer rotation into 0..3.
func (r Rotation) Normalize() Rotation {
	n := r % 4
	if n < 0 {
		n += 4
	}
	return n
}

// SwapsAxes reports whether source width maps onto target height.
func (r Rotation) SwapsAxes() bool {
	n := r.Normalize()
	return n == Rotate90 || n == Rotate270
}

// Scale returns the per-axis scale factors for mapping source onto target.
//
// Arguments:
//   - source: The camera frame size.
//   - target: The overlay surface size.
//   - rot: The sensor rotation.
//
// Returns:
//   - sx, sy: Target pixels per source pixel along the target X and Y axes.
//   - error: ErrDegenerateGeometry if the source has a non-positive dimension.
func Scale(source, target Size, rot Rotation) (float32, float32, error) {
	if source.Width <= 0 || source.Height <= 0 {
		return 0, 0, errors.Wrapf(ErrDegenerateGeometry, "source %s", source)
	}
	if rot.SwapsAxes() {
		return float32(target.Width) / float32(source.Height),
			float32(target.Height) / float32(source.Width), nil
	}
	return float32(target.Width) / float32(source.Width),
		float32(target.Height) / float32(source.Height), nil
}

// Transform maps detections from sensor space into target space.
//
// Boxes are rotated and scaled: their axes swap under a quarter turn and the
// rotated axis is mirrored. Keypoints are only scaled by the same per-axis
// factors; they arrive already in the display's axis order. On degenerate
// source geometry the whole set is discarded.
//
// Arguments:
//   - dets: Detections in sensor pixels.
//   - source: The camera frame size.
//   - target: The overlay surface size.
//   - rot: The sensor rotation.
//
// Returns:
//   - []detection.Detection: A new slice in target pixels, same order as dets.
//   - error: ErrDegenerateGeometry if the source has a non-positive dimension.
func Transform(dets []detection.Detection, source, target Size, rot Rotation) ([]detection.Detection, error) {
	sx, sy, err := Scale(source, target, rot)
	if err != nil {
		return nil, err
	}

	sw, sh := float32(source.Width), float32(source.Height)
	out := make([]detection.Detection, 0, len(dets))

	for _, d := range dets {
		switch v := d.(type) {
		case detection.Box:
			out = append(out, transformBox(v, sw, sh, sx, sy, rot.Normalize()))
		case detection.Keypoints:
			out = append(out, scaleKeypoints(v, sx, sy))
		}
	}

	return out, nil
}

// TransformRecords parses raw engine records for mode and maps them to target
// space in one step.
//
// Returns:
//   - []detection.Detection: The mapped detections.
//   - int: The number of malformed records skipped.
//   - error: ErrDegenerateGeometry on a degenerate source.
func TransformRecords(
	mode detection.Mode,
	records [][]float32,
	source, target Size,
	rot Rotation,
) ([]detection.Detection, int, error) {
	dets, skipped := detection.ParseRecords(mode, records)
	out, err := Transform(dets, source, target, rot)
	if err != nil {
		return nil, skipped, err
	}
	return out, skipped, nil
}

func transformBox(b detection.Box, sw, sh, sx, sy float32, rot Rotation) detection.Box {
	out := detection.Box{ClassID: b.ClassID}
	switch rot {
	case Rotate90:
		out.X = (sh - b.Y - b.Height) * sx
		out.Y = b.X * sy
		out.Width = b.Height * sx
		out.Height = b.Width * sy
	case Rotate180:
		out.X = (sw - b.X - b.Width) * sx
		out.Y = (sh - b.Y - b.Height) * sy
		out.Width = b.Width * sx
		out.Height = b.Height * sy
	case Rotate270:
		out.X = b.Y * sx
		out.Y = (sw - b.X - b.Width) * sy
		out.Width = b.Height * sx
		out.Height = b.Width * sy
	default:
		out.X = b.X * sx
		out.Y = b.Y * sy
		out.Width = b.Width * sx
		out.Height = b.Height * sy
	}
	return out
}

func scaleKeypoints(k detection.Keypoints, sx, sy float32) detection.Keypoints {
	pts := make([]detection.Point, len(k.Points))
	for i, p := range k.Points {
		pts[i] = detection.Point{X: p.X * sx, Y: p.Y * sy}
	}
	return detection.Keypoints{Points: pts}
}
