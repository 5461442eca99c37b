package detection

import (
	"fmt"
	"image"
)

// Detection is one recognised object or keypoint cluster for one frame.
//
// The set of implementations is closed: Box and Keypoints.
type Detection interface {
	// Mode returns the detection mode this variant is drawn in.
	Mode() Mode
	isDetection()
}

// Box is a class-labelled axis-aligned box with its origin at the top-left corner.
type Box struct {
	ClassID int
	X       float32
	Y       float32
	Width   float32
	Height  float32
}

// Mode implements Detection.
func (Box) Mode() Mode { return ModeObjectDetection }

func (Box) isDetection() {}

// Area returns the signed area of the box.
func (b Box) Area() float32 {
	return b.Width * b.Height
}

// ToRect converts the box to an image.Rectangle.
//
// The float coordinates are truncated, so the result is only suitable for
// pixel-level operations such as clipping.
//
// Returns:
//   - image.Rectangle: The canonicalised rectangle.
func (b Box) ToRect() image.Rectangle {
	return image.Rect(int(b.X), int(b.Y), int(b.X+b.Width), int(b.Y+b.Height)).Canon()
}

func (b Box) String() string {
	return fmt.Sprintf("Box class %d: (%.2f, %.2f) %.2fx%.2f", b.ClassID, b.X, b.Y, b.Width, b.Height)
}

// Point is a single keypoint coordinate.
type Point struct {
	X, Y float32
}

// Keypoints is an ordered set of keypoints with no class identity.
type Keypoints struct {
	Points []Point
}

// Mode implements Detection.
func (Keypoints) Mode() Mode { return ModeKeypointDetection }

func (Keypoints) isDetection() {}

func (k Keypoints) String() string {
	return fmt.Sprintf("Keypoints: %d points", len(k.Points))
}

// clone deep-copies the variants that carry slices so a stored set cannot be
// mutated through the caller's references.
func clone(dets []Detection) []Detection {
	out := make([]Detection, len(dets))
	for i, d := range dets {
		if k, ok := d.(Keypoints); ok {
			pts := make([]Point, len(k.Points))
			copy(pts, k.Points)
			out[i] = Keypoints{Points: pts}
			continue
		}
		out[i] = d
	}
	return out
}
