// Package images - Frame preprocessing helpers for model input.
package images

import "github.com/chewxy/math32"

// Rect is a float bounding box in corner form.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// RectFromCenter builds a Rect from a YOLO-style centre, width and height.
func RectFromCenter(cx, cy, w, h float32) Rect {
	return Rect{X1: cx - w/2, Y1: cy - h/2, X2: cx + w/2, Y2: cy + h/2}
}

// Width returns X2-X1.
func (r Rect) Width() float32 { return r.X2 - r.X1 }

// Height returns Y2-Y1.
func (r Rect) Height() float32 { return r.Y2 - r.Y1 }

// Area returns the area, or 0 for an inverted rectangle.
func (r Rect) Area() float32 {
	return math32.Max(r.Width(), 0) * math32.Max(r.Height(), 0)
}

// CalculateIoU returns the intersection over union of two rectangles, a value
// between 0 (disjoint) and 1 (identical).
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle.
//
// Returns:
//   - float32: The IoU score; 0 when the union is empty.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	inter := interW * interH

	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
