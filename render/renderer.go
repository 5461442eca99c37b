package render

import (
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/nvr-ai/go-overlay/detection"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
)

var boldFont *truetype.Font

func init() {
	var err error
	boldFont, err = truetype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
}

// Style controls the fixed drawing parameters.
type Style struct {
	// StrokeWidth is the box outline width in pixels.
	StrokeWidth float64 `json:"stroke_width" yaml:"stroke_width"`
	// LabelSize is the label font size in points.
	LabelSize float64 `json:"label_size" yaml:"label_size"`
	// LabelPadding is added around the text bounds on each side.
	LabelPadding float64 `json:"label_padding" yaml:"label_padding"`
	// LabelColor is the text colour drawn over the label background.
	LabelColor color.RGBA `json:"-" yaml:"-"`
	// KeypointRadius is the radius of the dot drawn per keypoint.
	KeypointRadius float64 `json:"keypoint_radius" yaml:"keypoint_radius"`
	// KeypointColor fills every keypoint dot.
	KeypointColor color.RGBA `json:"-" yaml:"-"`
}

// DefaultStyle returns the overlay look: 5px outlines, 40pt bold labels with
// 8px padding, 5px cyan keypoints.
func DefaultStyle() Style {
	return Style{
		StrokeWidth:    5,
		LabelSize:      40,
		LabelPadding:   8,
		LabelColor:     color.RGBA{A: 0xff},
		KeypointRadius: 5,
		KeypointColor:  color.RGBA{G: 0xff, B: 0xff, A: 0xff},
	}
}

// Renderer draws detection snapshots. It only reads the snapshot it is given
// and must be driven from a single paint goroutine.
type Renderer struct {
	names  *detection.ClassNames
	colors *ColorAssignment
	style  Style
	face   font.Face
}

// NewRenderer creates a renderer that labels boxes with names and colours
// them through colors.
func NewRenderer(names *detection.ClassNames, colors *ColorAssignment, style Style) *Renderer {
	if colors == nil {
		colors = NewColorAssignment(nil)
	}
	return &Renderer{
		names:  names,
		colors: colors,
		style:  style,
		face:   truetype.NewFace(boldFont, &truetype.Options{Size: style.LabelSize}),
	}
}

// Colors returns the colour assignment the renderer draws with.
func (r *Renderer) Colors() *ColorAssignment {
	return r.colors
}

// Draw clears dc to fully transparent and paints every detection in snapshot
// that belongs to mode.
//
// Arguments:
//   - dc: The surface canvas.
//   - snapshot: The detections to paint, in target pixels.
//   - mode: The active detection mode; other variants are not drawn.
//
// Returns:
//   - int: The number of detections painted.
func (r *Renderer) Draw(dc *gg.Context, snapshot []detection.Detection, mode detection.Mode) int {
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	drawn := 0
	for _, d := range snapshot {
		if d.Mode() != mode {
			continue
		}
		switch v := d.(type) {
		case detection.Box:
			r.drawBox(dc, v)
		case detection.Keypoints:
			r.drawKeypoints(dc, v)
		}
		drawn++
	}
	return drawn
}

func (r *Renderer) drawBox(dc *gg.Context, b detection.Box) {
	c := r.colors.Color(b.ClassID)
	x, y := float64(b.X), float64(b.Y)

	dc.SetColor(c)
	dc.SetLineWidth(r.style.StrokeWidth)
	dc.DrawRectangle(x, y, float64(b.Width), float64(b.Height))
	dc.Stroke()

	label := r.names.Name(b.ClassID)
	tw, th := r.labelSize(label)
	labelY := max(y-th, 0)

	dc.SetColor(c)
	dc.DrawRectangle(x, labelY, tw, th)
	dc.Fill()

	dc.SetFontFace(r.face)
	dc.SetColor(r.style.LabelColor)
	dc.DrawString(label, x+r.style.LabelPadding, labelY+th-r.style.LabelPadding)
}

// labelSize returns the label background size: tight text bounds plus
// padding on both sides.
func (r *Renderer) labelSize(label string) (float64, float64) {
	bounds, _ := font.BoundString(r.face, label)
	w := float64(bounds.Max.X-bounds.Min.X) / 64
	h := float64(bounds.Max.Y-bounds.Min.Y) / 64
	pad := 2 * r.style.LabelPadding
	return w + pad, h + pad
}

func (r *Renderer) drawKeypoints(dc *gg.Context, k detection.Keypoints) {
	dc.SetColor(r.style.KeypointColor)
	for _, p := range k.Points {
		dc.DrawCircle(float64(p.X), float64(p.Y), r.style.KeypointRadius)
		dc.Fill()
	}
}
