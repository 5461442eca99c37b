package inference

import (
	"image"

	"github.com/pkg/errors"
)

// FrameImage wraps a tightly packed RGBA buffer as an image without copying.
//
// Arguments:
//   - pixels: The frame bytes, 4 per pixel, row major.
//   - width: The frame width in pixels.
//   - height: The frame height, or 0 to derive it from the buffer length.
//
// Returns:
//   - *image.RGBA: An image sharing pixels.
//   - error: ErrFrameSize if the buffer does not hold width x height pixels.
func FrameImage(pixels []byte, width, height int) (*image.RGBA, error) {
	stride := width * 4
	if width <= 0 || len(pixels) == 0 || len(pixels)%stride != 0 {
		return nil, errors.Wrapf(ErrFrameSize, "%d bytes at width %d", len(pixels), width)
	}
	rows := len(pixels) / stride
	if height == 0 {
		height = rows
	}
	if rows != height {
		return nil, errors.Wrapf(ErrFrameSize, "%d bytes is %d rows, want %d", len(pixels), rows, height)
	}
	return &image.RGBA{
		Pix:    pixels,
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// PrepareInput fills dst with img as a planar CHW float tensor normalised to
// [0, 1]. img must already be at the model input size.
//
// Arguments:
//   - img: The letterboxed model input.
//   - dst: The destination tensor data, at least 3 x width x height floats.
//
// Returns:
//   - error: An error if dst is too small.
func PrepareInput(img *image.RGBA, dst []float32) error {
	b := img.Bounds()
	channelSize := b.Dx() * b.Dy()
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			p := row[x*4 : x*4+3]
			red[i] = float32(p[0]) / 255.0
			green[i] = float32(p[1]) / 255.0
			blue[i] = float32(p[2]) / 255.0
			i++
		}
	}
	return nil
}
