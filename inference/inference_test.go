package inference

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameImage(t *testing.T) {
	pixels := make([]byte, 4*3*2)
	pixels[4*4+1] = 200 // (1, 1) green

	img, err := FrameImage(pixels, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())
	assert.Equal(t, color.RGBA{G: 200}, img.RGBAAt(1, 1))

	_, err = FrameImage(pixels, 3, 2)
	require.NoError(t, err)

	t.Run("errors", func(t *testing.T) {
		_, err := FrameImage(pixels, 5, 0)
		assert.ErrorIs(t, err, ErrFrameSize, "partial row")
		_, err = FrameImage(pixels, 0, 0)
		assert.ErrorIs(t, err, ErrFrameSize, "zero width")
		_, err = FrameImage(nil, 3, 0)
		assert.ErrorIs(t, err, ErrFrameSize, "empty buffer")
		_, err = FrameImage(pixels, 3, 4)
		assert.ErrorIs(t, err, ErrFrameSize, "height mismatch")
	})
}

func TestPrepareInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	img.SetRGBA(1, 1, color.RGBA{G: 51, B: 102, A: 255})

	dst := make([]float32, 12)
	require.NoError(t, PrepareInput(img, dst))

	assert.InDelta(t, 1.0, dst[0], 1e-6, "red plane, pixel 0")
	assert.InDelta(t, 0.2, dst[4+3], 1e-6, "green plane, pixel 3")
	assert.InDelta(t, 0.4, dst[8+3], 1e-6, "blue plane, pixel 3")
	assert.Zero(t, dst[4])

	assert.Error(t, PrepareInput(img, make([]float32, 11)))
}

func TestFunc(t *testing.T) {
	var e Engine = Func(func(_ context.Context, pixels []byte, width int) ([][]float32, error) {
		return [][]float32{{float32(len(pixels)), float32(width)}}, nil
	})
	require.NoError(t, e.Initialize(detection.ModeObjectDetection, nil))

	out, err := e.Infer(context.Background(), make([]byte, 8), 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{8, 2}}, out)
	assert.NoError(t, e.Close())

	_, err = Func(nil).Infer(context.Background(), nil, 1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}
