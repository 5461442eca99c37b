package capture

import (
	"context"
	"sync"

	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"gocv.io/x/gocv"
)

// WebcamConfig configures a WebcamSource.
type WebcamConfig struct {
	// DeviceID is the video capture device index.
	DeviceID int `json:"device_id" yaml:"device_id"`
	// Resolution names a capture mode such as "vga" or "720p"; it takes
	// precedence over Width and Height.
	Resolution string `json:"resolution" yaml:"resolution"`
	// Width and Height request a capture size; zero keeps the device default.
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
	// Buffers is the number of frames that may be on loan at once.
	Buffers int `json:"buffers" yaml:"buffers"`
}

// RequestedSize returns the capture size to ask the device for. A zero size
// keeps the device default.
func (c WebcamConfig) RequestedSize() (geometry.Size, error) {
	if c.Resolution != "" {
		r, ok := images.LookupResolution(c.Resolution)
		if !ok {
			return geometry.Size{}, errors.Errorf("unknown capture resolution %q", c.Resolution)
		}
		return geometry.Size{Width: r.Width, Height: r.Height}, nil
	}
	if c.Width < 0 || c.Height < 0 {
		return geometry.Size{}, errors.Errorf("negative capture size %dx%d", c.Width, c.Height)
	}
	return geometry.Size{Width: c.Width, Height: c.Height}, nil
}

// WebcamSource reads frames from a local camera through OpenCV and converts
// them to RGBA.
type WebcamSource struct {
	mu     sync.Mutex
	webcam *gocv.VideoCapture
	bgr    gocv.Mat
	rgba   gocv.Mat
	size   geometry.Size
	pool   *bufferPool
	seq    uint64
	closed atomic.Bool
}

// OpenWebcam opens the device and reads one frame to learn the frame size.
func OpenWebcam(cfg WebcamConfig) (*WebcamSource, error) {
	want, err := cfg.RequestedSize()
	if err != nil {
		return nil, err
	}
	webcam, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, errors.Wrapf(err, "open video capture %d", cfg.DeviceID)
	}
	if want.Width > 0 && want.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(want.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(want.Height))
	}

	s := &WebcamSource{
		webcam: webcam,
		bgr:    gocv.NewMat(),
		rgba:   gocv.NewMat(),
	}
	if ok := webcam.Read(&s.bgr); !ok || s.bgr.Empty() {
		s.Close()
		return nil, errors.Errorf("cannot read device %d", cfg.DeviceID)
	}
	s.size = geometry.Size{Width: s.bgr.Cols(), Height: s.bgr.Rows()}

	buffers := cfg.Buffers
	if buffers <= 0 {
		buffers = 2
	}
	s.pool = newBufferPool(buffers, s.size.Width*s.size.Height*4)
	return s, nil
}

// Size implements Source.
func (s *WebcamSource) Size() geometry.Size { return s.size }

// Next implements Source.
func (s *WebcamSource) Next(ctx context.Context) (*Frame, error) {
	buf, err := s.pool.get(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed.Load() {
			s.pool.put(buf)
			return nil, ErrSourceClosed
		}
		if err := ctx.Err(); err != nil {
			s.pool.put(buf)
			return nil, err
		}
		if ok := s.webcam.Read(&s.bgr); !ok {
			s.pool.put(buf)
			return nil, errors.New("camera read failed")
		}
		if !s.bgr.Empty() {
			break
		}
	}

	if s.bgr.Cols() != s.size.Width || s.bgr.Rows() != s.size.Height {
		s.pool.put(buf)
		return nil, errors.Errorf("camera changed size to %dx%d", s.bgr.Cols(), s.bgr.Rows())
	}
	if err := gocv.CvtColor(s.bgr, &s.rgba, gocv.ColorBGRToRGBA); err != nil {
		s.pool.put(buf)
		return nil, errors.Wrap(err, "convert frame to RGBA")
	}
	copy(buf, s.rgba.ToBytes())
	s.seq++

	return NewFrame(buf, s.size.Width, s.size.Height, s.seq, func() { s.pool.put(buf) }), nil
}

// Close implements Source.
func (s *WebcamSource) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bgr.Close()
	s.rgba.Close()
	return s.webcam.Close()
}
