package capture

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nvr-ai/go-overlay/geometry"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
)

// ImageFile is one frame image on disk.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw encoded bytes.
	Data []byte
	// Frame is the frame number parsed from "frame-N.ext".
	Frame int
}

// LoadDirectoryImageFiles reads every frame-N.{png,jpg,jpeg} file in dir,
// sorted by frame number.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []ImageFile: The files in frame order.
//   - error: Error if reading fails or a file name has no frame number.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read frame directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		ext := filepath.Ext(entry.Name())
		switch strings.ToLower(ext) {
		case ".jpg", ".jpeg", ".png":
		default:
			continue
		}

		path := filepath.Join(dir, entry.Name())
		frame, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "frame-"), ext))
		if err != nil {
			return nil, errors.Wrapf(err, "frame number of %s", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		files = append(files, ImageFile{Path: path, Data: data, Frame: frame})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Frame < files[j].Frame
	})

	return files, nil
}

// DirectorySource replays decoded frame images as if they came from a camera.
type DirectorySource struct {
	frames   [][]byte
	size     geometry.Size
	interval time.Duration
	loop     bool

	pool   *bufferPool
	next   int
	seq    uint64
	last   time.Time
	closed atomic.Bool
}

// DirectoryConfig configures a DirectorySource.
type DirectoryConfig struct {
	// Dir holds frame-N image files, all of the same size.
	Dir string `json:"dir" yaml:"dir"`
	// FPS paces delivery; zero delivers as fast as frames are released.
	FPS float64 `json:"fps" yaml:"fps"`
	// Loop restarts from the first frame when the last one was delivered.
	Loop bool `json:"loop" yaml:"loop"`
	// Buffers is the number of frames that may be on loan at once.
	Buffers int `json:"buffers" yaml:"buffers"`
}

// NewDirectorySource decodes every frame in cfg.Dir up front.
func NewDirectorySource(cfg DirectoryConfig) (*DirectorySource, error) {
	files, err := LoadDirectoryImageFiles(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no frame images in %s", cfg.Dir)
	}

	src := &DirectorySource{loop: cfg.Loop}
	for _, f := range files {
		img, _, err := image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", f.Path)
		}
		b := img.Bounds()
		size := geometry.Size{Width: b.Dx(), Height: b.Dy()}
		if src.size == (geometry.Size{}) {
			src.size = size
		} else if size != src.size {
			return nil, errors.Errorf("%s is %s, expected %s", f.Path, size, src.size)
		}
		rgba := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
		src.frames = append(src.frames, rgba.Pix)
	}

	if cfg.FPS > 0 {
		src.interval = time.Duration(float64(time.Second) / cfg.FPS)
	}
	buffers := cfg.Buffers
	if buffers <= 0 {
		buffers = 2
	}
	src.pool = newBufferPool(buffers, len(src.frames[0]))
	return src, nil
}

// Size implements Source.
func (s *DirectorySource) Size() geometry.Size { return s.size }

// Next implements Source.
func (s *DirectorySource) Next(ctx context.Context) (*Frame, error) {
	if s.closed.Load() {
		return nil, ErrSourceClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.frames) {
		if !s.loop {
			return nil, ErrSourceClosed
		}
		s.next = 0
	}

	if s.interval > 0 && !s.last.IsZero() {
		if wait := time.Until(s.last.Add(s.interval)); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}

	buf, err := s.pool.get(ctx)
	if err != nil {
		return nil, err
	}
	copy(buf, s.frames[s.next])
	s.next++
	s.seq++
	s.last = time.Now()

	return NewFrame(buf, s.size.Width, s.size.Height, s.seq, func() { s.pool.put(buf) }), nil
}

// Close implements Source.
func (s *DirectorySource) Close() error {
	s.closed.Store(true)
	return nil
}
