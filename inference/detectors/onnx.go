package detectors

import (
	"context"
	"image"
	"io/fs"
	"os"
	"sync"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/images"
	"github.com/nvr-ai/go-overlay/inference"
	"github.com/nvr-ai/go-overlay/inference/providers"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var envMu sync.Mutex

// initEnvironment loads the onnxruntime shared library once per process.
func initEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	path, err := providers.GetSharedLibPath(libPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", path)
	}
	ort.SetSharedLibraryPath(path)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize onnxruntime environment")
	}
	return nil
}

// Shutdown releases the process-wide onnxruntime environment. Engines must be
// closed first.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXEngine runs YOLOv8-style box and pose models with onnxruntime.
// It implements inference.Engine; Infer calls are serialised.
type ONNXEngine struct {
	cfg    Config
	logger logging.Logger

	mu        sync.Mutex
	mode      detection.Mode
	session   *inference.Session
	letterbox *image.RGBA
}

var _ inference.Engine = (*ONNXEngine)(nil)

// NewONNXEngine creates an engine. No model is loaded until Initialize.
//
// Arguments:
//   - cfg: The engine configuration.
//   - logger: The logger; nil discards output.
//
// Returns:
//   - *ONNXEngine: The engine.
//   - error: An error if cfg is invalid.
func NewONNXEngine(cfg Config, logger logging.Logger) (*ONNXEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid engine config")
	}
	return &ONNXEngine{cfg: cfg, logger: logging.Named(logger, "onnx")}, nil
}

// Config returns the engine configuration.
func (e *ONNXEngine) Config() Config { return e.cfg }

// Mode returns the mode of the loaded model, or 0 before Initialize.
func (e *ONNXEngine) Mode() detection.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Initialize loads the model of mode from assets. Segmentation loads nothing
// and yields no records. The previous model stays in use until the new one
// has loaded; on failure it remains active.
func (e *ONNXEngine) Initialize(mode detection.Mode, assets fs.FS) error {
	if !mode.Valid() {
		return errors.Wrapf(detection.ErrUnknownMode, "%d", int(mode))
	}

	var (
		session *inference.Session
		name    string
	)
	if mode != detection.ModeSegmentation {
		if assets == nil {
			return errors.New("no model assets")
		}
		name = e.cfg.ModelFile(mode)
		data, err := fs.ReadFile(assets, name)
		if err != nil {
			return errors.Wrapf(err, "read model %s", name)
		}
		if err := initEnvironment(e.cfg.LibraryPath); err != nil {
			return err
		}
		if session, err = e.newSession(mode, data); err != nil {
			return errors.Wrapf(err, "load model %s", name)
		}
	}

	e.mu.Lock()
	previous := e.session
	e.session = session
	e.mode = mode
	e.mu.Unlock()
	previous.Close()

	if session == nil {
		e.logger.Infow("segmentation selected, no model loaded")
		return nil
	}
	e.logger.Infow("model loaded", "model", name, "mode", mode, "output", session.OutputShape)
	return nil
}

func (e *ONNXEngine) newSession(mode detection.Mode, data []byte) (*inference.Session, error) {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return nil, errors.Wrap(err, "inspect model")
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}

	shape, err := outputShape(e.cfg, mode, outputs[0].Dimensions)
	if err != nil {
		return nil, err
	}

	size := int64(e.cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(shape...))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	options, err := providers.NewSessionOptions(e.cfg.Provider)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSessionWithONNXData(
		data,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		[]ort.Value{input},
		[]ort.Value{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "create session")
	}

	return &inference.Session{
		Session:     session,
		Input:       input,
		Output:      output,
		OutputShape: ort.NewShape(shape...),
	}, nil
}

// Infer letterboxes the RGBA frame into the model input, runs the model and
// returns records in frame pixels.
func (e *ONNXEngine) Infer(ctx context.Context, pixels []byte, frameWidth int) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.mode == detection.ModeSegmentation:
		return nil, nil
	case e.session == nil:
		return nil, inference.ErrNotInitialized
	}

	frame, err := inference.FrameImage(pixels, frameWidth, e.cfg.FrameHeight)
	if err != nil {
		return nil, err
	}

	var lb images.LetterboxInfo
	e.letterbox, lb = images.Letterbox(frame, e.cfg.InputSize, e.letterbox)
	if err := inference.PrepareInput(e.letterbox, e.session.Input.GetData()); err != nil {
		return nil, errors.Wrap(err, "prepare input")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.session.Run(); err != nil {
		return nil, errors.Wrap(err, "run inference")
	}

	return decodeRecords(e.cfg, e.mode, e.session.Output.GetData(), e.session.OutputShape, lb)
}

// Close releases the loaded model.
func (e *ONNXEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.session.Close()
	e.session = nil
	e.mode = 0
	return nil
}
