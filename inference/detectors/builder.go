package detectors

import (
	"io/fs"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/inference/providers"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/pkg/errors"
)

// EngineBuilder builds an ONNXEngine with a fluent API. The first error is
// sticky: later steps are skipped and Build returns it.
type EngineBuilder struct {
	cfg    Config
	logger logging.Logger
	assets fs.FS
	mode   detection.Mode
	err    error
}

// NewEngineBuilder creates a new engine builder starting from DefaultConfig.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{cfg: DefaultConfig()}
}

// WithConfig replaces the whole engine configuration.
func (b *EngineBuilder) WithConfig(cfg Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.cfg = cfg
	return b
}

// WithBackend selects the execution provider by name.
//
// Arguments:
//   - name: One of cpu, cuda, coreml, openvino.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithBackend(name string) *EngineBuilder {
	if b.HasError() {
		return b
	}
	backend, err := providers.ParseBackend(name)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg.Provider.Backend = backend
	return b
}

// WithLogger sets the engine logger.
func (b *EngineBuilder) WithLogger(logger logging.Logger) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.logger = logger
	return b
}

// WithModel loads the model of mode from assets when the engine is built.
//
// Arguments:
//   - mode: The initial detection mode.
//   - assets: The file system holding the model files.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(mode detection.Mode, assets fs.FS) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if !mode.Valid() {
		b.err = errors.Wrapf(detection.ErrUnknownMode, "%d", int(mode))
		return b
	}
	b.mode, b.assets = mode, assets
	return b
}

// HasError checks if the engine builder has errors.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// Build builds the engine.
//
// Returns:
//   - *ONNXEngine: The engine, initialised when WithModel was called.
//   - error: The first error met while building.
func (b *EngineBuilder) Build() (*ONNXEngine, error) {
	if b.HasError() {
		return nil, b.err
	}
	engine, err := NewONNXEngine(b.cfg, b.logger)
	if err != nil {
		return nil, err
	}
	if b.mode != 0 {
		if err := engine.Initialize(b.mode, b.assets); err != nil {
			return nil, err
		}
	}
	return engine, nil
}

// MustBuild builds the engine and panics if there is an error.
func (b *EngineBuilder) MustBuild() *ONNXEngine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}
