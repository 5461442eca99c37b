// Package providers - Execution backend selection for onnxruntime sessions.
package providers

import (
	"strings"

	"github.com/pkg/errors"
)

// Backend names an onnxruntime execution provider.
type Backend string

const (
	// CPUBackend runs on the default CPU provider.
	CPUBackend Backend = "cpu"
	// CUDABackend uses NVIDIA CUDA.
	CUDABackend Backend = "cuda"
	// CoreMLBackend uses Apple CoreML.
	CoreMLBackend Backend = "coreml"
	// OpenVINOBackend uses Intel OpenVINO.
	OpenVINOBackend Backend = "openvino"
)

// ErrUnknownBackend is returned for unrecognised backend names.
var ErrUnknownBackend = errors.New("unknown execution backend")

// ParseBackend resolves a backend name, case-insensitively.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case CPUBackend, CUDABackend, CoreMLBackend, OpenVINOBackend:
		return b, nil
	case "":
		return CPUBackend, nil
	default:
		return "", errors.Wrapf(ErrUnknownBackend, "%q", s)
	}
}

// Config describes how inference sessions are created.
type Config struct {
	// Backend is the execution provider appended to the session.
	Backend Backend `json:"backend" yaml:"backend"`
	// IntraOpThreads parallelises work within graph nodes; 0 uses the runtime default.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// InterOpThreads parallelises work across graph nodes; 0 uses the runtime default.
	InterOpThreads int `json:"inter_op_threads" yaml:"inter_op_threads"`
	// Optimization is one of "disable", "basic", "extended", "all".
	Optimization string `json:"optimization" yaml:"optimization"`
	// CoreMLFlags are passed to the CoreML provider as is.
	CoreMLFlags uint32 `json:"coreml_flags" yaml:"coreml_flags"`
	// CUDA configures the CUDA provider.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
	// OpenVINO configures the OpenVINO provider.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
}

// DefaultConfig returns a CPU configuration with extended graph optimisation.
func DefaultConfig() Config {
	return Config{
		Backend:        CPUBackend,
		IntraOpThreads: 4,
		InterOpThreads: 2,
		Optimization:   "extended",
		OpenVINO:       DefaultOpenVINOOptions(),
	}
}

// Validate checks the backend and optimisation names.
func (c Config) Validate() error {
	if _, err := ParseBackend(string(c.Backend)); err != nil {
		return err
	}
	if _, err := optimizationLevel(c.Optimization); err != nil {
		return err
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.New("thread counts must not be negative")
	}
	return nil
}
