package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

func optimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch strings.ToLower(name) {
	case "disable", "none":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "extended", "":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", name)
	}
}

// NewSessionOptions creates onnxruntime session options for cfg. The caller
// must Destroy the result once the session has been created.
//
// Arguments:
//   - cfg: The execution configuration.
//
// Returns:
//   - *ort.SessionOptions: The configured options.
//   - error: An error if the backend could not be enabled.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	level, err := optimizationLevel(cfg.Optimization)
	if err != nil {
		return nil, err
	}
	backend, err := ParseBackend(string(cfg.Backend))
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}

	if err := configure(options, cfg, backend, level); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, cfg Config, backend Backend, level ort.GraphOptimizationLevel) error {
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		return errors.Wrap(err, "set inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(level); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}

	switch backend {
	case CoreMLBackend:
		if err := options.AppendExecutionProviderCoreML(cfg.CoreMLFlags); err != nil {
			return errors.Wrap(err, "enable CoreML")
		}
	case OpenVINOBackend:
		if err := options.AppendExecutionProviderOpenVINO(cfg.OpenVINO.Map()); err != nil {
			return errors.Wrap(err, "enable OpenVINO")
		}
	case CUDABackend:
		cuda, err := cfg.CUDA.ToNativeProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enable CUDA")
		}
	}
	return nil
}
