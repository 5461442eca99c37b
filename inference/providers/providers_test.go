package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	for in, want := range map[string]Backend{
		"":         CPUBackend,
		"cpu":      CPUBackend,
		"CUDA":     CUDABackend,
		" coreml ": CoreMLBackend,
		"OpenVINO": OpenVINOBackend,
	} {
		got, err := ParseBackend(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseBackend("tpu")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Optimization = "max"
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Backend = "tpu"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownBackend)

	cfg = DefaultConfig()
	cfg.IntraOpThreads = -1
	assert.Error(t, cfg.Validate())
}

func TestOpenVINOOptionsMap(t *testing.T) {
	assert.Equal(t, map[string]string{
		"device_type":    "CPU",
		"precision":      "FP32",
		"num_of_threads": "4",
	}, DefaultOpenVINOOptions().Map())

	assert.Empty(t, OpenVINOOptions{}.Map())
}

func TestCUDAOptionsMap(t *testing.T) {
	m := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, CudnnConvAlgoSearch: 1}.Map()
	assert.Equal(t, "1", m["device_id"])
	assert.Equal(t, "1073741824", m["gpu_mem_limit"])
	assert.Equal(t, "HEURISTIC", m["cudnn_conv_algo_search"])
	assert.Equal(t, "kNextPowerOfTwo", m["arena_extend_strategy"])
	assert.Equal(t, "false", m["do_copy_in_default_stream"])

	_, ok := CUDAOptions{}.Map()["gpu_mem_limit"]
	assert.False(t, ok)
}

func TestGetSharedLibPath(t *testing.T) {
	path, err := GetSharedLibPath("/opt/ort/libonnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", path)

	t.Setenv(LibraryPathEnv, "/env/libonnxruntime.so")
	path, err = GetSharedLibPath("")
	require.NoError(t, err)
	assert.Equal(t, "/env/libonnxruntime.so", path)
}

func TestCUDAOptionsOutOfRange(t *testing.T) {
	m := CUDAOptions{ArenaExtendStrategy: 7, CudnnConvAlgoSearch: -1}.Map()
	assert.Equal(t, "kNextPowerOfTwo", m["arena_extend_strategy"])
	assert.Equal(t, "EXHAUSTIVE", m["cudnn_conv_algo_search"])
}
