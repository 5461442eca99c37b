package main

import (
	"flag"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/inference/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func cliContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	app := &cli.App{}
	set := flag.NewFlagSet("overlay", flag.ContinueOnError)
	set.String(flagConfig, "", "")
	set.String(flagMode, "", "")
	set.Int(flagDevice, 0, "")
	set.String(flagReplay, "", "")
	set.String(flagBackend, "", "")
	set.String(flagModels, "", "")
	set.String(flagLibrary, "", "")
	set.String(flagMetricsAddr, "", "")
	set.String(flagLogLevel, "", "")
	set.String(flagSnapshot, "", "")
	require.NoError(t, set.Parse(args))
	return cli.NewContext(app, set, nil)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(cliContext(t,
		"-mode", "keypoints",
		"-device", "2",
		"-backend", "coreml",
		"-models", "/srv/models",
		"-onnxruntime", "/opt/libonnxruntime.so",
	))
	require.NoError(t, err)

	assert.Equal(t, detection.ModeKeypointDetection, cfg.Mode)
	assert.Equal(t, 2, cfg.Camera.DeviceID)
	assert.Equal(t, providers.CoreMLBackend, cfg.Engine.Provider.Backend)
	assert.Equal(t, "/srv/models", cfg.ModelDir)
	assert.Equal(t, "/opt/libonnxruntime.so", cfg.Engine.LibraryPath)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := loadConfig(cliContext(t, "-mode", "depth"))
	assert.ErrorIs(t, err, detection.ErrUnknownMode)

	_, err = loadConfig(cliContext(t, "-backend", "tpu"))
	assert.ErrorIs(t, err, providers.ErrUnknownBackend)

	_, err = loadConfig(cliContext(t, "-config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, err)
}

func TestNextMode(t *testing.T) {
	assert.Equal(t, detection.ModeKeypointDetection, nextMode(detection.ModeObjectDetection))
	assert.Equal(t, detection.ModeSegmentation, nextMode(detection.ModeKeypointDetection))
	assert.Equal(t, detection.ModeObjectDetection, nextMode(detection.ModeSegmentation))
}

func TestWriteSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.png")
	assert.Error(t, writeSnapshot(path, nil))

	require.NoError(t, writeSnapshot(path, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
