// Package main runs the live detection overlay against a camera or a
// directory of recorded frames.
package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nvr-ai/go-overlay/capture"
	"github.com/nvr-ai/go-overlay/config"
	"github.com/nvr-ai/go-overlay/controller"
	"github.com/nvr-ai/go-overlay/detection"
	"github.com/nvr-ai/go-overlay/inference/detectors"
	"github.com/nvr-ai/go-overlay/inference/providers"
	"github.com/nvr-ai/go-overlay/logging"
	"github.com/nvr-ai/go-overlay/metrics"
	"github.com/nvr-ai/go-overlay/overlay"
	"github.com/nvr-ai/go-overlay/render"
	"github.com/nvr-ai/go-overlay/session"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/atomic"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/multierr"
)

const (
	// Flags.
	flagConfig      = "config"
	flagMode        = "mode"
	flagDevice      = "device"
	flagReplay      = "replay"
	flagBackend     = "backend"
	flagModels      = "models"
	flagLibrary     = "onnxruntime"
	flagMetricsAddr = "metrics-addr"
	flagLogLevel    = "log-level"
	flagSnapshot    = "snapshot"
)

func main() {
	app := &cli.App{
		Name:  "overlay",
		Usage: "draw live detections over the display",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagMode,
				Usage: "detection mode: detect, keypoints or segment",
			},
			&cli.IntFlag{
				Name:  flagDevice,
				Usage: "video capture device `ID`",
			},
			&cli.StringFlag{
				Name:  flagReplay,
				Usage: "replay frame-N images from `DIR` instead of a camera",
			},
			&cli.StringFlag{
				Name:  flagBackend,
				Usage: "execution backend: cpu, cuda, coreml or openvino",
			},
			&cli.StringFlag{
				Name:  flagModels,
				Usage: "directory holding the model files",
			},
			&cli.StringFlag{
				Name:    flagLibrary,
				Usage:   "path to the onnxruntime shared library",
				EnvVars: []string{"ONNXRUNTIME_SHARED_LIBRARY_PATH"},
			},
			&cli.StringFlag{
				Name:  flagMetricsAddr,
				Usage: "serve prometheus metrics on `ADDR`",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:  flagSnapshot,
				Usage: "write the last painted overlay to `FILE` (png) on exit",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.DefaultConfig()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	if c.IsSet(flagMode) {
		mode, err := detection.ParseMode(c.String(flagMode))
		if err != nil {
			return cfg, err
		}
		cfg.Mode = mode
	}
	if c.IsSet(flagDevice) {
		cfg.Camera.DeviceID = c.Int(flagDevice)
	}
	if c.IsSet(flagReplay) {
		cfg.Replay.Dir = c.String(flagReplay)
	}
	if c.IsSet(flagBackend) {
		cfg.Engine.Provider.Backend = providers.Backend(c.String(flagBackend))
	}
	if c.IsSet(flagModels) {
		cfg.ModelDir = c.String(flagModels)
	}
	if v := c.String(flagLibrary); v != "" {
		cfg.Engine.LibraryPath = v
	}
	if c.IsSet(flagMetricsAddr) {
		cfg.MetricsAddr = c.String(flagMetricsAddr)
	}
	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
	return cfg, cfg.Validate()
}

func run(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, m, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = multierr.Append(err, srv.Shutdown(shutdownCtx))
		}()
	}

	src, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, src.Close()) }()

	assets := os.DirFS(cfg.ModelDir)
	engine, err := detectors.NewEngineBuilder().
		WithConfig(cfg.Engine).
		WithLogger(logger).
		WithModel(cfg.Mode, assets).
		Build()
	if err != nil {
		return errors.Wrap(err, "build engine")
	}
	defer func() { err = multierr.Combine(err, engine.Close(), detectors.Shutdown()) }()

	host := overlay.NewCanvasHost(cfg.Display, logger)
	last := atomic.NewPointer[image.RGBA](nil)
	host.SetPaintHook(func(_ string, img *image.RGBA) { last.Store(img) })

	sessions := session.NewManager(host, logger)
	s, err := sessions.Start(ctx, session.Options{
		Mode:     cfg.Mode,
		Source:   src.Size(),
		Rotation: cfg.QuarterTurns(),
		Names:    cfg.ClassNames(),
		Style:    render.DefaultStyle(),
	})
	if err != nil {
		return err
	}

	ctrl := controller.New(controller.Config{
		Workers:      cfg.Workers,
		InferTimeout: cfg.InferTimeout,
		Assets:       assets,
	}, engine, sessions, m, logger)

	go cycleModes(ctx, ctrl, s, logger)

	runErr := capture.Run(ctx, src, func(f *capture.Frame) { ctrl.HandleFrame(f) }, logger)

	err = multierr.Combine(runErr, ctrl.Close())
	if path := c.String(flagSnapshot); path != "" {
		err = multierr.Append(err, writeSnapshot(path, last.Load()))
	}
	return multierr.Append(err, sessions.Stop())
}

func openSource(cfg config.Config) (capture.Source, error) {
	if cfg.Replay.Dir != "" {
		return capture.NewDirectorySource(cfg.Replay)
	}
	return capture.OpenWebcam(cfg.Camera)
}

func serveMetrics(addr string, m *metrics.Metrics, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server failed", "addr", addr, "error", err)
		}
	}()
	logger.Infow("serving metrics", "addr", addr)
	return srv
}

func writeSnapshot(path string, img *image.RGBA) error {
	if img == nil {
		return errors.New("no overlay frame was painted")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create snapshot")
	}
	return multierr.Combine(png.Encode(f, img), f.Close())
}

// nextMode returns the mode after m, wrapping from segmentation to boxes.
func nextMode(m detection.Mode) detection.Mode {
	return m%detection.ModeSegmentation + 1
}
