package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jblick1327/switch-interface/internal/audio"
	"github.com/jblick1327/switch-interface/internal/calibrate"
	"github.com/jblick1327/switch-interface/internal/config"
	"github.com/jblick1327/switch-interface/internal/detect"
	"github.com/jblick1327/switch-interface/internal/ipc"
	"github.com/jblick1327/switch-interface/internal/layout"
	"github.com/jblick1327/switch-interface/internal/monitor"
	"github.com/jblick1327/switch-interface/internal/predict"
	"github.com/jblick1327/switch-interface/internal/scan"
	"github.com/jblick1327/switch-interface/internal/sink"
)

// commandRun owns the foreground scanning session: capture, detection, the
// engine, and the IPC/monitor surfaces, all torn down together.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a switchscan session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	kb, err := resolveLayout(cfg.Layout.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	injector, err := sink.NewInjector(cfg.TypeCmd.Argv, cfg.KeyCmd.Argv, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	var suggester predict.Suggester
	if cfg.Predict.Enable {
		freq, err := predict.NewFrequency()
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		suggester = freq
	}

	engine, err := scan.New(engineConfig(cfg), kb, injector, suggester, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	detector, err := detect.New(detectorConfig(cfg, logger))
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if selection.Warning != "" {
		fmt.Fprintf(r.Stderr, "warning: %s\n", selection.Warning)
	}

	capture, err := audio.StartCapture(ctx, selection.Device, audio.CaptureConfig{
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
	})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: start capture: %v\n", err)
		return 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error { return engine.Run(gctx) })
	g.Go(func() error { return pumpAudio(gctx, capture, detector, engine) })
	g.Go(func() error {
		return ipc.Serve(gctx, listener, sessionHandler(engine, cancel))
	})

	if cfg.Monitor.Enable {
		monitorLn, err := net.Listen("tcp", cfg.Monitor.Listen)
		if err != nil {
			capture.Close()
			fmt.Fprintf(r.Stderr, "error: monitor listen: %v\n", err)
			return 1
		}
		srv := monitor.NewServer(engine, logger)
		g.Go(func() error { return srv.Serve(gctx, monitorLn) })
		logger.Info("monitor listening", "addr", cfg.Monitor.Listen)
	}

	if cfg.Layout.Watch && cfg.Layout.Path != "" {
		path := cfg.Layout.Path
		g.Go(func() error {
			return layout.Watch(gctx, path, logger, func(changed string) {
				next, err := layout.Load(changed)
				if err != nil {
					logger.Warn("layout reload rejected", "path", changed, "error", err.Error())
					return
				}
				if err := engine.SwapLayout(next); err != nil {
					logger.Warn("layout swap rejected", "path", changed, "error", err.Error())
				}
			})
		})
	}

	engine.Start()
	fmt.Fprintf(r.Stdout, "scanning started (session %s, device %q)\n",
		engine.Session(), selection.Device.ID)

	err = g.Wait()
	capture.Close()

	diag := engine.Diag()
	logger.Info("session finished",
		"session", engine.Session(),
		"releases", diag.Releases,
		"stale_expiries", diag.StaleExpiries,
		"dropped_presses", diag.DroppedPresses,
		"dropped_commits", diag.DroppedCommits,
		"commit_failures", diag.CommitFailures,
		"capture_dropped", capture.Dropped(),
	)

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "session ended")
	return 0
}

func engineConfig(cfg config.Config) scan.Config {
	out := scan.Config{
		Dwell:            time.Duration(cfg.Scan.DwellMS) * time.Millisecond,
		Strategy:         scan.Strategy(cfg.Scan.Strategy),
		ResetAfterCommit: cfg.Scan.ResetAfterCommit,
	}
	if cfg.Predict.Enable {
		out.SuggestionCount = cfg.Predict.Count
		out.SuggestionTimeout = time.Duration(cfg.Predict.TimeoutMS) * time.Millisecond
	}
	return out
}

// detectorConfig applies stored calibration over the configured thresholds
// when one exists.
func detectorConfig(cfg config.Config, logger *slog.Logger) detect.Config {
	out := detect.Config{
		SampleRate: cfg.Audio.SampleRate,
		BlockSize:  cfg.Audio.BlockSize,
		Threshold:  cfg.Detector.Threshold,
		Hysteresis: cfg.Detector.Hysteresis,
		Alpha:      cfg.Detector.Alpha,
		DebounceMS: cfg.Detector.DebounceMS,
	}

	path, err := calibrate.StatePath()
	if err != nil {
		return out
	}
	stored, ok, err := calibrate.Load(path)
	if err != nil {
		logger.Warn("stored calibration unreadable; using configured thresholds", "error", err.Error())
		return out
	}
	if ok {
		out.Threshold = stored.Threshold
		out.Hysteresis = stored.Hysteresis
		logger.Info("using stored calibration",
			"threshold", stored.Threshold,
			"hysteresis", stored.Hysteresis,
			"measured_at", stored.MeasuredAt.Format(time.RFC3339),
		)
	}
	return out
}

func resolveLayout(path string) (*layout.Keyboard, error) {
	if path == "" {
		return layout.Default(), nil
	}
	return layout.Load(path)
}

// pumpAudio feeds capture blocks through the detector into the engine. A
// closed block stream ends the pump; stream faults suspend the engine but the
// pump keeps draining in case capture recovers.
func pumpAudio(ctx context.Context, capture *audio.Capture, detector *detect.Detector, engine *scan.Engine) error {
	blocks := capture.Blocks()
	faults := capture.Faults()

	for {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
			return nil
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			if ev, fire := detector.Process(block); fire {
				engine.HandleEvent(ev)
			}
		case ferr, ok := <-faults:
			if !ok {
				faults = nil
				continue
			}
			if ferr != nil {
				engine.Fault(ferr)
			}
		}
	}
}

// sessionHandler maps IPC commands onto engine controls. Stop also ends the
// run session, mirroring a foreground interrupt.
func sessionHandler(engine *scan.Engine, shutdown context.CancelFunc) ipc.Handler {
	return ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
		switch req.Command {
		case "status":
			return statusResponse(engine, "")
		case "pause":
			engine.Pause()
			return statusResponse(engine, "paused")
		case "resume":
			engine.Resume()
			return statusResponse(engine, "resumed")
		case "stop":
			engine.Stop()
			shutdown()
			return statusResponse(engine, "stopped")
		default:
			return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
		}
	})
}

func statusResponse(engine *scan.Engine, message string) ipc.Response {
	snap := engine.Snapshot()
	return ipc.Response{
		OK:       true,
		Session:  snap.Session,
		State:    string(snap.State),
		Strategy: string(snap.Strategy),
		Page:     snap.Page,
		Row:      snap.Row,
		Key:      snap.Key,
		Message:  message,
	}
}
