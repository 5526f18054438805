package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jblick1327/switch-interface/internal/audio"
	"github.com/jblick1327/switch-interface/internal/calibrate"
	"github.com/jblick1327/switch-interface/internal/config"
)

// commandCalibrate measures ambient noise with the switch idle and persists
// derived detector thresholds.
func (r Runner) commandCalibrate(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
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
	defer capture.Close()

	windowMS := cfg.Calibration.Blocks * cfg.Audio.BlockSize * 1000 / cfg.Audio.SampleRate
	fmt.Fprintf(r.Stdout, "measuring ambient noise on %q for ~%dms; keep the switch idle\n",
		selection.Device.ID, windowMS)

	ambient, err := calibrate.Measure(ctx, capture.Blocks(), cfg.Calibration.Blocks)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	result, err := calibrate.Derive(ambient, cfg.Calibration.Margin, cfg.Calibration.HysteresisFrac)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	path, err := calibrate.StatePath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if err := calibrate.Save(path, result); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logger.Info("calibration saved",
		"path", path,
		"ambient", result.Ambient,
		"threshold", result.Threshold,
		"hysteresis", result.Hysteresis,
	)
	fmt.Fprintf(r.Stdout, "ambient %.4f (peak %.4f)\nthreshold %.4f, hysteresis %.4f\nsaved to %s\n",
		result.Ambient, result.Peak, result.Threshold, result.Hysteresis, path)
	return 0
}
