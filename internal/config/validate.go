package config

import (
	"fmt"
	"net"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if cfg.Audio.SampleRate <= 0 {
		return nil, fmt.Errorf("audio.sample_rate must be > 0")
	}
	if cfg.Audio.BlockSize <= 0 {
		return nil, fmt.Errorf("audio.block_size must be > 0")
	}
	blockMS := float64(cfg.Audio.BlockSize) / float64(cfg.Audio.SampleRate) * 1000
	if blockMS > 50 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("audio block duration %.0fms is coarse; press latency suffers above ~20ms", blockMS)})
	}

	if cfg.Detector.Threshold <= 0 || cfg.Detector.Threshold >= 1 {
		return nil, fmt.Errorf("detector.threshold must be in (0, 1)")
	}
	if cfg.Detector.Hysteresis <= 0 || cfg.Detector.Hysteresis >= cfg.Detector.Threshold {
		return nil, fmt.Errorf("detector.hysteresis must be in (0, threshold)")
	}
	if cfg.Detector.Alpha <= 0 || cfg.Detector.Alpha > 1 {
		return nil, fmt.Errorf("detector.alpha must be in (0, 1]")
	}
	if cfg.Detector.DebounceMS < 0 {
		return nil, fmt.Errorf("detector.debounce_ms must be >= 0")
	}

	if cfg.Scan.DwellMS <= 0 {
		return nil, fmt.Errorf("scan.dwell_ms must be > 0")
	}
	if cfg.Scan.DwellMS < 200 {
		warnings = append(warnings, Warning{Message: fmt.Sprintf("scan.dwell_ms=%d is very fast; most switch users need 400ms or more", cfg.Scan.DwellMS)})
	}
	switch strings.TrimSpace(cfg.Scan.Strategy) {
	case "linear", "row-column":
	default:
		return nil, fmt.Errorf("scan.strategy must be one of: linear, row-column")
	}

	if cfg.Predict.Enable {
		if cfg.Predict.Count <= 0 {
			return nil, fmt.Errorf("predict.count must be > 0 when predict.enable=true")
		}
		if cfg.Predict.TimeoutMS <= 0 {
			return nil, fmt.Errorf("predict.timeout_ms must be > 0 when predict.enable=true")
		}
	}

	if len(cfg.TypeCmd.Argv) == 0 {
		return nil, fmt.Errorf("type_cmd must not be empty")
	}
	if len(cfg.KeyCmd.Argv) == 0 {
		return nil, fmt.Errorf("key_cmd must not be empty")
	}

	if cfg.Monitor.Enable {
		listen := strings.TrimSpace(cfg.Monitor.Listen)
		if listen == "" {
			return nil, fmt.Errorf("monitor.listen must not be empty when monitor.enable=true")
		}
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return nil, fmt.Errorf("monitor.listen %q is not host:port: %w", listen, err)
		}
	}

	if cfg.Calibration.Margin <= 0 || cfg.Calibration.Margin >= 1 {
		return nil, fmt.Errorf("calibration.margin must be in (0, 1); it offsets the ambient envelope")
	}
	if cfg.Calibration.HysteresisFrac <= 0 || cfg.Calibration.HysteresisFrac >= 1 {
		return nil, fmt.Errorf("calibration.hysteresis_frac must be in (0, 1)")
	}
	if cfg.Calibration.Blocks <= 0 {
		return nil, fmt.Errorf("calibration.blocks must be > 0")
	}

	return warnings, nil
}
