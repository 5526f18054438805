package calibrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// StatePath resolves the calibration file location under XDG state, matching
// where the log file lives.
func StatePath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "switchscan", "calibration.json"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "switchscan", "calibration.json"), nil
}

// Save writes the calibration atomically (temp file + rename) so a crash never
// leaves a half-written file behind.
func Save(path string, result Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("ensure calibration dir: %w", err)
	}

	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode calibration: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".calibration-*")
	if err != nil {
		return fmt.Errorf("create calibration temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close calibration temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod calibration: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace calibration file: %w", err)
	}
	return nil
}

// Load reads a previously saved calibration; ok is false when none exists.
func Load(path string) (Result, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, false, nil
		}
		return Result{}, false, fmt.Errorf("read calibration %q: %w", path, err)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return Result{}, false, fmt.Errorf("decode calibration %q: %w", path, err)
	}
	if result.Threshold <= 0 || result.Threshold >= 1 {
		return Result{}, false, fmt.Errorf("calibration %q has out-of-range threshold %v", path, result.Threshold)
	}
	if result.Hysteresis <= 0 || result.Hysteresis >= result.Threshold {
		return Result{}, false, fmt.Errorf("calibration %q has out-of-range hysteresis %v", path, result.Hysteresis)
	}
	return result, true, nil
}
