// Package doctor runs runtime readiness diagnostics for config, tools, audio, and layout.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/jblick1327/switch-interface/internal/audio"
	"github.com/jblick1327/switch-interface/internal/calibrate"
	"github.com/jblick1327/switch-interface/internal/config"
	"github.com/jblick1327/switch-interface/internal/layout"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland; text injection needs a wayland session"))

	checks = append(checks, checkCommand(cfg.Config.TypeCmd.Argv, "type_cmd"))
	checks = append(checks, checkCommand(cfg.Config.KeyCmd.Argv, "key_cmd"))

	checks = append(checks, checkLayout(cfg.Config))
	checks = append(checks, checkAudioSelection(cfg.Config))
	checks = append(checks, checkCalibration())

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkLayout loads and validates the configured layout file, or the built-in
// layout when no path is set.
func checkLayout(cfg config.Config) Check {
	if cfg.Layout.Path == "" {
		kb := layout.Default()
		return Check{Name: "layout", Pass: true, Message: fmt.Sprintf("built-in layout, %d pages", len(kb.Pages))}
	}

	kb, err := layout.Load(cfg.Layout.Path)
	if err != nil {
		return Check{Name: "layout", Pass: false, Message: err.Error()}
	}
	return Check{Name: "layout", Pass: true, Message: fmt.Sprintf("loaded %q, %d pages", cfg.Layout.Path, len(kb.Pages))}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(cfg config.Config) Check {
	selection, err := audio.SelectDevice(context.Background(), cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkCalibration reports whether a stored calibration exists. Missing
// calibration is not a failure; the detector falls back to configured
// thresholds.
func checkCalibration() Check {
	path, err := calibrate.StatePath()
	if err != nil {
		return Check{Name: "calibration", Pass: false, Message: err.Error()}
	}
	result, ok, err := calibrate.Load(path)
	if err != nil {
		return Check{Name: "calibration", Pass: false, Message: err.Error()}
	}
	if !ok {
		return Check{Name: "calibration", Pass: true, Message: "no stored calibration; run `switchscan calibrate` for tuned thresholds"}
	}
	return Check{
		Name: "calibration",
		Pass: true,
		Message: fmt.Sprintf("threshold %.3f (hysteresis %.3f) from %s",
			result.Threshold, result.Hysteresis, result.MeasuredAt.Format("2006-01-02")),
	}
}
