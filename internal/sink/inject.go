package sink

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/jblick1327/switch-interface/internal/layout"
)

// osKeyNames maps control key actions to the key names the injector tool
// understands (wtype/xdotool spelling).
var osKeyNames = map[string]string{
	"backspace": "BackSpace",
	"enter":     "Return",
	"tab":       "Tab",
	"esc":       "Escape",
	"space":     "space",
	"delete":    "Delete",
	"up":        "Up",
	"down":      "Down",
	"left":      "Left",
	"right":     "Right",
	"home":      "Home",
	"end":       "End",
	"page-up":   "Prior",
	"page-down": "Next",
}

const commitTimeout = 2 * time.Second

// Injector commits selections as OS keystrokes by shelling out to a typing
// tool. Text keys stream their payload over stdin; named keys are appended
// to the key command's argv.
type Injector struct {
	typeArgv []string
	keyArgv  []string
	logger   *slog.Logger
	mods     *Modifiers

	// run is the exec seam; tests swap it out.
	run func(ctx context.Context, argv []string, input string) error
}

// NewInjector validates the configured argv templates.
func NewInjector(typeArgv, keyArgv []string, logger *slog.Logger) (*Injector, error) {
	if len(typeArgv) == 0 {
		return nil, fmt.Errorf("inject: type command argv is empty")
	}
	if len(keyArgv) == 0 {
		return nil, fmt.Errorf("inject: key command argv is empty")
	}
	return &Injector{
		typeArgv: typeArgv,
		keyArgv:  keyArgv,
		logger:   logger,
		mods:     &Modifiers{},
		run:      runCommandWithInput,
	}, nil
}

// Modifiers exposes the latch/toggle state, e.g. for status reporting.
func (inj *Injector) Modifiers() *Modifiers {
	return inj.mods
}

// Commit maps one committed key to an injection side effect.
func (inj *Injector) Commit(ctx context.Context, key layout.Key) error {
	// Scan-affecting controls (page switches, row reset) are consumed by the
	// engine; they never reach the OS.
	if key.ScanControl() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	switch key.Kind {
	case layout.KindControl:
		return inj.commitControl(ctx, key)
	case layout.KindCharacter:
		text := inj.mods.Apply(key.Text())
		return inj.run(ctx, inj.typeArgv, text)
	default:
		// Predictive keys are resolved by the engine into character keys
		// before commit; anything else here is a layout bug.
		return fmt.Errorf("inject: cannot commit key kind %q", key.Kind)
	}
}

func (inj *Injector) commitControl(ctx context.Context, key layout.Key) error {
	switch key.Mode {
	case layout.ModeLatch:
		inj.mods.Latch(key.Action)
		return nil
	case layout.ModeToggle:
		active := inj.mods.Toggle(key.Action)
		if inj.logger != nil {
			inj.logger.Debug("modifier toggled", "action", key.Action, "active", active)
		}
		return nil
	}

	osKey, ok := osKeyNames[key.Action]
	if !ok {
		return fmt.Errorf("inject: unknown control action %q", key.Action)
	}
	argv := append(append([]string(nil), inj.keyArgv...), osKey)
	return inj.run(ctx, argv, "")
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}
