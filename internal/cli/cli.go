// Package cli parses switchscan command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun       Command = "run"
	CommandPause     Command = "pause"
	CommandResume    Command = "resume"
	CommandStop      Command = "stop"
	CommandStatus    Command = "status"
	CommandDevices   Command = "devices"
	CommandCalibrate Command = "calibrate"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:       {},
	CommandPause:     {},
	CommandResume:    {},
	CommandStop:      {},
	CommandStatus:    {},
	CommandDevices:   {},
	CommandCalibrate: {},
	CommandDoctor:    {},
	CommandVersion:   {},
	CommandHelp:      {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	LayoutPath string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		case "--layout":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--layout requires a path")
			}
			parsed.LayoutPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--layout PATH] <command>

Commands:
  run        Start the scanning session in the foreground
  pause      Suspend scanning in the running session
  resume     Resume a suspended session
  stop       Park the running session idle
  status     Print current scan state and cursor position
  devices    List available input devices
  calibrate  Measure ambient noise and store detector thresholds
  doctor     Run configuration and environment checks
  version    Print version information
  help       Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/switchscan/config.conf)
  --layout PATH   Layout file path (default: built-in layout)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
