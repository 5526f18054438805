package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/switchscan.conf", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/switchscan.conf", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantErr    string
		wantCmd    Command
		wantHelp   bool
		wantConfig string
		wantLayout string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "missing layout path",
			args:    []string{"--layout"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"bogus"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:     "valid pause command",
			args:     []string{"pause"},
			wantCmd:  CommandPause,
			wantHelp: false,
		},
		{
			name:       "run with config and layout",
			args:       []string{"--config", "/tmp/cfg", "--layout", "/tmp/kb.json", "run"},
			wantCmd:    CommandRun,
			wantHelp:   false,
			wantConfig: "/tmp/cfg",
			wantLayout: "/tmp/kb.json",
		},
		{
			name:     "calibrate",
			args:     []string{"calibrate"},
			wantCmd:  CommandCalibrate,
			wantHelp: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantConfig, parsed.ConfigPath)
			require.Equal(t, tc.wantLayout, parsed.LayoutPath)
		})
	}
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("switchscan")
	require.Contains(t, text, "run")
	require.Contains(t, text, "pause")
	require.Contains(t, text, "calibrate")
	require.Contains(t, text, "doctor")
	require.Contains(t, text, "--config PATH")
	require.Contains(t, text, "--layout PATH")
}
