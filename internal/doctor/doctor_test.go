package doctor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jblick1327/switch-interface/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestReportOKAllPassing(t *testing.T) {
	report := Report{Checks: []Check{{Name: "one", Pass: true}, {Name: "two", Pass: true}}}
	require.True(t, report.OK())
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "wayland")

	check := checkEnv(
		"TEST_DOCTOR_ENV",
		func(v string) bool { return strings.EqualFold(v, "wayland") },
		"looks good",
		"unexpected",
	)

	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommandEmpty(t *testing.T) {
	check := checkCommand(nil, "type_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")
}

func TestCheckBinaryFound(t *testing.T) {
	check := checkBinary("sh", "shell available")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "shell available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckCommandUsesBinaryFromPath(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "fake-wtype")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/usr/bin/env sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check := checkCommand([]string{"fake-wtype", "-"}, "type_cmd")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "type_cmd command is available")
}

func TestCheckLayoutBuiltin(t *testing.T) {
	check := checkLayout(config.Default())
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "built-in layout")
}

func TestCheckLayoutFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	content := `{"pages":[{"rows":[{"keys":[{"label":"a","kind":"character"}]}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg := config.Default()
	cfg.Layout.Path = path
	check := checkLayout(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "1 pages")
}

func TestCheckLayoutRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pages":[]}`), 0o600))

	cfg := config.Default()
	cfg.Layout.Path = path
	check := checkLayout(cfg)
	require.False(t, check.Pass)
}

func TestCheckAudioSelectionFailureWithInvalidPulseServer(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	check := checkAudioSelection(config.Default())
	require.False(t, check.Pass)
	require.Contains(t, check.Name, "audio.device")
}

func TestCheckCalibrationMissingIsNotFailure(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	check := checkCalibration()
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "no stored calibration")
}

func TestRunReportsAllSurfaces(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	t.Setenv("XDG_SESSION_TYPE", "wayland")
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	report := Run(config.Loaded{Path: "/tmp/config.conf", Config: config.Default()})
	require.NotEmpty(t, report.Checks)

	names := make(map[string]bool)
	for _, check := range report.Checks {
		names[check.Name] = true
	}
	require.True(t, names["config"])
	require.True(t, names["layout"])
	require.True(t, names["audio.device"])
	require.True(t, names["calibration"])
}
