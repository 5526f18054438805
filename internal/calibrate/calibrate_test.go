package calibrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jblick1327/switch-interface/internal/audio"
	"github.com/stretchr/testify/require"
)

func flatBlock(seq uint64, level float64) audio.Block {
	samples := make([]int16, 64)
	v := int16(level * 32768)
	for i := range samples {
		samples[i] = v
	}
	return audio.Block{Seq: seq, Samples: samples}
}

func TestMeasureAveragesWindow(t *testing.T) {
	blocks := make(chan audio.Block, 4)
	blocks <- flatBlock(0, 0.01)
	blocks <- flatBlock(1, 0.03)
	blocks <- flatBlock(2, 0.02)

	ambient, err := Measure(context.Background(), blocks, 3)
	require.NoError(t, err)
	require.InDelta(t, 0.02, ambient.Mean, 0.001)
	require.InDelta(t, 0.03, ambient.Peak, 0.001)
	require.Equal(t, 3, ambient.Blocks)
}

func TestMeasureStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Measure(ctx, make(chan audio.Block), 10)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMeasureFailsOnClosedStream(t *testing.T) {
	blocks := make(chan audio.Block, 1)
	blocks <- flatBlock(0, 0.01)
	close(blocks)

	_, err := Measure(context.Background(), blocks, 2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "closed mid-window")
}

func TestDerivePlacesThresholdAboveAmbient(t *testing.T) {
	result, err := Derive(Ambient{Mean: 0.02, Peak: 0.04, Blocks: 100}, 0.06, 0.2)
	require.NoError(t, err)
	require.InDelta(t, 0.08, result.Threshold, 0.001)
	require.Greater(t, result.Hysteresis, 0.0)
	// threshold-hysteresis must clear the ambient peak.
	require.Greater(t, result.Threshold-result.Hysteresis, result.Peak-1e-9)
}

func TestDeriveRejectsBadParameters(t *testing.T) {
	_, err := Derive(Ambient{Mean: 0.02}, 0, 0.2)
	require.Error(t, err)

	_, err = Derive(Ambient{Mean: 0.02}, 0.05, 1.5)
	require.Error(t, err)

	_, err = Derive(Ambient{Mean: 0.98}, 0.05, 0.2)
	require.Error(t, err)
	require.Contains(t, err.Error(), "headroom")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "calibration.json")
	want := Result{
		Threshold:  0.12,
		Hysteresis: 0.02,
		Ambient:    0.03,
		Peak:       0.05,
		MeasuredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, Save(path, want))

	got, ok, err := Load(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	_, ok, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadRejectsOutOfRangeThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"threshold": 7}`), 0o600))

	_, _, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out-of-range")
}

func TestLoadRejectsDegenerateHysteresis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"threshold": 0.1, "hysteresis": 0}`), 0o600))

	_, _, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "hysteresis")
}

func TestStatePathUsesXDGStateHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	path, err := StatePath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "switchscan", "calibration.json"), path)
}
