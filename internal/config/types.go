// Package config resolves, parses, validates, and defaults switchscan configuration.
package config

// Config is the fully materialized runtime configuration used by switchscan.
type Config struct {
	Audio       AudioConfig
	Detector    DetectorConfig
	Scan        ScanConfig
	Layout      LayoutConfig
	Predict     PredictConfig
	TypeCmd     CommandConfig
	KeyCmd      CommandConfig
	Monitor     MonitorConfig
	Calibration CalibrationConfig
}

// AudioConfig controls input-source selection and the capture format.
type AudioConfig struct {
	Input      string
	Fallback   string
	SampleRate int
	BlockSize  int
}

// DetectorConfig controls the switch press detector thresholds.
type DetectorConfig struct {
	Threshold  float64
	Hysteresis float64
	Alpha      float64
	DebounceMS int
}

// ScanConfig controls cursor timing and traversal.
type ScanConfig struct {
	DwellMS  int
	Strategy string
	// ResetAfterCommit sends the linear cursor back to position zero after
	// every selection instead of continuing past the committed key. The
	// row-column strategy always restarts its row sweep from the top.
	ResetAfterCommit bool
}

// LayoutConfig selects the keyboard layout file. An empty path means the
// built-in layout.
type LayoutConfig struct {
	Path  string
	Watch bool
}

// PredictConfig controls word and letter suggestions.
type PredictConfig struct {
	Enable    bool
	Count     int
	TimeoutMS int
}

// MonitorConfig controls the local websocket snapshot feed.
type MonitorConfig struct {
	Enable bool
	Listen string
}

// CalibrationConfig controls threshold derivation from ambient noise.
// Margin is the envelope offset added to the measured ambient mean.
type CalibrationConfig struct {
	Margin         float64
	HysteresisFrac float64
	Blocks         int
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
