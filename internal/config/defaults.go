package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	typeCmd := "wtype -"
	keyCmd := "wtype -k"

	return Config{
		Audio: AudioConfig{
			Input:      "default",
			Fallback:   "default",
			SampleRate: 16000,
			BlockSize:  160,
		},
		Detector: DetectorConfig{
			Threshold:  0.10,
			Hysteresis: 0.02,
			Alpha:      0.25,
			DebounceMS: 40,
		},
		Scan: ScanConfig{
			DwellMS:  600,
			Strategy: "linear",
		},
		Layout: LayoutConfig{},
		Predict: PredictConfig{
			Enable:    true,
			Count:     3,
			TimeoutMS: 250,
		},
		TypeCmd: CommandConfig{Raw: typeCmd, Argv: mustParseArgv(typeCmd)},
		KeyCmd:  CommandConfig{Raw: keyCmd, Argv: mustParseArgv(keyCmd)},
		Monitor: MonitorConfig{
			Enable: false,
			Listen: "127.0.0.1:7681",
		},
		Calibration: CalibrationConfig{
			Margin:         0.06,
			HysteresisFrac: 0.2,
			Blocks:         50,
		},
	}
}
