package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio       *jsoncAudio       `json:"audio"`
	Detector    *jsoncDetector    `json:"detector"`
	Scan        *jsoncScan        `json:"scan"`
	Layout      *jsoncLayout      `json:"layout"`
	Predict     *jsoncPredict     `json:"predict"`
	TypeCmd     *string           `json:"type_cmd"`
	KeyCmd      *string           `json:"key_cmd"`
	Monitor     *jsoncMonitor     `json:"monitor"`
	Calibration *jsoncCalibration `json:"calibration"`
}

type jsoncAudio struct {
	Input      *string `json:"input"`
	Fallback   *string `json:"fallback"`
	SampleRate *int    `json:"sample_rate"`
	BlockSize  *int    `json:"block_size"`
}

type jsoncDetector struct {
	Threshold  *float64 `json:"threshold"`
	Hysteresis *float64 `json:"hysteresis"`
	Alpha      *float64 `json:"alpha"`
	DebounceMS *int     `json:"debounce_ms"`
}

type jsoncScan struct {
	DwellMS          *int    `json:"dwell_ms"`
	Strategy         *string `json:"strategy"`
	ResetAfterCommit *bool   `json:"reset_after_commit"`
}

type jsoncLayout struct {
	Path  *string `json:"path"`
	Watch *bool   `json:"watch"`
}

type jsoncPredict struct {
	Enable    *bool `json:"enable"`
	Count     *int  `json:"count"`
	TimeoutMS *int  `json:"timeout_ms"`
}

type jsoncMonitor struct {
	Enable *bool   `json:"enable"`
	Listen *string `json:"listen"`
}

type jsoncCalibration struct {
	Margin         *float64 `json:"margin"`
	HysteresisFrac *float64 `json:"hysteresis_frac"`
	Blocks         *int     `json:"blocks"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) error {
	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
		if payload.Audio.SampleRate != nil {
			cfg.Audio.SampleRate = *payload.Audio.SampleRate
		}
		if payload.Audio.BlockSize != nil {
			cfg.Audio.BlockSize = *payload.Audio.BlockSize
		}
	}

	if payload.Detector != nil {
		if payload.Detector.Threshold != nil {
			cfg.Detector.Threshold = *payload.Detector.Threshold
		}
		if payload.Detector.Hysteresis != nil {
			cfg.Detector.Hysteresis = *payload.Detector.Hysteresis
		}
		if payload.Detector.Alpha != nil {
			cfg.Detector.Alpha = *payload.Detector.Alpha
		}
		if payload.Detector.DebounceMS != nil {
			cfg.Detector.DebounceMS = *payload.Detector.DebounceMS
		}
	}

	if payload.Scan != nil {
		if payload.Scan.DwellMS != nil {
			cfg.Scan.DwellMS = *payload.Scan.DwellMS
		}
		if payload.Scan.Strategy != nil {
			cfg.Scan.Strategy = strings.TrimSpace(*payload.Scan.Strategy)
		}
		if payload.Scan.ResetAfterCommit != nil {
			cfg.Scan.ResetAfterCommit = *payload.Scan.ResetAfterCommit
		}
	}

	if payload.Layout != nil {
		if payload.Layout.Path != nil {
			cfg.Layout.Path = strings.TrimSpace(*payload.Layout.Path)
		}
		if payload.Layout.Watch != nil {
			cfg.Layout.Watch = *payload.Layout.Watch
		}
	}

	if payload.Predict != nil {
		if payload.Predict.Enable != nil {
			cfg.Predict.Enable = *payload.Predict.Enable
		}
		if payload.Predict.Count != nil {
			cfg.Predict.Count = *payload.Predict.Count
		}
		if payload.Predict.TimeoutMS != nil {
			cfg.Predict.TimeoutMS = *payload.Predict.TimeoutMS
		}
	}

	if payload.TypeCmd != nil {
		raw := *payload.TypeCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return fmt.Errorf("invalid type_cmd: %w", err)
		}
		cfg.TypeCmd = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.KeyCmd != nil {
		raw := *payload.KeyCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return fmt.Errorf("invalid key_cmd: %w", err)
		}
		cfg.KeyCmd = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Monitor != nil {
		if payload.Monitor.Enable != nil {
			cfg.Monitor.Enable = *payload.Monitor.Enable
		}
		if payload.Monitor.Listen != nil {
			cfg.Monitor.Listen = strings.TrimSpace(*payload.Monitor.Listen)
		}
	}

	if payload.Calibration != nil {
		if payload.Calibration.Margin != nil {
			cfg.Calibration.Margin = *payload.Calibration.Margin
		}
		if payload.Calibration.HysteresisFrac != nil {
			cfg.Calibration.HysteresisFrac = *payload.Calibration.HysteresisFrac
		}
		if payload.Calibration.Blocks != nil {
			cfg.Calibration.Blocks = *payload.Calibration.Blocks
		}
	}

	return nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

// stripJSONCComments blanks // and /* */ comments while preserving offsets,
// so json decode errors still point at the right line and column.
func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
