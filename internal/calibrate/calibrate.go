// Package calibrate derives detector thresholds from ambient envelope samples.
package calibrate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jblick1327/switch-interface/internal/audio"
	"github.com/jblick1327/switch-interface/internal/detect"
)

// Ambient summarizes the envelope observed over a quiet measurement window.
type Ambient struct {
	Mean   float64
	Peak   float64
	Blocks int
}

// Result is a derived, persistable detector calibration.
type Result struct {
	Threshold  float64   `json:"threshold"`
	Hysteresis float64   `json:"hysteresis"`
	Ambient    float64   `json:"ambient"`
	Peak       float64   `json:"peak"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Measure folds n blocks of ambient audio through the detector's envelope
// function. The user is expected to keep the switch idle during the window.
func Measure(ctx context.Context, blocks <-chan audio.Block, n int) (Ambient, error) {
	if n <= 0 {
		return Ambient{}, fmt.Errorf("calibrate: window must be > 0 blocks (got %d)", n)
	}

	var sum, peak float64
	seen := 0
	for seen < n {
		select {
		case <-ctx.Done():
			return Ambient{}, ctx.Err()
		case block, ok := <-blocks:
			if !ok {
				return Ambient{}, errors.New("calibrate: capture stream closed mid-window")
			}
			e := detect.Envelope(block.Samples)
			sum += e
			if e > peak {
				peak = e
			}
			seen++
		}
	}

	return Ambient{Mean: sum / float64(n), Peak: peak, Blocks: n}, nil
}

// Derive offsets the ambient level by margin to place the threshold, and
// sizes the hysteresis band as hystFrac of the threshold. The band is clamped
// so threshold-hysteresis always clears the observed ambient peak.
func Derive(ambient Ambient, margin, hystFrac float64) (Result, error) {
	if margin <= 0 {
		return Result{}, fmt.Errorf("calibrate: margin must be > 0 (got %v)", margin)
	}
	if hystFrac <= 0 || hystFrac >= 1 {
		return Result{}, fmt.Errorf("calibrate: hysteresis fraction must be in (0,1) (got %v)", hystFrac)
	}

	threshold := ambient.Mean + margin
	if threshold >= 1 {
		return Result{}, fmt.Errorf("calibrate: ambient level %v leaves no headroom", ambient.Mean)
	}

	hysteresis := threshold * hystFrac
	if floor := threshold - ambient.Peak; hysteresis > floor && floor > 0 {
		hysteresis = floor
	}

	return Result{
		Threshold:  threshold,
		Hysteresis: hysteresis,
		Ambient:    ambient.Mean,
		Peak:       ambient.Peak,
		MeasuredAt: time.Now().UTC(),
	}, nil
}
