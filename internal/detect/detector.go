// Package detect turns the continuous sample stream into discrete, debounced
// switch press/release events.
package detect

import (
	"fmt"
	"math"
	"time"

	"github.com/jblick1327/switch-interface/internal/audio"
)

// Kind is the edge direction of a switch event.
type Kind int

const (
	Pressed Kind = iota + 1
	Released
)

func (k Kind) String() string {
	switch k {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Event is one debounced switch edge. At most one event is emitted per
// physical edge; debounce guarantees no event storms.
type Event struct {
	Kind Kind
	Seq  uint64
	At   time.Time
}

// Config carries the calibrated detector parameters for one session.
type Config struct {
	SampleRate int
	BlockSize  int

	// Threshold is the calibrated envelope level separating pressed from
	// released, in normalized [0,1] mean-absolute-amplitude units.
	Threshold float64
	// Hysteresis half-band: a candidate press requires the envelope above
	// Threshold+Hysteresis, a candidate release below Threshold-Hysteresis.
	Hysteresis float64
	// Alpha is the envelope smoothing factor: e = alpha*x + (1-alpha)*e.
	Alpha float64
	// DebounceMS is the minimum hold before a candidate edge is promoted.
	DebounceMS int
}

func (cfg Config) validate() error {
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("detect: sample rate must be > 0 (got %d)", cfg.SampleRate)
	}
	if cfg.BlockSize <= 0 {
		return fmt.Errorf("detect: block size must be > 0 (got %d)", cfg.BlockSize)
	}
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		return fmt.Errorf("detect: threshold must be in (0,1) (got %v)", cfg.Threshold)
	}
	// A zero band would let an envelope parked on the threshold flip the
	// candidate every block; hysteresis is the no-chatter mechanism.
	if cfg.Hysteresis <= 0 || cfg.Hysteresis >= cfg.Threshold {
		return fmt.Errorf("detect: hysteresis must be in (0,threshold) (got %v)", cfg.Hysteresis)
	}
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		return fmt.Errorf("detect: alpha must be in (0,1] (got %v)", cfg.Alpha)
	}
	if cfg.DebounceMS < 0 {
		return fmt.Errorf("detect: debounce must be >= 0ms (got %d)", cfg.DebounceMS)
	}
	return nil
}

// Detector owns the envelope and edge state for one capture stream. It is
// driven inline on the capture path and must stay allocation-free per block.
type Detector struct {
	cfg            Config
	debounceBlocks int

	envelope  float64
	pressed   bool // last emitted edge
	candidate bool
	held      int // blocks the candidate has persisted

	discarded uint64

	now func() time.Time
}

// New validates cfg and returns a detector in the released state.
func New(cfg Config) (*Detector, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	blockDurMS := float64(cfg.BlockSize) / float64(cfg.SampleRate) * 1000
	debounceBlocks := int(math.Ceil(float64(cfg.DebounceMS) / blockDurMS))
	if debounceBlocks < 1 {
		debounceBlocks = 1
	}

	return &Detector{
		cfg:            cfg,
		debounceBlocks: debounceBlocks,
		now:            time.Now,
	}, nil
}

// Process folds one block into the envelope and returns at most one event.
// Candidate edges that revert before the debounce window elapses are
// discarded silently and counted for diagnostics only.
func (d *Detector) Process(block audio.Block) (Event, bool) {
	x := Envelope(block.Samples)
	d.envelope = d.cfg.Alpha*x + (1-d.cfg.Alpha)*d.envelope

	upper := d.cfg.Threshold + d.cfg.Hysteresis
	lower := d.cfg.Threshold - d.cfg.Hysteresis

	// Within the hysteresis band the candidate keeps its previous value, so
	// envelope chatter around the threshold never produces edges.
	flipped := false
	switch {
	case !d.candidate && d.envelope >= upper:
		d.candidate = true
		flipped = true
	case d.candidate && d.envelope <= lower:
		d.candidate = false
		flipped = true
	}
	if flipped {
		if d.candidate == d.pressed && d.held > 0 {
			// A candidate edge came and went inside the debounce window.
			d.discarded++
		}
		d.held = 0
	}

	if d.candidate == d.pressed {
		return Event{}, false
	}

	d.held++
	if d.held < d.debounceBlocks {
		return Event{}, false
	}

	d.pressed = d.candidate
	d.held = 0
	kind := Released
	if d.pressed {
		kind = Pressed
	}
	return Event{Kind: kind, Seq: block.Seq, At: d.now()}, true
}

// EnvelopeValue exposes the current smoothed envelope for diagnostics and
// calibration UIs.
func (d *Detector) EnvelopeValue() float64 {
	return d.envelope
}

// Pressed reports the last emitted edge state.
func (d *Detector) Pressed() bool {
	return d.pressed
}

// Discarded counts candidate edges dropped by the debounce window.
func (d *Detector) Discarded() uint64 {
	return d.discarded
}

// Envelope computes the normalized mean absolute amplitude of one block.
// It is a pure function shared with calibration so threshold derivation and
// live detection can never disagree about the measurement.
func Envelope(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum / float64(len(samples)) / 32768.0
}
