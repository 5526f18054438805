// Package layout models the immutable page/row/key keyboard tree scanned by the engine.
package layout

import (
	"errors"
	"fmt"
)

// Kind tags how a committed key is interpreted downstream.
type Kind string

const (
	KindCharacter     Kind = "character"
	KindPredictWord   Kind = "predict-word"
	KindPredictLetter Kind = "predict-letter"
	KindControl       Kind = "control"
)

// Mode describes how modifier keys latch.
type Mode string

const (
	ModeTap    Mode = "tap"
	ModeLatch  Mode = "latch"
	ModeToggle Mode = "toggle"
)

// Control key actions interpreted by the scan engine itself. All other control
// payloads pass through to the selection sink untouched.
const (
	ActionPageNext       = "page-next"
	ActionPagePrev       = "page-prev"
	ActionResetScanRow   = "reset-scan-row"
	ActionOverlayDismiss = "overlay-dismiss"
)

// Key is one scannable cell. Action carries the control payload or, for
// character keys with multi-rune output, the exact text to emit; when empty
// the Label is emitted as typed.
type Key struct {
	Label     string  `json:"label"`
	Kind      Kind    `json:"kind"`
	Action    string  `json:"action,omitempty"`
	Mode      Mode    `json:"mode,omitempty"`
	DwellMult float64 `json:"dwell_mult,omitempty"`
}

// Text returns the text a character key commits.
func (k Key) Text() string {
	if k.Action != "" {
		return k.Action
	}
	return k.Label
}

// ScanControl reports whether a control key is consumed by the scan engine
// rather than the sink.
func (k Key) ScanControl() bool {
	if k.Kind != KindControl {
		return false
	}
	switch k.Action {
	case ActionPageNext, ActionPagePrev, ActionResetScanRow, ActionOverlayDismiss:
		return true
	default:
		return false
	}
}

type Row struct {
	Keys []Key `json:"keys"`
}

type Page struct {
	Name string `json:"name,omitempty"`
	Rows []Row  `json:"rows"`
}

// Keyboard is the full layout tree. It is loaded once per session and never
// mutated afterwards.
type Keyboard struct {
	Name  string `json:"name,omitempty"`
	Pages []Page `json:"pages"`
}

// Validate enforces the structural invariants the scan engine depends on:
// at least one page, every page has at least one row, every row at least one
// key, and every key carries a known kind and mode.
func Validate(kb *Keyboard) error {
	if kb == nil {
		return errors.New("layout: keyboard is nil")
	}
	if len(kb.Pages) == 0 {
		return errors.New("layout: keyboard has no pages")
	}
	for p, page := range kb.Pages {
		if len(page.Rows) == 0 {
			return fmt.Errorf("layout: page %d has no rows", p)
		}
		for r, row := range page.Rows {
			if len(row.Keys) == 0 {
				return fmt.Errorf("layout: page %d row %d has no keys", p, r)
			}
			for k, key := range row.Keys {
				if err := validateKey(key); err != nil {
					return fmt.Errorf("layout: page %d row %d key %d: %w", p, r, k, err)
				}
			}
		}
	}
	return nil
}

func validateKey(key Key) error {
	if key.Label == "" {
		return errors.New("empty label")
	}
	switch key.Kind {
	case KindCharacter, KindPredictWord, KindPredictLetter:
	case KindControl:
		if key.Action == "" {
			return errors.New("control key without action")
		}
	default:
		return fmt.Errorf("unknown kind %q", key.Kind)
	}
	switch key.Mode {
	case "", ModeTap, ModeLatch, ModeToggle:
	default:
		return fmt.Errorf("unknown mode %q", key.Mode)
	}
	if key.DwellMult < 0 {
		return fmt.Errorf("negative dwell_mult %v", key.DwellMult)
	}
	return nil
}

// Page returns page p, clamped bounds are the caller's responsibility.
func (kb *Keyboard) Page(p int) Page {
	return kb.Pages[p]
}

// KeyAt addresses one key by position. It panics on out-of-bounds input; the
// engine guarantees cursor validity before calling.
func (kb *Keyboard) KeyAt(page, row, key int) Key {
	return kb.Pages[page].Rows[row].Keys[key]
}
