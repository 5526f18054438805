// Package scan owns the cursor state machine that turns switch events and
// dwell expiries into committed key selections.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jblick1327/switch-interface/internal/detect"
	"github.com/jblick1327/switch-interface/internal/fsm"
	"github.com/jblick1327/switch-interface/internal/layout"
	"github.com/jblick1327/switch-interface/internal/predict"
	"github.com/jblick1327/switch-interface/internal/sink"
)

// Strategy selects how the cursor sweeps the page.
type Strategy string

const (
	StrategyLinear    Strategy = "linear"
	StrategyRowColumn Strategy = "row-column"
)

// ErrConfig marks construction-time failures: bad parameters or an invalid
// layout. The engine never starts half-configured.
var ErrConfig = errors.New("scan: invalid configuration")

// Config fixes engine behavior for one session; changing it requires a
// restart.
type Config struct {
	Dwell    time.Duration
	Strategy Strategy
	// ResetAfterCommit returns the linear cursor to position zero after a
	// commit instead of the key following the committed one. Row/column
	// scanning always restarts the row sweep from the first row.
	ResetAfterCommit bool

	SuggestionCount   int
	SuggestionTimeout time.Duration
}

func (cfg Config) validate() error {
	if cfg.Dwell <= 0 {
		return fmt.Errorf("%w: dwell must be > 0 (got %v)", ErrConfig, cfg.Dwell)
	}
	switch cfg.Strategy {
	case StrategyLinear, StrategyRowColumn:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrConfig, cfg.Strategy)
	}
	if cfg.SuggestionCount < 0 {
		return fmt.Errorf("%w: suggestion count must be >= 0 (got %d)", ErrConfig, cfg.SuggestionCount)
	}
	if cfg.SuggestionCount > 0 && cfg.SuggestionTimeout <= 0 {
		return fmt.Errorf("%w: suggestion timeout must be > 0 when suggestions are enabled", ErrConfig)
	}
	return nil
}

// cursor addresses one position in the layout tree. rowPhase marks the
// row-granular sweep of row/column mode.
type cursor struct {
	page, row, key int
	rowPhase       bool
}

// overlay is the transient suggestion row composed on top of the layout.
// It never touches the layout itself and is discarded on exit.
type overlay struct {
	keys  []layout.Key
	index int
}

type expiry struct {
	token uint64
}

type controlKind int

const (
	ctlStart controlKind = iota + 1
	ctlPause
	ctlResume
	ctlStop
	ctlFault
	ctlSuggestions
	ctlLayout
)

type control struct {
	kind controlKind
	err  error
	keys []layout.Key
	kb   *layout.Keyboard
}

// Diagnostics counts events that are expected but worth watching.
type Diagnostics struct {
	Releases       uint64
	StaleExpiries  uint64
	DroppedPresses uint64
	DroppedCommits uint64
	CommitFailures uint64
}

// Engine reacts to switch events and dwell expiries, never blocking on user
// action. All cursor mutation happens on the single Run loop; producers only
// enqueue.
type Engine struct {
	cfg       Config
	kb        *layout.Keyboard
	sink      sink.Sink
	suggester predict.Suggester
	logger    *slog.Logger
	session   string

	presses  chan detect.Event
	expiries chan expiry
	controls chan control
	commits  chan layout.Key
	done     chan struct{}

	clock      *DwellClock
	armedToken uint64

	state   fsm.State
	cur     cursor
	overlay *overlay
	prefix  []rune
	gen     uint64

	snap *atomic.Pointer[Snapshot]
	subs *subscribers

	releases       atomic.Uint64
	staleExpiries  atomic.Uint64
	droppedPresses atomic.Uint64
	droppedCommits atomic.Uint64
	commitFailures atomic.Uint64
}

// New validates the configuration and layout and returns an idle engine.
func New(cfg Config, kb *layout.Keyboard, snk sink.Sink, suggester predict.Suggester, logger *slog.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := layout.Validate(kb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if snk == nil {
		snk = sink.SinkFunc(func(context.Context, layout.Key) error { return nil })
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		cfg:       cfg,
		kb:        kb,
		sink:      snk,
		suggester: suggester,
		logger:    logger,
		session:   uuid.NewString(),
		presses:   make(chan detect.Event, 16),
		expiries:  make(chan expiry, 1),
		controls:  make(chan control, 8),
		commits:   make(chan layout.Key, 16),
		done:      make(chan struct{}),
		state:     fsm.StateIdle,
		snap:      &atomic.Pointer[Snapshot]{},
		subs:      newSubscribers(),
	}
	e.clock = NewDwellClock(e.onDwellExpired)
	e.publish()
	return e, nil
}

// Session identifies this engine instance in logs and IPC responses.
func (e *Engine) Session() string {
	return e.session
}

// Run executes the event loop and the commit dispatcher until ctx is
// cancelled. Call it exactly once.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.loop(ctx) })
	g.Go(func() error { return e.dispatchLoop(ctx) })
	return g.Wait()
}

// Start begins scanning from the first key of the first page.
func (e *Engine) Start() { e.postControl(control{kind: ctlStart}) }

// Pause suspends scanning; a timer firing during the paused interval is
// discarded, never replayed.
func (e *Engine) Pause() { e.postControl(control{kind: ctlPause}) }

// Resume recomputes a fresh dwell deadline and continues scanning.
func (e *Engine) Resume() { e.postControl(control{kind: ctlResume}) }

// Stop parks the engine in the idle state.
func (e *Engine) Stop() { e.postControl(control{kind: ctlStop}) }

// Fault reports a capture-path failure; the engine suspends rather than
// guessing at missing audio.
func (e *Engine) Fault(err error) { e.postControl(control{kind: ctlFault, err: err}) }

// SwapLayout replaces the layout tree. The cursor resets to the first key so
// it can never address a position the new layout does not have.
func (e *Engine) SwapLayout(kb *layout.Keyboard) error {
	if err := layout.Validate(kb); err != nil {
		return err
	}
	e.postControl(control{kind: ctlLayout, kb: kb})
	return nil
}

// HandleEvent accepts one detector event. It never blocks: the caller is the
// audio path.
func (e *Engine) HandleEvent(ev detect.Event) {
	if ev.Kind == detect.Released {
		e.releases.Add(1)
		return
	}
	select {
	case e.presses <- ev:
	default:
		e.droppedPresses.Add(1)
	}
}

// Snapshot returns the most recently published cursor view.
func (e *Engine) Snapshot() Snapshot {
	return *e.snap.Load()
}

// Subscribe returns a feed of snapshots plus a cancel function. Slow
// subscribers miss frames rather than blocking the engine.
func (e *Engine) Subscribe(buffer int) (<-chan Snapshot, func()) {
	return e.subs.add(buffer)
}

// Diag returns diagnostic counters.
func (e *Engine) Diag() Diagnostics {
	return Diagnostics{
		Releases:       e.releases.Load(),
		StaleExpiries:  e.staleExpiries.Load(),
		DroppedPresses: e.droppedPresses.Load(),
		DroppedCommits: e.droppedCommits.Load(),
		CommitFailures: e.commitFailures.Load(),
	}
}

func (e *Engine) postControl(ctl control) {
	select {
	case e.controls <- ctl:
	case <-e.done:
	}
}

// onDwellExpired runs on the timer goroutine; it only enqueues.
func (e *Engine) onDwellExpired(token uint64) {
	select {
	case e.expiries <- expiry{token: token}:
	case <-e.done:
	}
}

// loop is the single serialization point for all cursor mutation. Presses
// are drained ahead of expiries, so a press logically concurrent with an
// auto-advance always wins.
func (e *Engine) loop(ctx context.Context) error {
	defer close(e.done)
	defer e.clock.Cancel()
	defer e.subs.closeAll()

	for {
		select {
		case ev := <-e.presses:
			e.handlePress(ev)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.presses:
			e.handlePress(ev)
		case exp := <-e.expiries:
			e.handleExpiry(exp)
		case ctl := <-e.controls:
			e.handleControl(ctl)
		}
	}
}

// dispatchLoop delivers commits to the sink in order, off the engine loop.
// A failed commit is logged and scanning continues.
func (e *Engine) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case key := <-e.commits:
			cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := e.sink.Commit(cctx, key)
			cancel()
			if err != nil {
				e.commitFailures.Add(1)
				e.logger.Error("selection commit failed",
					"session", e.session,
					"key", key.Label,
					"error", err.Error(),
				)
			}
		}
	}
}

func (e *Engine) handlePress(ev detect.Event) {
	switch e.state {
	case fsm.StateScanning:
		if e.overlay != nil {
			e.commitOverlayKey()
			return
		}
		if e.cfg.Strategy == StrategyRowColumn && e.cur.rowPhase {
			e.selectRow()
			return
		}
		e.commitCurrentKey()
	case fsm.StateAwaitingSelection:
		e.commitCurrentKey()
	default:
		e.logger.Debug("press ignored", "session", e.session, "state", string(e.state), "seq", ev.Seq)
	}
}

func (e *Engine) handleExpiry(exp expiry) {
	if exp.token != e.armedToken {
		e.staleExpiries.Add(1)
		return
	}
	if e.state != fsm.StateScanning && e.state != fsm.StateAwaitingSelection {
		return
	}

	if e.overlay != nil {
		e.overlay.index = (e.overlay.index + 1) % len(e.overlay.keys)
	} else {
		e.advanceCursor()
	}
	e.arm()
	e.publish()
}

func (e *Engine) handleControl(ctl control) {
	switch ctl.kind {
	case ctlStart:
		if !e.transition(fsm.EventStart) {
			return
		}
		e.cur = cursor{rowPhase: e.cfg.Strategy == StrategyRowColumn}
		e.overlay = nil
		e.prefix = e.prefix[:0]
		e.arm()
		e.logger.Info("scanning started", "session", e.session, "strategy", string(e.cfg.Strategy))
	case ctlPause:
		if !e.transition(fsm.EventPause) {
			return
		}
		e.overlay = nil
		e.armedToken = e.clock.Cancel()
		e.logger.Info("scanning paused", "session", e.session)
	case ctlResume:
		if !e.transition(fsm.EventResume) {
			return
		}
		if e.cfg.Strategy == StrategyRowColumn {
			e.cur.rowPhase = true
			e.cur.key = 0
		}
		e.arm()
		e.logger.Info("scanning resumed", "session", e.session)
	case ctlStop:
		if !e.transition(fsm.EventStop) {
			return
		}
		e.overlay = nil
		e.armedToken = e.clock.Cancel()
		e.logger.Info("scanning stopped", "session", e.session)
	case ctlFault:
		reason := "unknown"
		if ctl.err != nil {
			reason = ctl.err.Error()
		}
		if !e.transition(fsm.EventFault) {
			return
		}
		e.overlay = nil
		e.armedToken = e.clock.Cancel()
		e.logger.Warn("stream fault; scanning suspended", "session", e.session, "reason", reason)
	case ctlSuggestions:
		if e.state != fsm.StateScanning || e.overlay != nil || len(ctl.keys) == 0 {
			return
		}
		e.overlay = &overlay{keys: ctl.keys}
		e.arm()
	case ctlLayout:
		e.kb = ctl.kb
		e.overlay = nil
		if e.state == fsm.StateAwaitingSelection {
			e.transition(fsm.EventCommit)
		}
		e.cur = cursor{rowPhase: e.cfg.Strategy == StrategyRowColumn}
		e.arm()
		e.logger.Info("layout swapped", "session", e.session, "pages", len(e.kb.Pages))
	}
	e.publish()
}

// transition applies one lifecycle event; invalid transitions are logged and
// dropped.
func (e *Engine) transition(event fsm.Event) bool {
	next, err := fsm.Transition(e.state, event)
	if err != nil {
		e.logger.Debug("transition rejected", "session", e.session, "state", string(e.state), "event", string(event))
		return false
	}
	e.state = next
	return true
}

// selectRow freezes the highlighted row and begins column scanning within it.
func (e *Engine) selectRow() {
	if !e.transition(fsm.EventRowSelect) {
		return
	}
	e.cur.rowPhase = false
	e.cur.key = 0
	e.arm()
	e.publish()
}

// commitCurrentKey commits the highlighted key synchronously with respect to
// the press: the same press can never also advance the cursor.
func (e *Engine) commitCurrentKey() {
	key := e.kb.KeyAt(e.cur.page, e.cur.row, e.cur.key)

	switch {
	case key.ScanControl():
		e.applyScanControl(key)
	case key.Kind == layout.KindPredictWord || key.Kind == layout.KindPredictLetter:
		e.requestSuggestions(key.Kind)
	default:
		e.enqueueCommit(key)
		e.trackPrefix(key)
	}

	e.afterCommitCursor(key)
	e.transition(fsm.EventCommit)
	e.arm()
	e.publish()
}

// applyScanControl handles the control actions the engine owns; they are not
// forwarded to the sink.
func (e *Engine) applyScanControl(key layout.Key) {
	switch key.Action {
	case layout.ActionPageNext:
		e.cur.page = (e.cur.page + 1) % len(e.kb.Pages)
		e.cur.row, e.cur.key = 0, 0
	case layout.ActionPagePrev:
		e.cur.page = (e.cur.page - 1 + len(e.kb.Pages)) % len(e.kb.Pages)
		e.cur.row, e.cur.key = 0, 0
	case layout.ActionResetScanRow:
		e.cur.key = 0
	}
}

// afterCommitCursor applies the post-commit cursor policy.
func (e *Engine) afterCommitCursor(committed layout.Key) {
	if committed.ScanControl() {
		// Page switches and row resets position the cursor themselves.
		if e.cfg.Strategy == StrategyRowColumn {
			e.cur.rowPhase = true
		}
		return
	}

	if e.cfg.Strategy == StrategyRowColumn {
		// The row sweep always restarts from the first row; resuming at the
		// committed row would bias scanning toward whatever was typed last.
		e.cur.rowPhase = true
		e.cur.row, e.cur.key = 0, 0
		return
	}

	if e.cfg.ResetAfterCommit {
		e.cur.row, e.cur.key = 0, 0
		return
	}
	e.advanceCursor()
}

// advanceCursor moves the cursor one step under the active strategy,
// wrapping in-bounds by construction.
func (e *Engine) advanceCursor() {
	page := e.kb.Page(e.cur.page)

	if e.cfg.Strategy == StrategyRowColumn {
		if e.cur.rowPhase {
			e.cur.row = (e.cur.row + 1) % len(page.Rows)
			e.cur.key = 0
			return
		}
		e.cur.key = (e.cur.key + 1) % len(page.Rows[e.cur.row].Keys)
		return
	}

	e.cur.key++
	if e.cur.key >= len(page.Rows[e.cur.row].Keys) {
		e.cur.key = 0
		e.cur.row++
		if e.cur.row >= len(page.Rows) {
			e.cur.row = 0
		}
	}
}

// arm replaces the dwell timer with a fresh deadline for the highlighted key.
func (e *Engine) arm() {
	if e.state != fsm.StateScanning && e.state != fsm.StateAwaitingSelection {
		return
	}

	d := e.cfg.Dwell
	if e.overlay != nil {
		if mult := e.overlay.keys[e.overlay.index].DwellMult; mult > 0 {
			d = time.Duration(float64(d) * mult)
		}
	} else if !e.cur.rowPhase {
		if mult := e.kb.KeyAt(e.cur.page, e.cur.row, e.cur.key).DwellMult; mult > 0 {
			d = time.Duration(float64(d) * mult)
		}
	}
	e.armedToken = e.clock.Arm(d)
}

func (e *Engine) enqueueCommit(key layout.Key) {
	select {
	case e.commits <- key:
	default:
		e.droppedCommits.Add(1)
		e.logger.Error("commit queue full; selection dropped", "session", e.session, "key", key.Label)
	}
}

// trackPrefix maintains the word prefix suggestions are generated from.
func (e *Engine) trackPrefix(key layout.Key) {
	if key.Kind == layout.KindControl {
		switch key.Action {
		case "backspace", "delete":
			if len(e.prefix) > 0 {
				e.prefix = e.prefix[:len(e.prefix)-1]
			}
		case "enter", "space", "tab":
			e.prefix = e.prefix[:0]
		}
		return
	}

	text := key.Text()
	if utf8.RuneCountInString(text) == 1 {
		r, _ := utf8.DecodeRuneInString(text)
		if unicode.IsLetter(r) {
			e.prefix = append(e.prefix, unicode.ToLower(r))
			return
		}
	}
	e.prefix = e.prefix[:0]
}

func (e *Engine) publish() {
	e.gen++
	snap := Snapshot{
		Session:    e.session,
		State:      e.state,
		Strategy:   e.cfg.Strategy,
		Page:       e.cur.page,
		Row:        e.cur.row,
		Key:        e.cur.key,
		RowPhase:   e.cur.rowPhase && e.cfg.Strategy == StrategyRowColumn,
		Generation: e.gen,
	}
	if e.overlay != nil {
		labels := make([]string, len(e.overlay.keys))
		for i, key := range e.overlay.keys {
			labels[i] = key.Label
		}
		snap.Overlay = labels
		snap.OverlayKey = e.overlay.index
	}
	e.snap.Store(&snap)
	e.subs.publish(snap)
}

// Prefix returns the current word prefix; used by status surfaces.
func (e *Engine) Prefix() string {
	return string(e.prefix)
}
