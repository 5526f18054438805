package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Block is one fixed-size run of mono samples tagged with a monotonic
// sequence number. Blocks are consumed exactly once by the switch detector.
type Block struct {
	Seq     uint64
	Samples []int16
}

// StreamFault reports a capture-path failure: an overrun that dropped blocks,
// or loss of the capture stream itself. Gaps are never interpolated; the
// consumer decides how to degrade.
type StreamFault struct {
	Reason string
	Seq    uint64
}

func (f StreamFault) Error() string {
	return fmt.Sprintf("stream fault at block %d: %s", f.Seq, f.Reason)
}

// CaptureConfig fixes the sampling geometry for one capture session.
type CaptureConfig struct {
	SampleRate int
	BlockSize  int
}

// Capture streams fixed-size sample blocks from one selected Pulse source.
// The Pulse callback path only slices, converts, and does channel sends; it
// never blocks on the consumer.
type Capture struct {
	device Device
	cfg    CaptureConfig

	client *pulse.Client
	stream *pulse.RecordStream

	blocks chan Block
	faults chan error
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	seq     uint64
	stopped bool

	inflight sync.WaitGroup
	dropped  atomic.Uint64
}

// StartCapture creates and starts a mono s16le record stream cut into
// cfg.BlockSize sample blocks.
func StartCapture(ctx context.Context, selected Device, cfg CaptureConfig) (*Capture, error) {
	if cfg.SampleRate <= 0 || cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("invalid capture geometry: rate=%d block=%d", cfg.SampleRate, cfg.BlockSize)
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("switchscan"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := &Capture{
		device: selected,
		cfg:    cfg,
		client: client,
		blocks: make(chan Block, 64),
		faults: make(chan error, 4),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(cfg.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(cfg.BlockSize*2)),
		pulse.RecordMediaName("switchscan input"),
	)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = capture.Stop()
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// Blocks returns the sample stream. Closed exactly once by Stop.
func (c *Capture) Blocks() <-chan Block {
	return c.blocks
}

// Faults surfaces stream faults (overruns, connection loss).
func (c *Capture) Faults() <-chan error {
	return c.faults
}

// Dropped reports how many blocks were discarded because the consumer lagged.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Stop halts the stream, discards residual samples, and closes Blocks exactly
// once. Safe to call more than once.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	close(c.blocks)
	close(c.faults)
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM receives raw Pulse frames and emits whole blocks to c.blocks.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)

	c.pending = append(c.pending, buffer...)
	blockBytes := c.cfg.BlockSize * 2
	blocks := make([]Block, 0, len(c.pending)/blockBytes)
	for len(c.pending) >= blockBytes {
		blocks = append(blocks, Block{Seq: c.seq, Samples: decodeSamples(c.pending[:blockBytes])})
		c.pending = c.pending[blockBytes:]
		c.seq++
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	for _, block := range blocks {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		case c.blocks <- block:
		default:
			// Consumer is behind; drop rather than stall the capture context.
			c.dropped.Add(1)
			c.reportFault(StreamFault{Reason: "block dropped: consumer overrun", Seq: block.Seq})
		}
	}

	return len(buffer), nil
}

func (c *Capture) reportFault(err error) {
	select {
	case c.faults <- err:
	default:
	}
}

// decodeSamples converts little-endian s16 bytes into a fresh sample slice.
func decodeSamples(raw []byte) []int16 {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return samples
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
