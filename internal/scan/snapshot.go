package scan

import (
	"sync"

	"github.com/jblick1327/switch-interface/internal/fsm"
)

// Snapshot is an immutable view of the cursor taken after one transition.
// Renderers and the IPC/monitor surfaces only ever observe these; the live
// cursor is owned by the engine loop alone.
type Snapshot struct {
	Session    string    `json:"session"`
	State      fsm.State `json:"state"`
	Strategy   Strategy  `json:"strategy"`
	Page       int       `json:"page"`
	Row        int       `json:"row"`
	Key        int       `json:"key"`
	RowPhase   bool      `json:"row_phase,omitempty"`
	Overlay    []string  `json:"overlay,omitempty"`
	OverlayKey int       `json:"overlay_key,omitempty"`
	Generation uint64    `json:"generation"`
}

// subscribers fans snapshots out to observers without ever blocking the
// engine loop; a subscriber that falls behind misses intermediate frames.
type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Snapshot
}

func newSubscribers() *subscribers {
	return &subscribers{subs: make(map[int]chan Snapshot)}
}

func (s *subscribers) add(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *subscribers) publish(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *subscribers) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
