package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/jblick1327/switch-interface/internal/fsm"
	"github.com/jblick1327/switch-interface/internal/scan"
)

// fakeSource replays a fixed current snapshot and hands out subscriptions
// the test can push frames into.
type fakeSource struct {
	mu      sync.Mutex
	current scan.Snapshot
	feeds   []chan scan.Snapshot
}

func (f *fakeSource) Snapshot() scan.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSource) Subscribe(buffer int) (<-chan scan.Snapshot, func()) {
	ch := make(chan scan.Snapshot, buffer)
	f.mu.Lock()
	f.feeds = append(f.feeds, ch)
	f.mu.Unlock()

	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }
}

func (f *fakeSource) push(snap scan.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = snap
	for _, ch := range f.feeds {
		select {
		case ch <- snap:
		default:
		}
	}
}

func newTestServer(t *testing.T) (*fakeSource, *httptest.Server) {
	t.Helper()
	src := &fakeSource{current: scan.Snapshot{
		Session:    "test-session",
		State:      fsm.StateScanning,
		Strategy:   scan.StrategyLinear,
		Generation: 1,
	}}
	ts := httptest.NewServer(NewServer(src, nil).Handler())
	t.Cleanup(ts.Close)
	return src, ts
}

func TestSnapshotEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var snap scan.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, "test-session", snap.Session)
	require.Equal(t, fsm.StateScanning, snap.State)
}

func TestSnapshotEndpointRejectsPost(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/snapshot", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	src, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// The first frame is the current snapshot.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var first scan.Snapshot
	require.NoError(t, json.Unmarshal(payload, &first))
	require.Equal(t, uint64(1), first.Generation)

	// Subsequent frames follow the feed. Subscription registration races the
	// first push, so retry until a newer generation arrives.
	deadline := time.Now().Add(2 * time.Second)
	var got scan.Snapshot
	for {
		src.push(scan.Snapshot{Session: "test-session", State: fsm.StateScanning, Row: 2, Key: 1, Generation: 7})

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
		_, payload, err = conn.ReadMessage()
		if err == nil {
			require.NoError(t, json.Unmarshal(payload, &got))
			if got.Generation == 7 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("updated snapshot never arrived")
		}
	}
	require.Equal(t, 2, got.Row)
	require.Equal(t, 1, got.Key)
}
