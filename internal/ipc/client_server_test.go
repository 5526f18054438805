package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scanSession fakes the engine side of the protocol: a cursor position plus a
// pause/resume/stop lifecycle, reported through the full Response shape.
type scanSession struct {
	id             string
	state          string
	page, row, key int
}

func (s *scanSession) handle(_ context.Context, req Request) Response {
	switch req.Command {
	case "status":
		return s.status("")
	case "pause":
		s.state = "suspended"
		return s.status("paused")
	case "resume":
		s.state = "scanning"
		return s.status("resumed")
	case "stop":
		s.state = "idle"
		s.page, s.row, s.key = 0, 0, 0
		return s.status("stopped")
	default:
		return Response{OK: false, Error: "unknown command " + req.Command}
	}
}

func (s *scanSession) status(message string) Response {
	return Response{
		OK:       true,
		Session:  s.id,
		State:    s.state,
		Strategy: "row-column",
		Page:     s.page,
		Row:      s.row,
		Key:      s.key,
		Message:  message,
	}
}

func serveSession(t *testing.T, session *scanSession) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "switchscan.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(session.handle))
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return socketPath
}

func TestStatusReportsCursorPosition(t *testing.T) {
	session := &scanSession{id: "b2f1c4d8", state: "scanning", page: 1, row: 2, key: 3}
	socketPath := serveSession(t, session)

	resp, err := Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "b2f1c4d8", resp.Session)
	require.Equal(t, "scanning", resp.State)
	require.Equal(t, "row-column", resp.Strategy)
	require.Equal(t, 1, resp.Page)
	require.Equal(t, 2, resp.Row)
	require.Equal(t, 3, resp.Key)
	require.Empty(t, resp.Message)
}

func TestPauseResumeStopSequence(t *testing.T) {
	session := &scanSession{id: "b2f1c4d8", state: "scanning", page: 0, row: 1, key: 1}
	socketPath := serveSession(t, session)
	send := func(command string) Response {
		t.Helper()
		resp, err := Send(context.Background(), socketPath, Request{Command: command}, 200*time.Millisecond)
		require.NoError(t, err)
		require.True(t, resp.OK)
		return resp
	}

	resp := send("pause")
	require.Equal(t, "suspended", resp.State)
	require.Equal(t, "paused", resp.Message)
	// Pausing freezes the cursor where it was.
	require.Equal(t, 1, resp.Row)

	resp = send("resume")
	require.Equal(t, "scanning", resp.State)
	require.Equal(t, "resumed", resp.Message)

	resp = send("stop")
	require.Equal(t, "idle", resp.State)
	require.Equal(t, "stopped", resp.Message)
	require.Zero(t, resp.Row)
	require.Zero(t, resp.Key)
	require.Equal(t, "b2f1c4d8", resp.Session, "stop still identifies the session it ended")
}

func TestUnknownCommandRejected(t *testing.T) {
	session := &scanSession{id: "b2f1c4d8", state: "idle"}
	socketPath := serveSession(t, session)

	resp, err := Send(context.Background(), socketPath, Request{Command: "calibrate"}, 200*time.Millisecond)
	require.NoError(t, err)
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "calibrate")
	require.Empty(t, resp.Session)
}

func TestSendDecodeResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "switchscan.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "switchscan.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	session := &scanSession{id: "b2f1c4d8", state: "scanning"}
	socketPath := serveSession(t, session)

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestProbe(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "switchscan.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	session := &scanSession{id: "b2f1c4d8", state: "idle"}
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(session.handle))
	}()

	alive, probeErr := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}
