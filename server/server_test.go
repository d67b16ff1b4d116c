package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/fIIame/NeurooAiBot/users"
)

type fakeReplier struct {
	mu        sync.Mutex
	reply     string
	gotMemory string
}

func (f *fakeReplier) Reply(_ context.Context, _, memoryContext string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotMemory = memoryContext
	return f.reply, nil
}

type fakeMemory struct {
	mu          sync.Mutex
	contextStr  string
	recorded    int
	lastUserMsg string
}

func (f *fakeMemory) BuildContext(_ context.Context, _ int64, _ string) (string, []float32) {
	return f.contextStr, nil
}

func (f *fakeMemory) RecordTurn(_ context.Context, _ int64, userText string, _ []float32, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded++
	f.lastUserMsg = userText
}

func dialTestServer(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(srv.Handler()))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, out Frame) Frame {
	t.Helper()
	require.NoError(t, conn.WriteJSON(out))
	var in Frame
	require.NoError(t, conn.ReadJSON(&in))
	return in
}

func TestServerActivationGate(t *testing.T) {
	replier := &fakeReplier{reply: "hello!"}
	mem := &fakeMemory{contextStr: "Permanent memories:\n- likes blue"}
	srv, err := New(Config{Chat: replier, Assembler: mem, Users: users.NewMemoryStore()})
	require.NoError(t, err)

	conn := dialTestServer(t, srv)

	// Before activation every message gets the activation prompt and
	// no model call happens.
	resp := roundTrip(t, conn, Frame{Type: FrameMessage, UserID: 7, FirstName: "Ann", Text: "hi"})
	require.Equal(t, FrameReply, resp.Type)
	require.Equal(t, activationPrompt, resp.Text)

	resp = roundTrip(t, conn, Frame{Type: FrameActivate, UserID: 7, FirstName: "Ann"})
	require.Equal(t, FrameReply, resp.Type)

	resp = roundTrip(t, conn, Frame{Type: FrameMessage, UserID: 7, Text: "what's my favorite color?"})
	require.Equal(t, FrameTyping, resp.Type)

	var reply Frame
	require.NoError(t, conn.ReadJSON(&reply))
	require.Equal(t, FrameReply, reply.Type)
	require.Equal(t, "hello!", reply.Text)

	replier.mu.Lock()
	require.Equal(t, mem.contextStr, replier.gotMemory)
	replier.mu.Unlock()

	require.Eventually(t, func() bool {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		return mem.recorded == 1 && mem.lastUserMsg == "what's my favorite color?"
	}, time.Second, 10*time.Millisecond)
}

func TestServerChunksLongReplies(t *testing.T) {
	replier := &fakeReplier{reply: strings.Repeat("a", maxMessageLen+100)}
	mem := &fakeMemory{}
	store := users.NewMemoryStore()
	srv, err := New(Config{Chat: replier, Assembler: mem, Users: store})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Ensure(ctx, 1, "Bob"))
	require.NoError(t, store.Activate(ctx, 1))

	conn := dialTestServer(t, srv)
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameMessage, UserID: 1, Text: "tell me everything"}))

	var typing Frame
	require.NoError(t, conn.ReadJSON(&typing))
	require.Equal(t, FrameTyping, typing.Type)

	var got string
	for i := 0; i < 2; i++ {
		var in Frame
		require.NoError(t, conn.ReadJSON(&in))
		require.Equal(t, FrameReply, in.Type)
		require.LessOrEqual(t, len(in.Text), maxMessageLen)
		got += in.Text
	}
	require.Equal(t, replier.reply, got)
}

func TestServerRejectsMalformedFrames(t *testing.T) {
	srv, err := New(Config{Chat: &fakeReplier{}, Assembler: &fakeMemory{}, Users: users.NewMemoryStore()})
	require.NoError(t, err)

	conn := dialTestServer(t, srv)

	resp := roundTrip(t, conn, Frame{Type: "ping"})
	require.Equal(t, FrameError, resp.Type)

	resp = roundTrip(t, conn, Frame{Type: FrameMessage, Text: "no user id"})
	require.Equal(t, FrameError, resp.Type)

	resp = roundTrip(t, conn, Frame{Type: FrameActivate})
	require.Equal(t, FrameError, resp.Type)
}

func TestServerRequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestServerShutdownStopsAcceptingAndClosesSessions(t *testing.T) {
	srv, err := New(Config{Chat: &fakeReplier{}, Assembler: &fakeMemory{}, Users: users.NewMemoryStore()})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run("127.0.0.1:0") }()

	// Dial through a separate httptest listener so the test does not
	// depend on the ephemeral port; Shutdown must still close this
	// session, because it is tracked by the handler, not the listener.
	conn := dialTestServer(t, srv)

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.httpSrv != nil
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	var frame Frame
	require.Error(t, conn.ReadJSON(&frame), "session should be closed after Shutdown")
}
