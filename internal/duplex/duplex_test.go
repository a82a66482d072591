package duplex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
)

type stubDispatcher struct {
	mu       sync.Mutex
	messages []string
	intents  []intent.Intent
	sessions []string
	fn       func(ctx context.Context, message string) dispatch.Result
}

func (d *stubDispatcher) record(in intent.Intent, message, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, message)
	d.intents = append(d.intents, in)
	d.sessions = append(d.sessions, sessionID)
}

func (d *stubDispatcher) Dispatch(ctx context.Context, message, sessionID string) dispatch.Result {
	d.record(intent.Classify(message), message, sessionID)
	return d.fn(ctx, message)
}

func (d *stubDispatcher) DispatchIntent(ctx context.Context, in intent.Intent, message, sessionID string) dispatch.Result {
	d.record(in, message, sessionID)
	return d.fn(ctx, message)
}

func (d *stubDispatcher) calls() ([]string, []intent.Intent, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.messages...), append([]intent.Intent(nil), d.intents...), append([]string(nil), d.sessions...)
}

func echo(_ context.Context, message string) dispatch.Result {
	return dispatch.Result{Success: true, Response: "echo: " + message}
}

type stubTranscriber struct {
	got dto.AudioFile
	err error
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio dto.AudioFile) (string, error) {
	s.got = audio
	if s.err != nil {
		return "", s.err
	}
	return "olá jarvis", nil
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T, d dispatcher, stt transcriber, opts Options) (*Hub, string) {
	t.Helper()
	hub := NewHub(helpers.TestLogger(), d, stt, opts)
	go hub.Run()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Attach(helpers.TestCtx(), conn)
	}))
	t.Cleanup(func() {
		hub.Close()
		hub.Wait()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	f := read(t, conn)
	require.Equal(t, EventConnected, f.Event)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}

func TestChatAnsweredWithMessage(t *testing.T) {
	d := &stubDispatcher{fn: echo}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "hello", "sessionId": "s-1"})

	f := read(t, conn)
	require.Equal(t, EventMessage, f.Event)
	msg := decode[MessagePayload](t, f)
	assert.Equal(t, "echo: hello", msg.Content)
	assert.Equal(t, "assistant", msg.Role)
	assert.True(t, strings.HasPrefix(msg.ID, "msg_"))

	_, intents, sessions := d.calls()
	assert.Equal(t, []intent.Intent{intent.Chat}, intents)
	assert.Equal(t, []string{"s-1"}, sessions)
}

func TestChatRouteModeDefaultsToChatCapability(t *testing.T) {
	d := &stubDispatcher{fn: echo}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "debug this error"})
	read(t, conn)

	_, intents, _ := d.calls()
	assert.Equal(t, []intent.Intent{intent.Chat}, intents)
}

func TestChatRouteModeClassify(t *testing.T) {
	d := &stubDispatcher{fn: echo}
	_, url := startHub(t, d, nil, Options{RouteMode: RouteClassify})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "debug this error"})
	read(t, conn)

	_, intents, _ := d.calls()
	assert.Equal(t, []intent.Intent{intent.Debug}, intents)
}

func TestChatRejectsMissingMessage(t *testing.T) {
	d := &stubDispatcher{fn: echo}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	for _, data := range []any{
		map[string]any{"message": ""},
		map[string]any{"message": "   "},
		map[string]any{"message": 42},
		map[string]any{},
	} {
		send(t, conn, EventChat, data)
		f := read(t, conn)
		require.Equal(t, EventError, f.Event)
		assert.Equal(t, "Message is required", decode[ErrorPayload](t, f).Message)
	}

	msgs, _, _ := d.calls()
	assert.Empty(t, msgs)
}

func TestUnknownEventAnsweredWithError(t *testing.T) {
	_, url := startHub(t, &stubDispatcher{fn: echo}, nil, Options{})
	conn := dial(t, url)

	send(t, conn, "dance", nil)
	f := read(t, conn)
	assert.Equal(t, EventError, f.Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	f = read(t, conn)
	assert.Equal(t, EventError, f.Event)
}

func TestRapidTurnsAnsweredInOrder(t *testing.T) {
	d := &stubDispatcher{fn: func(_ context.Context, message string) dispatch.Result {
		if message == "first" {
			time.Sleep(50 * time.Millisecond)
		}
		return dispatch.Result{Success: true, Response: message}
	}}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "first"})
	send(t, conn, EventChat, map[string]any{"message": "second"})

	assert.Equal(t, "first", decode[MessagePayload](t, read(t, conn)).Content)
	assert.Equal(t, "second", decode[MessagePayload](t, read(t, conn)).Content)
}

func TestSessionIDRememberedAcrossTurns(t *testing.T) {
	d := &stubDispatcher{fn: echo}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "one"})
	read(t, conn)
	send(t, conn, EventChat, map[string]any{"message": "two"})
	read(t, conn)
	send(t, conn, EventChat, map[string]any{"message": "three", "sessionId": "mine"})
	read(t, conn)

	_, _, sessions := d.calls()
	require.Len(t, sessions, 3)
	assert.True(t, strings.HasPrefix(sessions[0], "session_"))
	assert.Equal(t, sessions[0], sessions[1])
	assert.Equal(t, "mine", sessions[2])
}

func TestFailedDispatchEmitsError(t *testing.T) {
	d := &stubDispatcher{fn: func(context.Context, string) dispatch.Result {
		return dispatch.Result{Success: false, Response: "Connection error: refused"}
	}}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "hi"})
	f := read(t, conn)
	require.Equal(t, EventError, f.Event)
	assert.Equal(t, "Connection error: refused", decode[ErrorPayload](t, f).Message)
}

func TestPanickingDispatchKeepsSessionAlive(t *testing.T) {
	calls := 0
	d := &stubDispatcher{fn: func(_ context.Context, message string) dispatch.Result {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return dispatch.Result{Success: true, Response: message}
	}}
	_, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "one"})
	f := read(t, conn)
	require.Equal(t, EventError, f.Event)
	assert.Equal(t, "Failed to process message", decode[ErrorPayload](t, f).Message)

	send(t, conn, EventChat, map[string]any{"message": "two"})
	assert.Equal(t, "two", decode[MessagePayload](t, read(t, conn)).Content)
}

func TestStreamDeliveryChunksThenDone(t *testing.T) {
	reply := strings.Repeat("palavra ", 30)
	d := &stubDispatcher{fn: func(context.Context, string) dispatch.Result {
		return dispatch.Result{Success: true, Response: reply}
	}}
	_, url := startHub(t, d, nil, Options{Delivery: DeliverStream, ChunkRunes: 20})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "hi"})

	var (
		text string
		id   string
	)
	for {
		f := read(t, conn)
		require.Equal(t, EventStream, f.Event)
		p := decode[StreamPayload](t, f)
		if id == "" {
			id = p.ID
		}
		assert.Equal(t, id, p.ID)
		if p.Done {
			assert.Empty(t, p.Chunk)
			break
		}
		assert.LessOrEqual(t, len([]rune(p.Chunk)), 20)
		text += p.Chunk
	}
	assert.Equal(t, reply, text)
}

func TestFullQueueRejectsTurn(t *testing.T) {
	release := make(chan struct{})
	d := &stubDispatcher{fn: func(_ context.Context, message string) dispatch.Result {
		<-release
		return dispatch.Result{Success: true, Response: message}
	}}
	_, url := startHub(t, d, nil, Options{QueueSize: 1})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "in-flight"})
	// Wait until the worker has taken the first turn off the queue.
	require.Eventually(t, func() bool {
		msgs, _, _ := d.calls()
		return len(msgs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	send(t, conn, EventChat, map[string]any{"message": "queued"})
	send(t, conn, EventChat, map[string]any{"message": "rejected"})

	f := read(t, conn)
	require.Equal(t, EventError, f.Event)
	assert.Contains(t, decode[ErrorPayload](t, f).Message, "Too many pending messages")

	close(release)
	assert.Equal(t, "in-flight", decode[MessagePayload](t, read(t, conn)).Content)
	assert.Equal(t, "queued", decode[MessagePayload](t, read(t, conn)).Content)
}

func TestDisconnectCancelsInFlightTurn(t *testing.T) {
	cancelled := make(chan struct{})
	d := &stubDispatcher{fn: func(ctx context.Context, _ string) dispatch.Result {
		<-ctx.Done()
		close(cancelled)
		return dispatch.Result{Success: false, Response: "Request cancelled."}
	}}
	hub, url := startHub(t, d, nil, Options{})
	conn := dial(t, url)

	send(t, conn, EventChat, map[string]any{"message": "slow"})
	require.Eventually(t, func() bool {
		msgs, _, _ := d.calls()
		return len(msgs) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	select {
	case <-cancelled:
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight dispatch was not cancelled")
	}
	require.Eventually(t, func() bool { return hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestDisconnectDropsQueuedTurns(t *testing.T) {
	d := &stubDispatcher{fn: func(ctx context.Context, message string) dispatch.Result {
		if message == "slow" {
			<-ctx.Done()
			return dispatch.Result{Success: false, Response: "Request cancelled."}
		}
		return echo(ctx, message)
	}}
	hub := NewHub(helpers.TestLogger(), d, nil, Options{QueueSize: 16})
	go hub.Run()

	sessions := make(chan *Session, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sessions <- hub.Attach(helpers.TestCtx(), conn)
	}))
	t.Cleanup(func() {
		hub.Close()
		hub.Wait()
		srv.Close()
	})

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http"))
	s := <-sessions
	assert.Equal(t, StateConnected, s.State())

	send(t, conn, EventChat, map[string]any{"message": "slow"})
	require.Eventually(t, func() bool {
		msgs, _, _ := d.calls()
		return len(msgs) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, StateActive, s.State())

	for i := 0; i < 10; i++ {
		send(t, conn, EventChat, map[string]any{"message": "queued"})
	}
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool { return s.State() == StateDisconnected }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	msgs, _, _ := d.calls()
	assert.Equal(t, []string{"slow"}, msgs)
}

func TestTranscribeEvent(t *testing.T) {
	stt := &stubTranscriber{}
	_, url := startHub(t, &stubDispatcher{fn: echo}, stt, Options{})
	conn := dial(t, url)

	send(t, conn, EventTranscribe, map[string]any{
		"audio":    base64.StdEncoding.EncodeToString([]byte("RIFF")),
		"mimeType": "audio/wav",
	})
	f := read(t, conn)
	require.Equal(t, EventTranscription, f.Event)
	assert.Equal(t, "olá jarvis", decode[TranscriptionPayload](t, f).Text)
	assert.Equal(t, []byte("RIFF"), stt.got.Data)
	assert.Equal(t, "audio/wav", stt.got.ContentType)
}

func TestTranscribeErrors(t *testing.T) {
	stt := &stubTranscriber{err: errs.NewValidationError("Unsupported audio type: text/plain")}
	_, url := startHub(t, &stubDispatcher{fn: echo}, stt, Options{})
	conn := dial(t, url)

	send(t, conn, EventTranscribe, map[string]any{"audio": "%%%"})
	f := read(t, conn)
	require.Equal(t, EventError, f.Event)
	assert.Equal(t, "No audio file provided", decode[ErrorPayload](t, f).Message)

	send(t, conn, EventTranscribe, map[string]any{
		"audio":    base64.StdEncoding.EncodeToString([]byte("x")),
		"mimeType": "text/plain",
	})
	f = read(t, conn)
	require.Equal(t, EventError, f.Event)
	assert.Equal(t, "Unsupported audio type: text/plain", decode[ErrorPayload](t, f).Message)
}

func TestHubCloseDisconnectsSessions(t *testing.T) {
	hub, url := startHub(t, &stubDispatcher{fn: echo}, nil, Options{})
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	hub.Close()
	hub.Wait()
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestChunkTextKeepsRunesWhole(t *testing.T) {
	chunks := chunkText("ação ação ação", 5)
	assert.Equal(t, "ação ação ação", strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 5)
	}
	assert.Nil(t, chunkText("", 5))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "disconnected", StateDisconnected.String())
}
