package duplex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 36 << 20 // base64 of a 25 MB clip

	sendBuffer = 64

	msgRequired   = "Message is required"
	msgBusy       = "Too many pending messages. Wait for a reply and try again."
	msgFailed     = "Failed to process message"
	msgBadFrame   = "Invalid event"
	msgNoAudio    = "No audio file provided"
	msgNoSTT      = "Transcription is not available"
	roleAssistant = "assistant"
)

type State int32

const (
	StateConnected State = iota
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type turn struct {
	event     string
	message   string
	sessionID string
	audio     dto.AudioFile
}

// Session is one websocket connection. Only its worker goroutine dispatches,
// so turns from one client are answered in the order they arrived.
type Session struct {
	ID string

	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	inbox chan turn
	done  chan struct{}
	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	mu        sync.RWMutex
	sessionID string

	closeOnce sync.Once
}

func newSession(ctx context.Context, h *Hub, conn *websocket.Conn) *Session {
	id := uuid.NewString()
	log, ctx := logger.With(logger.Detach(ctx), "component", "duplex", "connection_id", id)
	ctx, cancel := context.WithCancel(ctx)

	return &Session{
		ID:     id,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		inbox:  make(chan turn, h.opts.QueueSize),
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

// SessionID is the conversation id from the latest chat turn, if any.
func (s *Session) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// Done is closed when the session disconnects.
func (s *Session) Done() <-chan struct{} { return s.done }

// close is idempotent. The send channel is never closed; writers select on
// done instead, so a late Emit cannot panic.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateDisconnected))
		s.cancel()
		close(s.done)
	})
}

// Emit queues a frame for the write pump. It reports false once the
// session is gone.
func (s *Session) Emit(ev Outbound) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("marshal error", "event", ev.Event, "error", err)
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- data:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) ReadPump() {
	defer func() {
		s.hub.release(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("client disconnected", "error", err)
			}
			return
		}
		s.handleFrame(frame)
	}
}

func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case frame := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Session) handleFrame(frame []byte) {
	var in Inbound
	if err := json.Unmarshal(frame, &in); err != nil {
		s.log.Warn("invalid frame", "error", err)
		s.Emit(NewError(msgBadFrame))
		return
	}

	switch in.Event {
	case EventChat:
		var p ChatPayload
		if len(in.Data) > 0 {
			_ = json.Unmarshal(in.Data, &p)
		}
		msg, ok := p.Message.(string)
		if !ok || strings.TrimSpace(msg) == "" {
			s.Emit(NewError(msgRequired))
			return
		}
		s.enqueue(turn{event: EventChat, message: msg, sessionID: s.resolveSessionID(p.SessionID)})

	case EventTranscribe:
		var p TranscribePayload
		if len(in.Data) > 0 {
			_ = json.Unmarshal(in.Data, &p)
		}
		data, err := base64.StdEncoding.DecodeString(p.Audio)
		if err != nil || len(data) == 0 {
			s.Emit(NewError(msgNoAudio))
			return
		}
		s.enqueue(turn{
			event:     EventTranscribe,
			sessionID: s.resolveSessionID(p.SessionID),
			audio:     dto.AudioFile{ContentType: p.MimeType, Data: data},
		})

	default:
		s.log.Warn("unknown event", "event", in.Event)
		s.Emit(NewError(msgBadFrame))
	}
}

// resolveSessionID keeps the latest id the client sent, or makes one up
// for a client that never sends any.
func (s *Session) resolveSessionID(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case id != "":
		s.sessionID = id
	case s.sessionID == "":
		s.sessionID = dispatch.NewSessionID()
	}
	return s.sessionID
}

func (s *Session) enqueue(t turn) {
	s.state.CompareAndSwap(int32(StateConnected), int32(StateActive))
	select {
	case s.inbox <- t:
	case <-s.done:
	default:
		s.log.Warn("inbox full, rejecting turn", "queue_size", cap(s.inbox))
		s.Emit(NewError(msgBusy))
	}
}

func (s *Session) work() {
	for {
		select {
		case <-s.done:
			return
		case t := <-s.inbox:
			if s.ctx.Err() != nil {
				return
			}
			s.process(t)
		}
	}
}

func (s *Session) process(t turn) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("duplex turn panic", "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			s.Emit(NewError(msgFailed))
		}
	}()

	switch t.event {
	case EventChat:
		s.chat(t)
	case EventTranscribe:
		s.transcribe(t)
	}
}

func (s *Session) chat(t turn) {
	log, ctx := logger.With(s.ctx, "session_id", t.sessionID)
	log.Info("chat turn", "message", logger.Preview(t.message, 50))

	var res dispatch.Result
	if s.hub.opts.RouteMode == RouteClassify {
		res = s.hub.dispatcher.Dispatch(ctx, t.message, t.sessionID)
	} else {
		res = s.hub.dispatcher.DispatchIntent(ctx, intent.Chat, t.message, t.sessionID)
	}

	if ctx.Err() != nil {
		// Disconnected mid-turn; nobody to answer.
		return
	}
	if !res.Success {
		s.Emit(NewError(res.Response))
		return
	}

	id := "msg_" + uuid.NewString()
	if s.hub.opts.Delivery == DeliverStream {
		s.stream(id, res.Response)
		return
	}
	s.Emit(NewEvent(EventMessage, MessagePayload{ID: id, Content: res.Response, Role: roleAssistant}))
}

// stream sends the reply as chunks followed by a single done frame.
func (s *Session) stream(id, text string) {
	for _, chunk := range chunkText(text, s.hub.opts.ChunkRunes) {
		if !s.Emit(NewEvent(EventStream, StreamPayload{ID: id, Chunk: chunk})) {
			return
		}
	}
	s.Emit(NewEvent(EventStream, StreamPayload{ID: id, Done: true}))
}

func (s *Session) transcribe(t turn) {
	if s.hub.transcriber == nil {
		s.Emit(NewError(msgNoSTT))
		return
	}
	text, err := s.hub.transcriber.Transcribe(s.ctx, t.audio)
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.log.Warn("transcription failed", "error", err)
		s.Emit(NewError(userMessage(err)))
		return
	}
	s.Emit(NewEvent(EventTranscription, TranscriptionPayload{Text: text}))
}

func userMessage(err error) string {
	var (
		valErr *errs.ValidationError
		svcErr *errs.ExternalServiceError
	)
	switch {
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &svcErr):
		return svcErr.Message
	}
	return msgFailed
}

// chunkText splits on rune boundaries, preferring the last space inside
// each window.
func chunkText(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= size {
			chunks = append(chunks, string(runes))
			break
		}
		cut := size
		for i := size; i > size/2; i-- {
			if runes[i-1] == ' ' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
