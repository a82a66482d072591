// Package duplex is the websocket side of the gateway: one Session per
// connection, chat turns dispatched one at a time per session.
package duplex

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
)

type RouteMode string

const (
	// RouteChat sends every duplex message to the chat capability.
	RouteChat RouteMode = "chat"
	// RouteClassify routes duplex messages the same way as POST /chat.
	RouteClassify RouteMode = "classify"
)

type Delivery string

const (
	DeliverMessage Delivery = "message"
	DeliverStream  Delivery = "stream"
)

type Options struct {
	RouteMode RouteMode
	Delivery  Delivery
	// QueueSize bounds the turns waiting behind the one in progress.
	QueueSize int
	// ChunkRunes is the stream chunk size.
	ChunkRunes int
}

type dispatcher interface {
	Dispatch(ctx context.Context, message, sessionID string) dispatch.Result
	DispatchIntent(ctx context.Context, in intent.Intent, message, sessionID string) dispatch.Result
}

type transcriber interface {
	Transcribe(ctx context.Context, audio dto.AudioFile) (string, error)
}

type Hub struct {
	sessions   map[*Session]struct{}
	register   chan *Session
	unregister chan *Session
	quit       chan struct{}
	stopped    chan struct{}
	closeOnce  sync.Once
	mu         sync.RWMutex

	log         *slog.Logger
	dispatcher  dispatcher
	transcriber transcriber
	opts        Options
}

func NewHub(log *slog.Logger, d dispatcher, stt transcriber, opts Options) *Hub {
	if opts.RouteMode == "" {
		opts.RouteMode = RouteChat
	}
	if opts.Delivery == "" {
		opts.Delivery = DeliverMessage
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 16
	}
	if opts.ChunkRunes < 1 {
		opts.ChunkRunes = 64
	}
	return &Hub{
		sessions:    make(map[*Session]struct{}),
		register:    make(chan *Session),
		unregister:  make(chan *Session),
		quit:        make(chan struct{}),
		stopped:     make(chan struct{}),
		log:         log,
		dispatcher:  d,
		transcriber: stt,
		opts:        opts,
	}
}

// Run owns the session set until Close is called.
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = struct{}{}
			h.mu.Unlock()
			s.log.Info("session connected")

		case s := <-h.unregister:
			h.mu.Lock()
			_, ok := h.sessions[s]
			delete(h.sessions, s)
			h.mu.Unlock()
			if ok {
				s.close()
				s.log.Info("session disconnected")
			}

		case <-h.quit:
			h.mu.Lock()
			h.log.Info("closing duplex hub", "sessions", len(h.sessions))
			for s := range h.sessions {
				s.close()
				_ = s.conn.Close()
				delete(h.sessions, s)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Close disconnects every session and stops Run.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}

// Wait blocks until Run has returned.
func (h *Hub) Wait() { <-h.stopped }

// Count reports the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Attach takes ownership of an upgraded connection: it greets the client and
// starts the session's pumps and worker. It returns once the session is
// registered, or immediately when the hub is closed.
func (h *Hub) Attach(ctx context.Context, conn *websocket.Conn) *Session {
	s := newSession(ctx, h, conn)
	s.Emit(NewEvent(EventConnected, nil))

	select {
	case h.register <- s:
	case <-h.quit:
		s.close()
		_ = conn.Close()
		return s
	}

	go s.WritePump()
	go s.work()
	go s.ReadPump()
	return s
}

func (h *Hub) release(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.quit:
		s.close()
	}
}
