// Package dispatch routes a classified message to exactly one capability
// adapter and turns whatever comes back into a Result.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

const (
	unexpectedFailure = "An unexpected error occurred."
	emptyFailure      = "The assistant could not complete the request."
)

// Reply is what an adapter reports back. Success=false with a Response is a
// handled failure; Response then holds the user-facing reason.
type Reply struct {
	Success    bool
	Response   string
	ModelUsed  string
	WorkflowID string
}

// Adapter is a single backend capability.
type Adapter interface {
	Invoke(ctx context.Context, message, sessionID string) (Reply, error)
}

// AdapterFunc lets a plain function serve as an Adapter.
type AdapterFunc func(ctx context.Context, message, sessionID string) (Reply, error)

func (f AdapterFunc) Invoke(ctx context.Context, message, sessionID string) (Reply, error) {
	return f(ctx, message, sessionID)
}

type Tool string

const (
	ToolClaude   Tool = "claude"
	ToolOpenCode Tool = "openCode"
	ToolN8N      Tool = "n8n"
)

type Route struct {
	Adapter Adapter
	// Service names the backend in logs and timeout errors.
	Service string
	Tool    Tool
	// Model is reported when the adapter does not name one.
	Model   string
	Timeout time.Duration
}

type Result struct {
	Success         bool          `json:"success"`
	Response        string        `json:"response"`
	Intent          intent.Intent `json:"intent"`
	ToolUsed        string        `json:"toolUsed,omitempty"`
	ModelUsed       string        `json:"modelUsed,omitempty"`
	ExecutionTimeMs int64         `json:"executionTimeMs"`
	WorkflowID      string        `json:"workflowId,omitempty"`
}

type Dispatcher struct {
	routes map[intent.Intent]Route
	now    func() time.Time
}

// New checks that every intent has a usable route. A dispatcher is only
// ever built at startup, so a gap here is a wiring bug.
func New(routes map[intent.Intent]Route) (*Dispatcher, error) {
	table := make(map[intent.Intent]Route, len(routes))
	for _, in := range intent.All() {
		r, ok := routes[in]
		if !ok || r.Adapter == nil {
			return nil, fmt.Errorf("dispatch: no adapter for intent %q", in)
		}
		if r.Timeout <= 0 {
			return nil, fmt.Errorf("dispatch: intent %q needs a positive timeout", in)
		}
		if r.Service == "" {
			r.Service = string(in)
		}
		table[in] = r
	}
	return &Dispatcher{routes: table, now: time.Now}, nil
}

// Dispatch classifies the message and invokes the matching adapter. It
// always returns a Result; failures come back as Success=false.
func (d *Dispatcher) Dispatch(ctx context.Context, message, sessionID string) Result {
	return d.DispatchIntent(ctx, intent.Classify(message), message, sessionID)
}

// DispatchIntent skips classification. Unknown intents fall back to chat.
func (d *Dispatcher) DispatchIntent(ctx context.Context, in intent.Intent, message, sessionID string) Result {
	start := d.now()

	route, ok := d.routes[in]
	if !ok {
		in = intent.Chat
		route = d.routes[in]
	}

	log, ctx := logger.With(ctx, "intent", string(in), "service", route.Service)
	log.Info("dispatching", "message", logger.Preview(message, 50))

	reply, err := d.invoke(ctx, route, message, sessionID)

	res := Result{
		Success:    err == nil && reply.Success,
		Response:   reply.Response,
		Intent:     in,
		ToolUsed:   string(route.Tool),
		ModelUsed:  reply.ModelUsed,
		WorkflowID: reply.WorkflowID,
	}
	if res.ModelUsed == "" {
		res.ModelUsed = route.Model
	}

	if !res.Success {
		res.Response = failureText(reply, err)
		res.WorkflowID = ""
	}

	elapsed := d.now().Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	res.ExecutionTimeMs = elapsed.Milliseconds()

	if res.Success {
		log.Info("dispatch complete", "duration_ms", res.ExecutionTimeMs, "model", res.ModelUsed)
	} else {
		log.Warn("dispatch failed", "duration_ms", res.ExecutionTimeMs, "error", err, "response", logger.Preview(res.Response, 50))
	}
	return res
}

type outcome struct {
	reply Reply
	err   error
}

func (d *Dispatcher) invoke(ctx context.Context, route Route, message, sessionID string) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, route.Timeout)
	defer cancel()

	// Buffered so an adapter that ignores its context can still finish
	// after we stopped waiting.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logger.FromContext(ctx).Error("adapter panic",
					"panic", fmt.Sprint(p),
					"stack", string(debug.Stack()))
				done <- outcome{err: errPanic}
			}
		}()
		reply, err := route.Adapter.Invoke(ctx, message, sessionID)
		done <- outcome{reply: reply, err: err}
	}()

	select {
	case out := <-done:
		// Adapters that already described the timeout keep their wording.
		var svcErr *errs.ExternalServiceError
		if errors.Is(out.err, context.DeadlineExceeded) && !errors.As(out.err, &svcErr) {
			return Reply{}, errs.NewTimeoutError(route.Service, route.Timeout)
		}
		return out.reply, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Reply{}, errs.NewTimeoutError(route.Service, route.Timeout)
		}
		return Reply{}, errs.NewExternalServiceError(route.Service, "Request cancelled.", false, ctx.Err())
	}
}

var errPanic = errors.New("adapter panic")

func failureText(reply Reply, err error) string {
	switch {
	case errors.Is(err, errPanic):
		return unexpectedFailure
	case err != nil && err.Error() != "":
		return err.Error()
	case reply.Response != "":
		return reply.Response
	}
	return emptyFailure
}

var lastSession atomic.Int64

// NewSessionID returns "session_<unix-millis>". Calls within the same
// millisecond are bumped forward so ids never repeat in-process.
func NewSessionID() string {
	for {
		now := time.Now().UnixMilli()
		prev := lastSession.Load()
		next := now
		if next <= prev {
			next = prev + 1
		}
		if lastSession.CompareAndSwap(prev, next) {
			return "session_" + strconv.FormatInt(next, 10)
		}
	}
}
