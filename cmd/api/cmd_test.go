package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/jarvis-gateway/internal/config"
	"github.com/GregMSThompson/jarvis-gateway/internal/dispatch"
	"github.com/GregMSThompson/jarvis-gateway/internal/intent"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestExitOnErrorClosesBeforeExit(t *testing.T) {
	var calls []string
	exit = func(code int) { calls = append(calls, "exit") }
	t.Cleanup(func() { exit = osExit })

	exitOnError("dispatcher wiring failed", errors.New("boom"), helpers.TestLogger(),
		closerFunc(func() error { calls = append(calls, "close"); return nil }),
		closerFunc(func() error { calls = append(calls, "close-err"); return errors.New("already closed") }),
	)

	assert.Equal(t, []string{"close", "close-err", "exit"}, calls)
}

func TestExitOnErrorNoError(t *testing.T) {
	exited := false
	exit = func(int) { exited = true }
	t.Cleanup(func() { exit = osExit })

	closed := false
	exitOnError("noop", nil, helpers.TestLogger(), closerFunc(func() error { closed = true; return nil }))

	assert.False(t, exited)
	assert.False(t, closed)
}

func TestRoutesTable(t *testing.T) {
	stub := dispatch.AdapterFunc(func(context.Context, string, string) (dispatch.Reply, error) {
		return dispatch.Reply{}, nil
	})
	table := routes(config.TimeoutsConfig{
		Chat: 60 * time.Second, Debug: 30 * time.Second, Docs: 30 * time.Second,
		Orchestrate: 120 * time.Second, Workflow: 30 * time.Second,
	}, capabilities{chat: stub, debug: stub, docs: stub, orchestrate: stub, workflow: stub})

	tests := []struct {
		in      intent.Intent
		tool    dispatch.Tool
		model   string
		timeout time.Duration
	}{
		{intent.Chat, dispatch.ToolOpenCode, chatModel, 60 * time.Second},
		{intent.Debug, dispatch.ToolClaude, oracleModel, 30 * time.Second},
		{intent.Docs, dispatch.ToolOpenCode, docsModel, 30 * time.Second},
		{intent.Orchestrate, dispatch.ToolOpenCode, oracleModel, 120 * time.Second},
		{intent.CreateWorkflow, dispatch.ToolOpenCode, n8nModel, 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			r, ok := table[tt.in]
			require.True(t, ok)
			assert.Equal(t, tt.tool, r.Tool)
			assert.Equal(t, tt.model, r.Model)
			assert.Equal(t, tt.timeout, r.Timeout)
		})
	}

	_, err := dispatch.New(table)
	require.NoError(t, err)
}
