package client_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavandejoey/MobileRAG/internal/testutil"
)

func TestWithLoggerLogsRequests(t *testing.T) {
	b := testutil.NewBackend(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := newClient(b).WithLogger(logger)
	_, err := c.ListChats(context.Background(), 5)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request completed"`)
	assert.Contains(t, out, `"path":"/v1/chats"`)
	assert.Contains(t, out, `"query":"limit=5"`)
	assert.Contains(t, out, `"status":200`)
}

func TestWithLoggerWarnsOnServerError(t *testing.T) {
	b := testutil.NewBackend(t)
	b.FailChats(true)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	_, err := newClient(b).WithLogger(logger).ListChats(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"status":500`)
}
