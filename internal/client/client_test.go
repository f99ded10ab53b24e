package client_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavandejoey/MobileRAG/internal/client"
	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/protocol"
	"github.com/lavandejoey/MobileRAG/internal/testutil"
)

func newClient(b *testutil.Backend) *client.Client {
	return client.New(b.URL(), "/v1", 5*time.Second)
}

func TestListChatsNewestFirst(t *testing.T) {
	b := testutil.NewBackend(t)
	older := b.AddChat("older")
	newer := b.AddChat("newer")

	chats, err := newClient(b).ListChats(context.Background(), 200)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, newer, chats[0].ChatID)
	assert.Equal(t, older, chats[1].ChatID)
	assert.False(t, chats[0].UpdatedAt.IsZero())
}

func TestListChatsLimit(t *testing.T) {
	b := testutil.NewBackend(t)
	for i := 0; i < 5; i++ {
		b.AddChat(fmt.Sprintf("chat %d", i))
	}

	chats, err := newClient(b).ListChats(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestGetMessages(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddChat("t",
		models.ChatRecord{Role: models.RoleUser, Content: "hi"},
		models.ChatRecord{Role: models.RoleAssistant, Content: "hello"},
	)

	records, err := newClient(b).GetMessages(context.Background(), id, 2000)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.RoleUser, records[0].Role)
	assert.Equal(t, "hello", records[1].Content)
}

func TestGetMessagesNotFound(t *testing.T) {
	b := testutil.NewBackend(t)
	_, err := newClient(b).GetMessages(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestDeleteChat(t *testing.T) {
	b := testutil.NewBackend(t)
	id := b.AddChat("t")
	c := newClient(b)

	require.NoError(t, c.DeleteChat(context.Background(), id))
	assert.False(t, b.HasChat(id))
	assert.ErrorIs(t, c.DeleteChat(context.Background(), id), client.ErrNotFound)
}

func TestServerError(t *testing.T) {
	b := testutil.NewBackend(t)
	b.FailChats(true)

	_, err := newClient(b).ListChats(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.False(t, errors.Is(err, client.ErrNotFound))
}

func TestStatus(t *testing.T) {
	b := testutil.NewBackend(t)
	c := newClient(b)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, client.StatusOnline, status)

	b.SetStatus("degraded")
	status, err = c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "degraded", status)
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://h:1/v1/chat/ws", client.New("http://h:1/", "v1", 0).StreamURL())
	assert.Equal(t, "wss://h/api/chat/ws", client.New("https://h", "/api/", 0).StreamURL())
}

func TestStreamRoundTrip(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Enqueue(testutil.Turn{Raw: []string{"ping"}, Answer: []string{"He", "llo"}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := newClient(b).DialStream(ctx)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Send(protocol.Request{SessionID: "default", Message: "hi"}))

	var tags []string
	for {
		data, err := s.Next()
		if err != nil {
			assert.True(t, client.IsClosure(err), "unexpected error: %v", err)
			break
		}
		ev, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		tags = append(tags, ev.Tag())
	}

	assert.Equal(t, []string{protocol.TagChatCreated, protocol.TagAnswerToken, protocol.TagAnswerToken, protocol.TagDone}, tags)
	require.Len(t, b.Requests(), 1)
	assert.Equal(t, "hi", b.Requests()[0].Message)
	assert.Empty(t, b.Requests()[0].ChatID)
}

func TestDialFailure(t *testing.T) {
	b := testutil.NewBackend(t)
	b.Server.Close()

	_, err := newClient(b).DialStream(context.Background())
	require.Error(t, err)
	assert.False(t, client.IsClosure(err))
}

func TestIsClosure(t *testing.T) {
	assert.False(t, client.IsClosure(nil))
	assert.True(t, client.IsClosure(io.EOF))
	assert.True(t, client.IsClosure(fmt.Errorf("read message: %w", &websocket.CloseError{Code: websocket.CloseGoingAway})))
	assert.False(t, client.IsClosure(errors.New("connection reset by peer")))
}
