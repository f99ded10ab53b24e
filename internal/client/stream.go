package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lavandejoey/MobileRAG/internal/protocol"
)

// Stream is one open turn connection.
type Stream struct {
	conn *websocket.Conn

	closeOnce sync.Once
	closeErr  error
}

// DialStream opens the turn WebSocket.
func (c *Client) DialStream(ctx context.Context) (*Stream, error) {
	u, err := url.Parse(c.StreamURL())
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket connect: %w", err)
	}
	return &Stream{conn: conn}, nil
}

// Send writes the turn's single request message.
func (s *Stream) Send(req protocol.Request) error {
	if err := s.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	return nil
}

// Next blocks for the next data frame.
func (s *Stream) Next() ([]byte, error) {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read message: %w", err)
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close closes the connection. It is safe to call more than once and from
// any goroutine; a blocked Next returns with an error.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// IsClosure reports whether err is an ordinary end of stream: a close frame
// of any code or EOF, as opposed to a transport failure.
func IsClosure(err error) bool {
	if err == nil {
		return false
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
