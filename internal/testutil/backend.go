// Package testutil provides an in-process fake of the MobileRAG backend:
// the chat REST routes, the status route and the streaming WebSocket.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lavandejoey/MobileRAG/internal/models"
	"github.com/lavandejoey/MobileRAG/internal/protocol"
)

// Turn scripts the backend's reply to one streamed request.
type Turn struct {
	// Raw frames sent before any event, e.g. heartbeat noise.
	Raw []string
	// Stages are sent as stage events before thinking starts.
	Stages []string
	// Think tokens; when empty no think_* events are sent.
	Think   []string
	ThinkMs int64
	Answer  []string
	TotalMs int64
	// Error, when set, is sent instead of done.
	Error string
	// Gap is slept between frames.
	Gap time.Duration
	// Hold keeps the connection open after the script until the client closes it.
	Hold bool
	// Drop closes the TCP connection without a close frame after the script.
	Drop bool
	// SkipDone omits the final done event.
	SkipDone bool
}

type chat struct {
	models.Chat
	records []models.ChatRecord
}

// Backend is a scripted fake server.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	chats      map[string]*chat
	turns      []Turn
	requests   []protocol.Request
	status     string
	failChats  bool
	nextMsgID  int64
	clock      time.Time
	streamOpen int
}

// NewBackend starts a fake backend that is closed when the test ends.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		chats:  make(map[string]*chat),
		status: "online",
		clock:  time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", b.handleStatus)
	mux.HandleFunc("GET /v1/chats", b.handleListChats)
	mux.HandleFunc("GET /v1/chats/{id}/messages", b.handleMessages)
	mux.HandleFunc("DELETE /v1/chats/{id}", b.handleDelete)
	mux.HandleFunc("/v1/chat/ws", b.handleStream)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the server's base URL.
func (b *Backend) URL() string {
	return b.Server.URL
}

// SetStatus changes the value reported by /status.
func (b *Backend) SetStatus(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status = status
}

// FailChats makes the chat routes answer 500.
func (b *Backend) FailChats(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failChats = fail
}

// Enqueue scripts the replies to the next streamed requests, in order.
// Requests beyond the queue get a single "ok" answer.
func (b *Backend) Enqueue(turns ...Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turns...)
}

// Requests returns every request received on the stream endpoint.
func (b *Backend) Requests() []protocol.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]protocol.Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// OpenStreams returns the number of stream connections currently open.
func (b *Backend) OpenStreams() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streamOpen
}

// AddChat stores a chat with the given records and returns its id.
func (b *Backend) AddChat(title string, records ...models.ChatRecord) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	now := b.tick()
	c := &chat{Chat: models.Chat{ChatID: id, Title: title, CreatedAt: models.At(now), UpdatedAt: models.At(now)}}
	for _, r := range records {
		b.appendRecord(c, r.Role, r.Content)
	}
	b.chats[id] = c
	return id
}

// Records returns the stored records of a chat.
func (b *Backend) Records(chatID string) []models.ChatRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.chats[chatID]
	if !ok {
		return nil
	}
	out := make([]models.ChatRecord, len(c.records))
	copy(out, c.records)
	return out
}

// HasChat reports whether a chat exists.
func (b *Backend) HasChat(chatID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.chats[chatID]
	return ok
}

// tick advances the fake clock so updated_at values are distinct.
func (b *Backend) tick() time.Time {
	b.clock = b.clock.Add(time.Second)
	return b.clock
}

func (b *Backend) appendRecord(c *chat, role models.Role, content string) {
	b.nextMsgID++
	now := b.tick()
	c.records = append(c.records, models.ChatRecord{
		MsgID:     b.nextMsgID,
		ChatID:    c.ChatID,
		Role:      role,
		Content:   content,
		CreatedAt: models.At(now),
	})
	c.UpdatedAt = models.At(now)
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	status := b.status
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (b *Backend) handleListChats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failChats {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	list := make([]models.Chat, 0, len(b.chats))
	for _, c := range b.chats {
		list = append(list, c.Chat)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt.Time)
	})
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	writeJSON(w, http.StatusOK, list)
}

func (b *Backend) handleMessages(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failChats {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	c, ok := b.chats[r.PathValue("id")]
	if !ok {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}
	records := c.records
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, records)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failChats {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	id := r.PathValue("id")
	if _, ok := b.chats[id]; !ok {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}
	delete(b.chats, id)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func (b *Backend) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	b.mu.Lock()
	b.streamOpen++
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.streamOpen--
		b.mu.Unlock()
	}()

	var req protocol.Request
	if err := conn.ReadJSON(&req); err != nil {
		return
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	turn := Turn{Answer: []string{"ok"}}
	if len(b.turns) > 0 {
		turn = b.turns[0]
		b.turns = b.turns[1:]
	}
	c, known := b.chats[req.ChatID]
	created := false
	if !known {
		id := uuid.NewString()
		now := b.tick()
		c = &chat{Chat: models.Chat{ChatID: id, Title: req.Message, CreatedAt: models.At(now), UpdatedAt: models.At(now)}}
		b.chats[id] = c
		created = true
	}
	b.appendRecord(c, models.RoleUser, req.Message)
	chatID := c.ChatID
	b.mu.Unlock()

	send := func(v any) bool {
		if turn.Gap > 0 {
			time.Sleep(turn.Gap)
		}
		var err error
		if s, ok := v.(string); ok {
			err = conn.WriteMessage(websocket.TextMessage, []byte(s))
		} else {
			err = conn.WriteJSON(v)
		}
		return err == nil
	}

	for _, raw := range turn.Raw {
		if !send(raw) {
			return
		}
	}
	if created && !send(map[string]any{"event": protocol.TagChatCreated, "chat_id": chatID}) {
		return
	}
	for _, st := range turn.Stages {
		if !send(map[string]any{"event": protocol.TagStage, "stage": st}) {
			return
		}
	}
	if len(turn.Think) > 0 {
		if !send(map[string]any{"event": protocol.TagThinkStart}) {
			return
		}
		for _, tok := range turn.Think {
			if !send(map[string]any{"event": protocol.TagThinkToken, "token": tok}) {
				return
			}
		}
		if !send(map[string]any{"event": protocol.TagThinkEnd, "think_ms": turn.ThinkMs}) {
			return
		}
	}
	answer := ""
	for _, tok := range turn.Answer {
		answer += tok
		if !send(map[string]any{"event": protocol.TagAnswerToken, "token": tok}) {
			return
		}
	}

	switch {
	case turn.Error != "":
		send(map[string]any{"event": protocol.TagError, "error": turn.Error})
	case !turn.SkipDone:
		b.persistTurn(chatID, created, req.SessionID, turn, answer)
		send(map[string]any{
			"event":    protocol.TagDone,
			"chat_id":  chatID,
			"think_ms": turn.ThinkMs,
			"total_ms": turn.TotalMs,
		})
	}

	switch {
	case turn.Drop:
		_ = conn.UnderlyingConn().Close()
	case turn.Hold:
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	default:
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
}

// persistTurn stores the turn the way the backend does: reasoning, then
// metadata, then the answer.
func (b *Backend) persistTurn(chatID string, created bool, sessionID string, turn Turn, answer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.chats[chatID]
	if !ok {
		return
	}

	think := ""
	for _, tok := range turn.Think {
		think += tok
	}
	if think != "" {
		b.appendRecord(c, models.RoleAssistantThink, think)
	}
	meta, _ := json.Marshal(map[string]any{
		"think_ms":    turn.ThinkMs,
		"total_ms":    turn.TotalMs,
		"created_new": created,
		"session_id":  sessionID,
	})
	b.appendRecord(c, models.RoleMeta, string(meta))
	b.appendRecord(c, models.RoleAssistant, answer)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
