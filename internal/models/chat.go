// Package models defines the persisted chat data exchanged with the storage backend.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Role tags a persisted chat record.
type Role string

// Record roles written by the backend.
const (
	RoleUser           Role = "user"
	RoleAssistant      Role = "assistant"
	RoleAssistantThink Role = "assistant_think"
	RoleMeta           Role = "meta"
)

// Valid reports whether r is one of the known record roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleAssistantThink, RoleMeta:
		return true
	}
	return false
}

// Chat is the mutable metadata of a conversation.
type Chat struct {
	ChatID    string    `json:"chat_id"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// ShortID returns the first eight characters of the chat id.
func (c Chat) ShortID() string {
	if len(c.ChatID) <= 8 {
		return c.ChatID
	}
	return c.ChatID[:8]
}

// DisplayTitle returns the title or a placeholder when it is empty.
func (c Chat) DisplayTitle() string {
	if c.Title == "" {
		return "(no title)"
	}
	return c.Title
}

// ChatRecord is one append-only entry of a chat log.
type ChatRecord struct {
	MsgID     int64     `json:"msg_id,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt Timestamp `json:"created_at"`
}

// Timestamp decodes the backend's epoch-seconds floats as well as RFC 3339 strings.
type Timestamp struct {
	time.Time
}

// At wraps t as a Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		if s == "" {
			ts.Time = time.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		ts.Time = t
		return nil
	}

	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	if secs <= 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		ts.Time = time.Time{}
		return nil
	}
	whole, frac := math.Modf(secs)
	ts.Time = time.Unix(int64(whole), int64(frac*1e9))
	return nil
}

// MarshalJSON encodes the timestamp as epoch seconds, matching the backend.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("0"), nil
	}
	secs := float64(ts.UnixNano()) / 1e9
	return json.Marshal(secs)
}
