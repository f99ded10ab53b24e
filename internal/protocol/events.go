// Package protocol defines the chat stream's wire vocabulary.
//
// Inbound frames are JSON objects tagged by an "event" key. Decode turns a
// frame into one of the typed events below; transport-level outcomes are
// represented by Closed and TransportError so that a single dispatch
// function can handle the whole turn lifecycle.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lavandejoey/MobileRAG/internal/models"
)

// Sentinel errors returned by Decode.
var (
	// ErrMalformed indicates a frame that is not a JSON object (heartbeats, noise).
	ErrMalformed = errors.New("malformed frame")

	// ErrUnknownEvent indicates a well-formed frame with an unrecognized tag.
	ErrUnknownEvent = errors.New("unknown event")
)

// Event tags.
const (
	TagChatCreated = "chat_created"
	TagStage       = "stage"
	TagThinkStart  = "think_start"
	TagThinkToken  = "think_token"
	TagThinkEnd    = "think_end"
	TagAnswerToken = "answer_token"
	TagDone        = "done"
	TagError       = "error"
)

// Event is a decoded stream event.
type Event interface {
	Tag() string
}

// ChatCreated announces the id of a chat created for this turn.
type ChatCreated struct {
	ChatID string
}

// Stage reports backend progress ("retrieval", "generation").
type Stage struct {
	Stage string
}

// ThinkStart opens the reasoning phase.
type ThinkStart struct{}

// ThinkToken carries a fragment of reasoning text.
type ThinkToken struct {
	Token string
}

// ThinkEnd closes the reasoning phase.
type ThinkEnd struct {
	ThinkMs int64
}

// AnswerToken carries a fragment of answer text.
type AnswerToken struct {
	Token string
}

// Done marks explicit completion of the turn.
type Done struct {
	ChatID  string
	ThinkMs int64
	TotalMs int64
}

// Error is a protocol-level failure reported by the backend.
type Error struct {
	Message string
}

// Closed is an ordinary transport closure.
type Closed struct{}

// TransportError is a connect, send or receive failure.
type TransportError struct {
	Err error
}

func (ChatCreated) Tag() string    { return TagChatCreated }
func (Stage) Tag() string          { return TagStage }
func (ThinkStart) Tag() string     { return TagThinkStart }
func (ThinkToken) Tag() string     { return TagThinkToken }
func (ThinkEnd) Tag() string       { return TagThinkEnd }
func (AnswerToken) Tag() string    { return TagAnswerToken }
func (Done) Tag() string           { return TagDone }
func (Error) Tag() string          { return TagError }
func (Closed) Tag() string         { return "closed" }
func (TransportError) Tag() string { return "transport_error" }

// Detail returns the error text, defaulting to "unknown".
func (e Error) Detail() string {
	if strings.TrimSpace(e.Message) == "" {
		return "unknown"
	}
	return e.Message
}

// frame is the union of all inbound payload fields.
type frame struct {
	Event   string          `json:"event"`
	ChatID  string          `json:"chat_id"`
	Stage   string          `json:"stage"`
	Token   json.RawMessage `json:"token"`
	ThinkMs json.RawMessage `json:"think_ms"`
	TotalMs json.RawMessage `json:"total_ms"`
	Error   json.RawMessage `json:"error"`
}

// Decode parses one inbound frame.
func Decode(data []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Event {
	case TagChatCreated:
		return ChatCreated{ChatID: f.ChatID}, nil
	case TagStage:
		return Stage{Stage: f.Stage}, nil
	case TagThinkStart:
		return ThinkStart{}, nil
	case TagThinkToken:
		return ThinkToken{Token: text(f.Token)}, nil
	case TagThinkEnd:
		return ThinkEnd{ThinkMs: millis(f.ThinkMs)}, nil
	case TagAnswerToken:
		return AnswerToken{Token: text(f.Token)}, nil
	case TagDone:
		return Done{ChatID: f.ChatID, ThinkMs: millis(f.ThinkMs), TotalMs: millis(f.TotalMs)}, nil
	case TagError:
		return Error{Message: text(f.Error)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
}

// text reads a string field leniently; non-string values are rendered as JSON.
func text(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// millis reads a numeric field leniently, clamping to a non-negative integer.
func millis(raw json.RawMessage) int64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out-of-range literals parse as ±Inf with ErrRange.
		if !errors.Is(err, strconv.ErrRange) {
			return 0
		}
	}
	return models.Millis(f)
}
