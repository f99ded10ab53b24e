package protocol

// Request is the single outbound message sent after the handshake.
// ChatID is omitted when starting a new chat.
type Request struct {
	SessionID string `json:"session_id"`
	ChatID    string `json:"chat_id,omitempty"`
	Message   string `json:"message"`
}
