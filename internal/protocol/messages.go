// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeRegister    = "register"
	TypeFindMatch   = "find_match"
	TypeSendMessage = "send_message"
	TypeEndChat     = "end_chat"
	TypeBlockUser   = "block_user"
	TypeReportUser  = "report_user"
	TypePing        = "ping"
)

// Server -> Client message types.
const (
	TypeRegistered  = "registered"
	TypeMatchStatus = "match_status"
	TypeMatchFound  = "match_found"
	TypeMessage     = "message"
	TypeChatEnded   = "chat_ended"
	TypeAck         = "ack"
	TypeError       = "error"
	TypePong        = "pong"
)

// Match statuses carried by MatchStatusMsg.
const (
	StatusWaiting = "waiting"
	StatusMatched = "matched"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// RegisterMsg creates or refreshes the caller's user record and binds the
// connection to that identity. UserID is optional: a well-formed id from a
// previous visit is reused, anything else gets a freshly generated one.
type RegisterMsg struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	City   string `json:"city"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// FindMatchMsg asks the server to persist a match request and attempt a
// match immediately. MinAge and MaxAge are optional; absent values default
// to the caller's age-group bounds.
type FindMatchMsg struct {
	Type            string `json:"type"`
	MinAge          *int   `json:"min_age"`
	MaxAge          *int   `json:"max_age"`
	PreferredGender string `json:"preferred_gender"`
}

// SendMessageMsg is a text message sent by the client within a chat.
type SendMessageMsg struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// EndChatMsg is sent by the client to end a chat.
type EndChatMsg struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

// BlockUserMsg records a block against another user, suppressing future
// matches in both directions.
type BlockUserMsg struct {
	Type      string `json:"type"`
	BlockedID string `json:"blocked_id"`
}

// ReportUserMsg files an abuse report against another user. ChatID and
// Reason are optional.
type ReportUserMsg struct {
	Type       string `json:"type"`
	ReportedID string `json:"reported_id"`
	ChatID     string `json:"chat_id"`
	Reason     string `json:"reason"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// RegisteredMsg acknowledges a successful registration, carrying the
// effective user id and the derived age group.
type RegisteredMsg struct {
	Type     string `json:"type"`
	OK       bool   `json:"ok"`
	UserID   string `json:"user_id"`
	AgeGroup string `json:"age_group"`
}

// MatchStatusMsg acknowledges a find_match request. Status is "waiting" when
// no compatible partner was found, "matched" (with ChatID set) otherwise.
type MatchStatusMsg struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Status string `json:"status"`
	ChatID string `json:"chat_id,omitempty"`
}

// MatchFoundMsg is pushed to both participants when a match is formed.
type MatchFoundMsg struct {
	Type      string `json:"type"`
	ChatID    string `json:"chat_id"`
	PartnerID string `json:"partner_id"`
}

// ServerMessageMsg is a chat message broadcast to both participants after it
// has been persisted.
type ServerMessageMsg struct {
	Type      string `json:"type"`
	ChatID    string `json:"chat_id"`
	SenderID  string `json:"sender_id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// ChatEndedMsg is pushed to both participants when a chat is ended.
type ChatEndedMsg struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

// AckMsg is the generic success acknowledgment for send_message, end_chat,
// block_user and report_user.
type AckMsg struct {
	Type string `json:"type"`
	OK   bool   `json:"ok"`
}

// ErrorMsg is sent by the server to communicate an error condition. OK is
// always false so clients can branch on a single field.
type ErrorMsg struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeRegister:
		var m RegisterMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeFindMatch:
		var m FindMatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeSendMessage:
		var m SendMessageMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeEndChat:
		var m EndChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeBlockUser:
		var m BlockUserMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeReportUser:
		var m ReportUserMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
