package protocol

import (
	"encoding/json"
	"testing"
)

// ---------------------------------------------------------------------------
// Test: Parsing a valid register message
// ---------------------------------------------------------------------------

func TestParseClientMessage_Register(t *testing.T) {
	input := []byte(`{"type":"register","user_id":"abc-123-def-456","city":"Lagos","age":16,"gender":"female"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeRegister {
		t.Fatalf("expected type %q, got %q", TypeRegister, msgType)
	}

	rm, ok := msg.(RegisterMsg)
	if !ok {
		t.Fatalf("expected RegisterMsg, got %T", msg)
	}
	if rm.City != "Lagos" {
		t.Errorf("expected city %q, got %q", "Lagos", rm.City)
	}
	if rm.Age != 16 {
		t.Errorf("expected age 16, got %d", rm.Age)
	}
	if rm.Gender != "female" {
		t.Errorf("expected gender %q, got %q", "female", rm.Gender)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a find_match message with and without bounds
// ---------------------------------------------------------------------------

func TestParseClientMessage_FindMatch(t *testing.T) {
	input := []byte(`{"type":"find_match","min_age":18,"max_age":25,"preferred_gender":"any"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeFindMatch {
		t.Fatalf("expected type %q, got %q", TypeFindMatch, msgType)
	}

	fm, ok := msg.(FindMatchMsg)
	if !ok {
		t.Fatalf("expected FindMatchMsg, got %T", msg)
	}
	if fm.MinAge == nil || *fm.MinAge != 18 {
		t.Errorf("expected min_age 18, got %v", fm.MinAge)
	}
	if fm.MaxAge == nil || *fm.MaxAge != 25 {
		t.Errorf("expected max_age 25, got %v", fm.MaxAge)
	}
	if fm.PreferredGender != "any" {
		t.Errorf("expected preferred_gender %q, got %q", "any", fm.PreferredGender)
	}
}

func TestParseClientMessage_FindMatchDefaults(t *testing.T) {
	input := []byte(`{"type":"find_match"}`)

	_, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fm := msg.(FindMatchMsg)
	if fm.MinAge != nil {
		t.Errorf("expected min_age nil, got %v", *fm.MinAge)
	}
	if fm.MaxAge != nil {
		t.Errorf("expected max_age nil, got %v", *fm.MaxAge)
	}
}

// ---------------------------------------------------------------------------
// Test: Parsing a valid send_message message
// ---------------------------------------------------------------------------

func TestParseClientMessage_SendMessage(t *testing.T) {
	input := []byte(`{"type":"send_message","chat_id":"abc-123","text":"Hello!"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msgType != TypeSendMessage {
		t.Fatalf("expected type %q, got %q", TypeSendMessage, msgType)
	}

	sm, ok := msg.(SendMessageMsg)
	if !ok {
		t.Fatalf("expected SendMessageMsg, got %T", msg)
	}
	if sm.ChatID != "abc-123" {
		t.Errorf("expected chat_id %q, got %q", "abc-123", sm.ChatID)
	}
	if sm.Text != "Hello!" {
		t.Errorf("expected text %q, got %q", "Hello!", sm.Text)
	}
}

// ---------------------------------------------------------------------------
// Test: Error cases
// ---------------------------------------------------------------------------

func TestParseClientMessage_UnknownType(t *testing.T) {
	input := []byte(`{"type":"launch_rocket"}`)

	msgType, msg, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for unknown type, got nil")
	}
	if msgType != "launch_rocket" {
		t.Errorf("expected type passthrough %q, got %q", "launch_rocket", msgType)
	}
	if msg != nil {
		t.Errorf("expected nil msg, got %v", msg)
	}
}

func TestParseClientMessage_MissingType(t *testing.T) {
	input := []byte(`{"chat_id":"abc"}`)

	_, _, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for missing type, got nil")
	}
}

func TestParseClientMessage_InvalidJSON(t *testing.T) {
	input := []byte(`{"type":"register"`)

	_, _, err := ParseClientMessage(input)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

// ---------------------------------------------------------------------------
// Test: Server message construction
// ---------------------------------------------------------------------------

func TestNewServerMessage_MatchFound(t *testing.T) {
	payload := MatchFoundMsg{
		ChatID:    "uuid-456",
		PartnerID: "user-789",
	}

	data, err := NewServerMessage(TypeMatchFound, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypeMatchFound {
		t.Errorf("expected type %q, got %v", TypeMatchFound, decoded["type"])
	}
	if decoded["chat_id"] != "uuid-456" {
		t.Errorf("expected chat_id %q, got %v", "uuid-456", decoded["chat_id"])
	}
	if decoded["partner_id"] != "user-789" {
		t.Errorf("expected partner_id %q, got %v", "user-789", decoded["partner_id"])
	}
}

func TestNewServerMessage_ErrorCarriesOKFalse(t *testing.T) {
	data, err := NewServerMessage(TypeError, ErrorMsg{
		Code:    "rate_limited",
		Message: "You are sending too fast.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["ok"] != false {
		t.Errorf("expected ok=false, got %v", decoded["ok"])
	}
	if decoded["code"] != "rate_limited" {
		t.Errorf("expected code %q, got %v", "rate_limited", decoded["code"])
	}
}

func TestNewServerMessage_TypeOverridesPayloadType(t *testing.T) {
	// Even if the payload struct carries a stale Type, the constructor wins.
	data, err := NewServerMessage(TypePong, PongMsg{Type: "stale"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["type"] != TypePong {
		t.Errorf("expected type %q, got %v", TypePong, decoded["type"])
	}
}
