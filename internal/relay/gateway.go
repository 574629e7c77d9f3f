// Package relay implements the application layer of the chat service. It
// receives parsed client messages from the WebSocket dispatcher, applies
// rate limits and safety filtering, drives the matchmaker and the store,
// and pushes events to chat participants.
package relay

import (
	"context"
	"log"
	"time"

	"github.com/anoncity/chat-app/internal/matching"
	"github.com/anoncity/chat-app/internal/messaging"
	"github.com/anoncity/chat-app/internal/protocol"
	"github.com/anoncity/chat-app/internal/ratelimit"
	"github.com/anoncity/chat-app/internal/session"
	"github.com/anoncity/chat-app/internal/store"
	"github.com/anoncity/chat-app/internal/ws"
)

// Error codes sent to clients.
const (
	codeNotRegistered     = "not_registered"
	codeAgeTooLow         = "age_too_low"
	codeInvalidCity       = "invalid_city"
	codeInvalidGender     = "invalid_gender"
	codeInvalidRange      = "invalid_range"
	codeEmptyMessage      = "empty_message"
	codeChatNotFound      = "chat_not_found"
	codeNotYourChat       = "not_your_chat"
	codeRateLimited       = "rate_limited"
	codeContentBlocked    = "content_blocked"
	codeMissingBlockedID  = "missing_blocked_id"
	codeMissingReportedID = "missing_reported_id"
	codeInternalError     = "internal_error"
)

// storeTimeout bounds each store round-trip triggered by a client message.
const storeTimeout = 5 * time.Second

// Sender delivers an outbound frame to a connection. An error means the
// connection is gone; delivery is best-effort and never retried.
type Sender func(connID string, data []byte) error

// Store is the persistence surface the gateway needs.
type Store interface {
	UpsertUser(ctx context.Context, u *store.User) error
	GetUser(ctx context.Context, id string) (*store.User, error)
	TouchLastActive(ctx context.Context, id string) error
	ReplaceMatchRequest(ctx context.Context, r *store.MatchRequest) error
	GetActiveChat(ctx context.Context, chatID string) (*store.Chat, error)
	EndChat(ctx context.Context, chatID, userID string) (*store.Chat, error)
	InsertMessage(ctx context.Context, m *store.Message) error
	InsertBlock(ctx context.Context, blockerID, blockedID string) error
	InsertReport(ctx context.Context, r *store.Report) error
}

// Matcher attempts to pair the given user with a waiting candidate.
type Matcher interface {
	TryMatchFor(ctx context.Context, userID string) (*matching.Match, error)
}

// Publisher emits moderation-review events. May be nil when messaging is
// not configured; all publishes are best-effort.
type Publisher interface {
	PublishContentBlocked(ev messaging.ContentBlockedEvent) error
	PublishReportFiled(ev messaging.ReportFiledEvent) error
}

// Gateway wires the transport to the domain: one instance serves all
// connections.
type Gateway struct {
	store     Store
	matcher   Matcher
	registry  *session.Registry
	limiter   *ratelimit.Limiter
	publisher Publisher
	send      Sender
}

// NewGateway builds a Gateway. publisher may be nil.
func NewGateway(s Store, m Matcher, reg *session.Registry, lim *ratelimit.Limiter, pub Publisher, send Sender) *Gateway {
	return &Gateway{
		store:     s,
		matcher:   m,
		registry:  reg,
		limiter:   lim,
		publisher: pub,
		send:      send,
	}
}

// Bind registers all gateway handlers on the dispatcher.
func (g *Gateway) Bind(d *ws.MessageDispatcher) {
	d.Register(protocol.TypeRegister, func(c *ws.Connection, msg interface{}) {
		g.HandleRegister(c.ID, msg.(protocol.RegisterMsg))
	})
	d.Register(protocol.TypeFindMatch, func(c *ws.Connection, msg interface{}) {
		g.HandleFindMatch(c.ID, msg.(protocol.FindMatchMsg))
	})
	d.Register(protocol.TypeSendMessage, func(c *ws.Connection, msg interface{}) {
		g.HandleSendMessage(c.ID, msg.(protocol.SendMessageMsg))
	})
	d.Register(protocol.TypeEndChat, func(c *ws.Connection, msg interface{}) {
		g.HandleEndChat(c.ID, msg.(protocol.EndChatMsg))
	})
	d.Register(protocol.TypeBlockUser, func(c *ws.Connection, msg interface{}) {
		g.HandleBlockUser(c.ID, msg.(protocol.BlockUserMsg))
	})
	d.Register(protocol.TypeReportUser, func(c *ws.Connection, msg interface{}) {
		g.HandleReportUser(c.ID, msg.(protocol.ReportUserMsg))
	})
}

// HandleDisconnect releases per-user state when a connection closes. It is
// wired as the server's OnDisconnect callback.
func (g *Gateway) HandleDisconnect(connID string) {
	userID := g.registry.UserIDFor(connID)
	g.registry.Unbind(connID)
	if userID == "" {
		return
	}

	g.limiter.Forget(userID)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := g.store.TouchLastActive(ctx, userID); err != nil {
		log.Printf("[relay] touch last_active user=%s: %v", userID, err)
	}
}

// sendTo marshals and delivers a server message; failures are logged only.
func (g *Gateway) sendTo(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("[relay] build %s message: %v", msgType, err)
		return
	}
	if err := g.send(connID, data); err != nil {
		log.Printf("[relay] send %s to conn %s: %v", msgType, connID, err)
	}
}

// sendToUser delivers a message to a user's current connection, if any.
func (g *Gateway) sendToUser(userID, msgType string, payload interface{}) {
	connID := g.registry.ConnectionFor(userID)
	if connID == "" {
		return
	}
	g.sendTo(connID, msgType, payload)
}

func (g *Gateway) sendError(connID, code, message string) {
	g.sendTo(connID, protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
}
