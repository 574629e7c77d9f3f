// Package messaging provides a NATS client wrapper for publishing
// moderation-review events out of the chat gateway. The gateway publishes;
// the moderator service subscribes and reviews.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for moderation review.
const (
	SubjectContentBlocked = "moderation.blocked"
	SubjectReportFiled    = "moderation.report"
)

// ContentBlockedEvent is published when the safety filter rejects a message.
// The text is included so moderators can review what was blocked; it is
// never echoed back to the sender.
type ContentBlockedEvent struct {
	UserID   string `json:"user_id"`
	ChatID   string `json:"chat_id"`
	AgeGroup string `json:"age_group"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
}

// ReportFiledEvent is published when a user files an abuse report.
type ReportFiledEvent struct {
	ReportID   string `json:"report_id"`
	ReporterID string `json:"reporter_id"`
	ReportedID string `json:"reported_id"`
	ChatID     string `json:"chat_id,omitempty"`
	Reason     string `json:"reason"`
	Ts         int64  `json:"ts"`
}

// Client wraps the NATS connection with helpers for the moderation subjects.
type Client struct {
	conn *nats.Conn
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "anoncity",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("messaging: connect to %s: %w", config.URL, err)
	}
	return &Client{conn: conn}, nil
}

// PublishContentBlocked publishes a blocked-message event for review.
func (c *Client) PublishContentBlocked(ev ContentBlockedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("messaging: marshal blocked event: %w", err)
	}
	return c.conn.Publish(SubjectContentBlocked, data)
}

// PublishReportFiled publishes a report-filed event for review.
func (c *Client) PublishReportFiled(ev ReportFiledEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("messaging: marshal report event: %w", err)
	}
	return c.conn.Publish(SubjectReportFiled, data)
}

// SubscribeContentBlocked delivers blocked-message events to handler.
func (c *Client) SubscribeContentBlocked(handler func(ContentBlockedEvent)) (*nats.Subscription, error) {
	return c.conn.Subscribe(SubjectContentBlocked, func(msg *nats.Msg) {
		var ev ContentBlockedEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("[nats] invalid blocked event: %v", err)
			return
		}
		handler(ev)
	})
}

// SubscribeReportFiled delivers report-filed events to handler.
func (c *Client) SubscribeReportFiled(handler func(ReportFiledEvent)) (*nats.Subscription, error) {
	return c.conn.Subscribe(SubjectReportFiled, func(msg *nats.Msg) {
		var ev ReportFiledEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			log.Printf("[nats] invalid report event: %v", err)
			return
		}
		handler(ev)
	})
}

// Close drains and closes the NATS connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Drain(); err != nil {
			c.conn.Close()
		}
	}
}
