package relay

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anoncity/chat-app/internal/matching"
	"github.com/anoncity/chat-app/internal/messaging"
	"github.com/anoncity/chat-app/internal/metrics"
	"github.com/anoncity/chat-app/internal/protocol"
	"github.com/anoncity/chat-app/internal/ratelimit"
	"github.com/anoncity/chat-app/internal/safety"
	"github.com/anoncity/chat-app/internal/store"
)

// Age-range defaults applied when find_match omits bounds.
const (
	teenMinAge  = 15
	teenMaxAge  = 17
	adultMinAge = 18
	adultMaxAge = 99
)

// HandleRegister creates or refreshes the user and binds the connection to
// that identity. A well-formed user id from a previous visit is reused so
// returning users keep their blocks and reports; anything else gets a
// freshly generated id.
func (g *Gateway) HandleRegister(connID string, m protocol.RegisterMsg) {
	ageGroup, ok := store.AgeGroupFor(m.Age)
	if !ok {
		g.sendError(connID, codeAgeTooLow, "Age must be 15+.")
		return
	}

	city := strings.TrimSpace(m.City)
	if len(city) < 2 {
		g.sendError(connID, codeInvalidCity, "City is required.")
		return
	}

	gender := strings.TrimSpace(m.Gender)
	if gender == "" {
		g.sendError(connID, codeInvalidGender, "Gender is required.")
		return
	}

	userID := m.UserID
	if len(userID) <= 10 {
		userID = uuid.New().String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := g.store.UpsertUser(ctx, &store.User{
		ID:       userID,
		City:     city,
		Age:      m.Age,
		AgeGroup: ageGroup,
		Gender:   gender,
	})
	if err != nil {
		log.Printf("[relay] register upsert user=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Register failed.")
		return
	}

	g.registry.Bind(connID, userID)

	g.sendTo(connID, protocol.TypeRegistered, protocol.RegisteredMsg{
		OK:       true,
		UserID:   userID,
		AgeGroup: ageGroup,
	})
}

// HandleFindMatch persists the caller's match request and attempts a match
// immediately. The caller gets match_status; on success both parties also
// get match_found.
func (g *Gateway) HandleFindMatch(connID string, m protocol.FindMatchMsg) {
	userID := g.registry.UserIDFor(connID)
	if userID == "" {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	if !g.limiter.Allow(ratelimit.RuleMatch, userID) {
		g.sendError(connID, codeRateLimited, "Too many match requests. Slow down.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		log.Printf("[relay] find_match get user=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Match failed.")
		return
	}
	if u == nil {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	minAge, maxAge, ok := ageRange(u.AgeGroup, m.MinAge, m.MaxAge)
	if !ok {
		g.sendError(connID, codeInvalidRange, "Invalid age range.")
		return
	}

	preferredGender := strings.TrimSpace(m.PreferredGender)
	if preferredGender == "" {
		preferredGender = "any"
	}

	err = g.store.ReplaceMatchRequest(ctx, &store.MatchRequest{
		ID:              uuid.New().String(),
		UserID:          userID,
		City:            u.City,
		AgeGroup:        u.AgeGroup,
		MinAge:          minAge,
		MaxAge:          maxAge,
		PreferredGender: preferredGender,
	})
	if err != nil {
		log.Printf("[relay] find_match save request user=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Match failed.")
		return
	}

	match, err := g.matcher.TryMatchFor(ctx, userID)
	if err != nil {
		if errors.Is(err, matching.ErrNotRegistered) {
			g.sendError(connID, codeNotRegistered, "User missing.")
			return
		}
		log.Printf("[relay] find_match user=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Match failed.")
		return
	}

	if match == nil {
		g.sendTo(connID, protocol.TypeMatchStatus, protocol.MatchStatusMsg{
			OK:     true,
			Status: protocol.StatusWaiting,
		})
		return
	}

	metrics.MatchesTotal.Inc()

	g.sendTo(connID, protocol.TypeMatchFound, protocol.MatchFoundMsg{
		ChatID:    match.ChatID,
		PartnerID: match.PartnerID,
	})
	g.sendToUser(match.PartnerID, protocol.TypeMatchFound, protocol.MatchFoundMsg{
		ChatID:    match.ChatID,
		PartnerID: userID,
	})
	g.sendTo(connID, protocol.TypeMatchStatus, protocol.MatchStatusMsg{
		OK:     true,
		Status: protocol.StatusMatched,
		ChatID: match.ChatID,
	})
}

// ageRange applies age-group defaults and clamps to the requested bounds.
// The returned bool is false when the clamped range is empty.
func ageRange(ageGroup string, reqMin, reqMax *int) (int, int, bool) {
	minAge, maxAge := adultMinAge, adultMaxAge
	if ageGroup == store.AgeGroupTeen {
		minAge, maxAge = teenMinAge, teenMaxAge
	}
	if reqMin != nil {
		minAge = *reqMin
	}
	if reqMax != nil {
		maxAge = *reqMax
	}

	if ageGroup == store.AgeGroupTeen {
		// Teens can never widen the range beyond 15-17.
		if minAge < teenMinAge {
			minAge = teenMinAge
		}
		if maxAge > teenMaxAge {
			maxAge = teenMaxAge
		}
	} else {
		if minAge < adultMinAge {
			minAge = adultMinAge
		}
		if maxAge < minAge {
			maxAge = minAge
		}
	}

	if minAge > maxAge {
		return 0, 0, false
	}
	return minAge, maxAge, true
}

// HandleSendMessage validates, sanitizes, filters, persists and relays one
// chat message. Blocked content is never stored or forwarded; the sender
// gets an error and the text goes to the moderation stream instead.
func (g *Gateway) HandleSendMessage(connID string, m protocol.SendMessageMsg) {
	userID := g.registry.UserIDFor(connID)
	if userID == "" {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	if !g.limiter.Allow(ratelimit.RuleMessage, userID) {
		metrics.MessagesTotal.WithLabelValues("rejected").Inc()
		g.sendError(connID, codeRateLimited, "You are sending too fast.")
		return
	}

	text := safety.Sanitize(m.Text)
	if text == "" {
		g.sendError(connID, codeEmptyMessage, "Empty message.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	chat, err := g.store.GetActiveChat(ctx, m.ChatID)
	if err != nil {
		log.Printf("[relay] send_message get chat=%s: %v", m.ChatID, err)
		g.sendError(connID, codeInternalError, "Send failed.")
		return
	}
	if chat == nil {
		g.sendError(connID, codeChatNotFound, "Chat not found.")
		return
	}
	if !chat.IsParticipant(userID) {
		g.sendError(connID, codeNotYourChat, "Not your chat.")
		return
	}

	u, err := g.store.GetUser(ctx, userID)
	if err != nil {
		log.Printf("[relay] send_message get user=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Send failed.")
		return
	}
	if u == nil {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	// Matching pairs users within one age group, so the sender's group
	// decides which filter applies to the chat.
	if u.AgeGroup == store.AgeGroupTeen {
		if safety.ViolatesTeenSafety(text) {
			g.blockMessage(connID, userID, m.ChatID, u.AgeGroup, text,
				"Message blocked for safety (no contact info).")
			return
		}
	} else if safety.ViolatesGeneralSafety(text) {
		g.blockMessage(connID, userID, m.ChatID, u.AgeGroup, text,
			"Message blocked (no phone numbers).")
		return
	}

	now := time.Now().UTC()
	err = g.store.InsertMessage(ctx, &store.Message{
		ID:        uuid.New().String(),
		ChatID:    chat.ID,
		SenderID:  userID,
		Text:      text,
		CreatedAt: now,
	})
	if err != nil {
		log.Printf("[relay] send_message insert chat=%s: %v", chat.ID, err)
		g.sendError(connID, codeInternalError, "Send failed.")
		return
	}

	metrics.MessagesTotal.WithLabelValues("delivered").Inc()

	out := protocol.ServerMessageMsg{
		ChatID:    chat.ID,
		SenderID:  userID,
		Text:      text,
		CreatedAt: now.Format(time.RFC3339),
	}
	g.sendTo(connID, protocol.TypeMessage, out)
	g.sendToUser(chat.Partner(userID), protocol.TypeMessage, out)

	g.sendTo(connID, protocol.TypeAck, protocol.AckMsg{OK: true})
}

// blockMessage reports a filtered message to the sender and the moderation
// stream.
func (g *Gateway) blockMessage(connID, userID, chatID, ageGroup, text, reply string) {
	metrics.MessagesTotal.WithLabelValues("blocked").Inc()

	if g.publisher != nil {
		err := g.publisher.PublishContentBlocked(messaging.ContentBlockedEvent{
			UserID:   userID,
			ChatID:   chatID,
			AgeGroup: ageGroup,
			Text:     text,
			Ts:       time.Now().Unix(),
		})
		if err != nil {
			log.Printf("[relay] publish blocked event user=%s: %v", userID, err)
		}
	}

	g.sendError(connID, codeContentBlocked, reply)
}

// HandleEndChat ends the chat for both parties. Ending is idempotent: the
// caller always gets an ack, but chat_ended is broadcast only on the call
// that actually closed the chat.
func (g *Gateway) HandleEndChat(connID string, m protocol.EndChatMsg) {
	userID := g.registry.UserIDFor(connID)
	if userID == "" {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	chat, err := g.store.EndChat(ctx, m.ChatID, userID)
	if err != nil {
		log.Printf("[relay] end_chat chat=%s user=%s: %v", m.ChatID, userID, err)
		g.sendError(connID, codeInternalError, "Failed to end chat.")
		return
	}

	if chat != nil {
		ended := protocol.ChatEndedMsg{ChatID: chat.ID}
		g.sendTo(connID, protocol.TypeChatEnded, ended)
		g.sendToUser(chat.Partner(userID), protocol.TypeChatEnded, ended)
	}

	g.sendTo(connID, protocol.TypeAck, protocol.AckMsg{OK: true})
}

// HandleBlockUser records a block, suppressing future matches between the
// two users in both directions. Blocking is idempotent.
func (g *Gateway) HandleBlockUser(connID string, m protocol.BlockUserMsg) {
	userID := g.registry.UserIDFor(connID)
	if userID == "" {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	if strings.TrimSpace(m.BlockedID) == "" {
		g.sendError(connID, codeMissingBlockedID, "User missing.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := g.store.InsertBlock(ctx, userID, m.BlockedID); err != nil {
		log.Printf("[relay] block_user blocker=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Block failed.")
		return
	}

	g.sendTo(connID, protocol.TypeAck, protocol.AckMsg{OK: true})
}

// HandleReportUser files an abuse report. The reported user is not
// notified.
func (g *Gateway) HandleReportUser(connID string, m protocol.ReportUserMsg) {
	userID := g.registry.UserIDFor(connID)
	if userID == "" {
		g.sendError(connID, codeNotRegistered, "User missing.")
		return
	}

	if strings.TrimSpace(m.ReportedID) == "" {
		g.sendError(connID, codeMissingReportedID, "User missing.")
		return
	}

	reason := safety.Sanitize(m.Reason)
	if reason == "" {
		reason = "No reason"
	}

	var chatID *string
	if m.ChatID != "" {
		chatID = &m.ChatID
	}

	reportID := uuid.New().String()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	err := g.store.InsertReport(ctx, &store.Report{
		ID:         reportID,
		ReporterID: userID,
		ReportedID: m.ReportedID,
		ChatID:     chatID,
		Reason:     reason,
	})
	if err != nil {
		log.Printf("[relay] report_user reporter=%s: %v", userID, err)
		g.sendError(connID, codeInternalError, "Report failed.")
		return
	}

	metrics.ReportsTotal.Inc()

	if g.publisher != nil {
		err := g.publisher.PublishReportFiled(messaging.ReportFiledEvent{
			ReportID:   reportID,
			ReporterID: userID,
			ReportedID: m.ReportedID,
			ChatID:     m.ChatID,
			Reason:     reason,
			Ts:         time.Now().Unix(),
		})
		if err != nil {
			log.Printf("[relay] publish report event reporter=%s: %v", userID, err)
		}
	}

	g.sendTo(connID, protocol.TypeAck, protocol.AckMsg{OK: true})
}
