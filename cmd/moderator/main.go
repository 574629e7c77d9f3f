package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anoncity/chat-app/internal/config"
	"github.com/anoncity/chat-app/internal/messaging"
	"github.com/anoncity/chat-app/internal/store"
)

// escalateThreshold is the number of reports against one user within
// reportWindow that triggers an escalation log line.
const (
	escalateThreshold = 3
	reportWindow      = 24 * time.Hour
)

func main() {
	log.Println("Starting CityChat moderation service...")

	cfg := config.Load()

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}

	natsConfig := messaging.DefaultConfig()
	if cfg.NATSURL != "" {
		natsConfig.URL = cfg.NATSURL
	}
	natsConfig.Name = "citychat-moderator"

	natsClient, err := messaging.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("failed to connect to NATS: %v", err)
	}

	// Blocked messages are logged for review; the text never reached the
	// recipient.
	_, err = natsClient.SubscribeContentBlocked(func(ev messaging.ContentBlockedEvent) {
		log.Printf("[moderator] BLOCKED user=%s chat=%s group=%s text=%q",
			ev.UserID, ev.ChatID, ev.AgeGroup, ev.Text)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to blocked events: %v", err)
	}

	// Reports escalate when one user accumulates several within a day.
	_, err = natsClient.SubscribeReportFiled(func(ev messaging.ReportFiledEvent) {
		log.Printf("[moderator] REPORT id=%s reporter=%s reported=%s reason=%q",
			ev.ReportID, ev.ReporterID, ev.ReportedID, ev.Reason)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := db.CountRecentReports(ctx, ev.ReportedID, reportWindow)
		if err != nil {
			log.Printf("[moderator] count reports for %s: %v", ev.ReportedID, err)
			return
		}
		if n >= escalateThreshold {
			log.Printf("[moderator] ESCALATE user=%s reports_24h=%d", ev.ReportedID, n)
		}
	})
	if err != nil {
		log.Fatalf("failed to subscribe to report events: %v", err)
	}

	log.Printf("CityChat moderation service running")
	log.Printf("  nats_url: %s", natsConfig.URL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	natsClient.Close()
	if err := db.Close(); err != nil {
		log.Printf("store close error: %v", err)
	}
}
