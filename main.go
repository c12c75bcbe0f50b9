package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imontero/voznote/internal/capture"
	"github.com/imontero/voznote/internal/config"
	"github.com/imontero/voznote/internal/database"
	"github.com/imontero/voznote/internal/inference"
	"github.com/imontero/voznote/internal/notify"
	"github.com/imontero/voznote/internal/scheduler"
	"github.com/imontero/voznote/internal/store"
	"github.com/imontero/voznote/internal/twilio"
	"github.com/imontero/voznote/internal/webhook"
)

func main() {
	logger := log.New(os.Stdout, "[voznote] ", log.LstdFlags|log.Lshortfile)
	cfg := config.Load()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}

	entryStore := store.Open(db, logger)
	aiClient := inference.New(cfg.OpenAIAPIKey)
	twilioClient := twilio.New(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber)
	notifier := notify.New(twilioClient, cfg.NotifyWhatsAppNumber, logger)
	forwarder := webhook.New(cfg.WebhookURL, cfg.TargetEmail, logger)

	flow := capture.New(entryStore, aiClient, forwarder, logger)

	sched := scheduler.New(entryStore, notifier, cfg.PollInterval, cfg.LocalTimezone, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: flow.Handler(),
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(server, sched, logger)
}

func waitForShutdown(server *http.Server, sched *scheduler.Scheduler, logger *log.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	sched.Stop()
}
