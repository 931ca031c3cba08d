package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qrollcall/internal/config"
	"qrollcall/internal/mailer"
	"qrollcall/internal/queue"
	"qrollcall/internal/session"
	"qrollcall/internal/store"
)

// Worker delivers queued notifications and runs the cleanup sweep on a
// timer.
func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrollcall:notifications")
	}

	mail := mailer.New(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom, cfg.MailSkip)
	sessions := session.NewService(session.NewRepository(db.Client), cfg.SessionDuration, cfg.QRWindow, cfg.CleanupMaxAgeDays, logger)

	// Periodic sweep alongside message consumption. The sweep is idempotent
	// so overlapping manual sweeps through the API are harmless.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if res, err := sessions.Sweep(ctx, session.CleanupAll, cfg.CleanupMaxAgeDays); err != nil {
					logger.Error("sweep failed", slog.String("error", err.Error()))
				} else if res.Total > 0 {
					logger.Info("sweep removed records", slog.Int64("total", res.Total))
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != mailer.JobType {
			continue
		}

		job, err := mailer.DecodeJob(msg)
		if err != nil {
			logger.Error("drop malformed job", slog.String("error", err.Error()))
			continue
		}

		if err := mail.Send(ctx, job.To, job.Subject, job.Body); err != nil {
			// Best-effort: log and move on, never retry into a mail storm.
			logger.Error("notification delivery failed",
				slog.String("to", job.To),
				slog.String("error", err.Error()),
			)
			continue
		}
		logger.Info("notification delivered", slog.String("to", job.To))
	}

	log.Println("worker stopped")
}
