package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/emberday/internal/backup"
	"github.com/dukerupert/emberday/internal/database"
	"github.com/dukerupert/emberday/internal/logging"
	"github.com/dukerupert/emberday/internal/server"
)

// penalizeBadHabits maps EMBERDAY_BAD_HABIT_XP to the ledger sign for
// bad-habit completions. "penalize" writes negative events; anything else
// keeps the default reward behavior.
func penalizeBadHabits(mode string) bool {
	return strings.EqualFold(strings.TrimSpace(mode), "penalize")
}

func main() {
	// Missing .env is fine; environment variables win either way.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("EMBERDAY_LOG_LEVEL"), os.Getenv("EMBERDAY_LOG_FORMAT"))

	port := os.Getenv("EMBERDAY_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("EMBERDAY_DB_PATH")
	if dbPath == "" {
		dbPath = "emberday.db"
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	loc := time.UTC
	if tz := os.Getenv("EMBERDAY_TIMEZONE"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			logger.Error("load timezone", "tz", tz, "error", err)
			os.Exit(1)
		}
		loc = l
	}

	cfg := server.Config{
		Location:          loc,
		PenalizeBadHabits: penalizeBadHabits(os.Getenv("EMBERDAY_BAD_HABIT_XP")),
		VAPIDPublicKey:    os.Getenv("EMBERDAY_VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey:   os.Getenv("EMBERDAY_VAPID_PRIVATE_KEY"),
		Backup: backup.Config{
			S3: backup.S3Config{
				Endpoint:  os.Getenv("EMBERDAY_S3_ENDPOINT"),
				Bucket:    os.Getenv("EMBERDAY_S3_BUCKET"),
				Region:    os.Getenv("EMBERDAY_S3_REGION"),
				AccessKey: os.Getenv("EMBERDAY_S3_ACCESS_KEY"),
				SecretKey: os.Getenv("EMBERDAY_S3_SECRET_KEY"),
			},
			DBPath:     dbPath,
			Passphrase: os.Getenv("EMBERDAY_BACKUP_PASSPHRASE"),
			Hour:       3,
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background loops: session expiry, rate limiter pruning, reminders,
	// scheduled backups.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
		defer sched.Stop()
	}
	if mgr := srv.BackupManager(); mgr.Enabled() {
		mgr.Start(ctx)
		defer mgr.Stop()
	}

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Emberday running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
