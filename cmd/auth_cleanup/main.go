package main

import (
	"context"
	"log"
	"os"
	"time"

	"assesshub/internal/database"
	"assesshub/internal/repository"

	"github.com/joho/godotenv"
)

// Periodic sweep of expired sessions, rotated-out refresh tokens, dead
// invitations and stale reset tokens. Run it from cron; one pass per
// invocation.
func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	retention := 30 * 24 * time.Hour
	if v := os.Getenv("CLEANUP_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid CLEANUP_RETENTION: %v", err)
		}
		retention = d
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	ctx := context.Background()

	sessions, err := repository.NewSessionRepository(db).DeleteExpired(ctx)
	if err != nil {
		log.Fatalf("cleanup sessions failed: %v", err)
	}

	refreshTokens, err := repository.NewRefreshTokenRepository(db).DeleteExpired(ctx, retention)
	if err != nil {
		log.Fatalf("cleanup refresh_tokens failed: %v", err)
	}

	invitations, err := repository.NewInvitationRepository(db).DeleteExpired(ctx, retention)
	if err != nil {
		log.Fatalf("cleanup invitations failed: %v", err)
	}

	resetTokens, err := repository.NewPasswordResetRepository(db).DeleteExpired(ctx, retention)
	if err != nil {
		log.Fatalf("cleanup password_reset_tokens failed: %v", err)
	}

	log.Printf("auth cleanup completed: sessions=%d refresh_tokens=%d invitations=%d reset_tokens=%d",
		sessions, refreshTokens, invitations, resetTokens)
}
