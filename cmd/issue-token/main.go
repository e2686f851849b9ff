package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// issue-token mints a bearer token for an existing user so the API can be
// exercised without the identity service.
func main() {
	var userID int
	flag.IntVar(&userID, "user", 0, "ID of the user to issue a token for")
	flag.Parse()

	if userID <= 0 {
		fmt.Fprintln(os.Stderr, "Usage: issue-token -user <id>")
		os.Exit(2)
	}

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Look Up User ──────────────────────────────────────────────────
	user, err := repository.NewUserRepository(pool).GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Fatal().Int("user_id", userID).Msg("User not found")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load user")
	}

	// ─── Issue Token ───────────────────────────────────────────────────
	token, err := service.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry).GenerateToken(user.ID, user.Role)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	log.Info().Int("user_id", user.ID).Str("role", string(user.Role)).Dur("expires_in", cfg.JWTExpiry).Msg("Token issued")
	fmt.Println(token)
}
