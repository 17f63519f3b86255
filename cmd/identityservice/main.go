package main

import (
	"context"
	"database/sql"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/everypoll/everypoll/internal/adapters/cache/redis"
	"github.com/everypoll/everypoll/internal/adapters/events/kafka"
	"github.com/everypoll/everypoll/internal/adapters/handler/http"
	"github.com/everypoll/everypoll/internal/adapters/repository/postgres"
	"github.com/everypoll/everypoll/internal/config"
	"github.com/everypoll/everypoll/internal/core/services"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "identity-service").Logger()
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("opening database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("pinging database")
	}

	redisClient, err := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to redis")
	}
	defer redisClient.Close()

	publisher := kafka.NewPublisher(cfg.KafkaBrokers, log)
	defer publisher.Close()

	userRepo := postgres.NewUserRepository(db)
	tokenStore := redis.NewRefreshTokenStore(redisClient)
	identityService := services.NewIdentityService(userRepo, tokenStore, publisher, []byte(cfg.JWTSecret), log)

	authHandler := http.NewAuthHandler(identityService)
	server := &stdhttp.Server{
		Addr:    cfg.HTTPAddr,
		Handler: http.NewIdentityServiceHandler(authHandler, []byte(cfg.JWTSecret)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("gracefully shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("shutdown")
	}
}
