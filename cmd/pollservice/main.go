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
	"github.com/everypoll/everypoll/internal/core/domain"
	"github.com/everypoll/everypoll/internal/core/services"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "poll-service").Logger()
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

	pollRepo := postgres.NewPollRepository(db)
	replicaRepo := postgres.NewUserReplicaRepository(db)
	pollService := services.NewPollService(pollRepo, replicaRepo, publisher, log)

	consumer := kafka.NewConsumer(
		cfg.KafkaBrokers,
		"poll-service-group",
		[]string{kafka.VoteEventsTopic, kafka.UserEventsTopic},
		redis.NewCache(redisClient),
		log,
	)
	consumer.Handle(domain.FactVoteCreated, func(ctx context.Context, fact domain.Fact) error {
		return pollService.HandleVoteCreated(ctx, fact.PollID, fact.OptionID)
	})
	consumer.Handle(domain.FactVoteCancelled, func(ctx context.Context, fact domain.Fact) error {
		return pollService.HandleVoteCancelled(ctx, fact.PollID, fact.OptionID)
	})
	consumer.Handle(domain.FactUserCreated, func(ctx context.Context, fact domain.Fact) error {
		return pollService.HandleUserCreated(ctx, fact.UserID, fact.Username)
	})
	consumer.Handle(domain.FactUserDeleted, func(ctx context.Context, fact domain.Fact) error {
		return pollService.HandleUserDeleted(ctx, fact.UserID)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("fact consumer stopped")
		}
	}()

	pollHandler := http.NewPollHandler(pollService)
	server := &stdhttp.Server{
		Addr:    cfg.HTTPAddr,
		Handler: http.NewPollServiceHandler(pollHandler, []byte(cfg.JWTSecret)),
	}

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
