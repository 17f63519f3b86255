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
	"github.com/everypoll/everypoll/internal/core/ports"
	"github.com/everypoll/everypoll/internal/core/services"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Str("service", "vote-service").Logger()
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

	cache := redis.NewCache(redisClient)
	lock := redis.NewVoterLock(redisClient, redis.DefaultLockTTL)

	publisher := kafka.NewPublisher(cfg.KafkaBrokers, log)
	defer publisher.Close()

	ledger := postgres.NewVoteRepository(db)
	aggregation := services.NewAggregationService(ledger, cache, log)
	voteService := services.NewVoteService(ledger, cache, lock, aggregation, publisher, log)

	consumer := kafka.NewConsumer(
		cfg.KafkaBrokers,
		"vote-service-group",
		[]string{kafka.PollEventsTopic, kafka.UserEventsTopic},
		cache,
		log,
	)
	consumer.Handle(domain.FactPollDeleted, func(ctx context.Context, fact domain.Fact) error {
		return voteService.HandlePollDeleted(ctx, fact.PollID)
	})
	consumer.Handle(domain.FactUserDeleted, func(ctx context.Context, fact domain.Fact) error {
		return voteService.HandleUserDeleted(ctx, fact.UserID)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("fact consumer stopped")
		}
	}()

	runServer(ctx, cfg.HTTPAddr, buildHandler(voteService, aggregation), log)
}

func buildHandler(voteService ports.VoteService, aggregation ports.AggregationService) stdhttp.Handler {
	voteHandler := http.NewVoteHandler(voteService, aggregation)
	return http.NewVoteServiceHandler(voteHandler)
}

func runServer(ctx context.Context, addr string, handler stdhttp.Handler, log zerolog.Logger) {
	server := &stdhttp.Server{Addr: addr, Handler: handler}

	go func() {
		log.Info().Str("addr", addr).Msg("listening")
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
