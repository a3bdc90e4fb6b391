package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ShipRelay/config"
	"github.com/BearBump/ShipRelay/internal/broker/kafka"
	"github.com/BearBump/ShipRelay/internal/cache/rediscache"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership/fake"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership/httpclient"
	"github.com/BearBump/ShipRelay/internal/services/extlog"
	"github.com/BearBump/ShipRelay/internal/services/poll"
	"github.com/BearBump/ShipRelay/internal/services/reconcile"
	"github.com/BearBump/ShipRelay/internal/services/retryloop"
	"github.com/BearBump/ShipRelay/internal/status"
	"github.com/BearBump/ShipRelay/internal/storage/pgstore"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("load config: %v", err))
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	st, err := pgstore.New(cfg.Database.ConnString())
	if err != nil {
		panic(err)
	}
	defer st.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers())
	defer func() { _ = producer.Close() }()

	var carrier aftership.Client
	if cfg.AfterShip.UseFake {
		carrier = fake.New()
	} else {
		carrier = httpclient.New(cfg.AfterShip.BaseURL, cfg.AfterShip.APIKey)
	}

	audit := extlog.New(producer.Topic(cfg.Kafka.ExternalLogTopic), log)

	rec := reconcile.New(st,
		producer.Topic(cfg.Kafka.TrackDeliveryResponseTopic),
		producer.Topic(cfg.Kafka.FulfillmentTrackResponseTopic),
		status.NewSuppressionList(cfg.AfterShip.ExceptionSubStatus),
		cfg.AfterShip.Platform, log)

	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())

	poller := poll.New(st, carrier, rec, rl, audit, log, poll.Config{
		Interval:                time.Duration(cfg.Scheduler.PollIntervalMinutes) * time.Minute,
		FetchTrackingBeforeDays: cfg.Scheduler.FetchTrackingBeforeDays,
		ExcludeStatuses:         cfg.AfterShip.ExcludeStatus,
		RatePerMinute:           cfg.AfterShip.RateLimitPerMinute,
	})

	retry := retryloop.New(st, producer.Topic(cfg.Kafka.RetryRequestTopic), log,
		time.Duration(cfg.Scheduler.RetryIntervalMinutes)*time.Minute,
		int32(cfg.Scheduler.MaxRetryCount))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = runScheduler(ctx, schedulerOpts{httpAddr: cfg.Scheduler.HTTPAddr}, poller, retry)
	if err != nil && err != context.Canceled {
		panic(err)
	}
}
