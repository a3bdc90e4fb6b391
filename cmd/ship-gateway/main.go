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
	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership/fake"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership/httpclient"
	"github.com/BearBump/ShipRelay/internal/resilience"
	"github.com/BearBump/ShipRelay/internal/services/extlog"
	"github.com/BearBump/ShipRelay/internal/services/reconcile"
	"github.com/BearBump/ShipRelay/internal/services/registration"
	"github.com/BearBump/ShipRelay/internal/status"
	"github.com/BearBump/ShipRelay/internal/storage/pgstore"
	"github.com/BearBump/ShipRelay/internal/web"
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

	brokers := cfg.Kafka.Brokers()
	producer := kafka.NewProducer(brokers)
	defer func() { _ = producer.Close() }()

	group := cfg.Kafka.ConsumerGroup
	if group == "" {
		group = "ship-gateway"
	}

	var carrier aftership.Client
	if cfg.AfterShip.UseFake {
		carrier = fake.New()
	} else {
		carrier = httpclient.New(cfg.AfterShip.BaseURL, cfg.AfterShip.APIKey)
	}

	audit := extlog.New(producer.Topic(cfg.Kafka.ExternalLogTopic), log)
	exec := resilience.NewExecutor("aftership", 3, 15*time.Second)

	reg := registration.New(st, carrier, exec, audit, log,
		cfg.AfterShip.Platform, cfg.AfterShip.RetryStatusCodes)

	rec := reconcile.New(st,
		producer.Topic(cfg.Kafka.TrackDeliveryResponseTopic),
		producer.Topic(cfg.Kafka.FulfillmentTrackResponseTopic),
		status.NewSuppressionList(cfg.AfterShip.ExceptionSubStatus),
		cfg.AfterShip.Platform, log)

	requestConsumer := kafka.NewConsumer(brokers, cfg.Kafka.TrackingRequestTopic, group)
	fulfillmentConsumer := kafka.NewConsumer(brokers, cfg.Kafka.FulfillmentTrackRequestTopic, group)
	retryConsumer := kafka.NewConsumer(brokers, cfg.Kafka.RetryRequestTopic, group)
	defer func() {
		_ = requestConsumer.Close()
		_ = fulfillmentConsumer.Close()
		_ = retryConsumer.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = runGateway(ctx, gatewayOpts{httpAddr: cfg.Gateway.HTTPAddr}, gatewayDeps{
		webhook:             web.NewWebhook(rec, cfg.AfterShip.WebhookSecret, log),
		reg:                 reg,
		errs:                st,
		requestConsumer:     requestConsumer,
		fulfillmentConsumer: fulfillmentConsumer,
		retryConsumer:       retryConsumer,
	})
	if err != nil && err != context.Canceled {
		panic(err)
	}
}
