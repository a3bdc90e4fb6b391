package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
	"github.com/BearBump/ShipRelay/internal/web"
)

type registrar interface {
	Register(ctx context.Context, req *messages.TrackDeliveryRequest, hdr *messages.MessageHeader) (bool, error)
}

type errorStore interface {
	DeleteTrackingError(ctx context.Context, trackingID string) error
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
	Rejoin()
}

// pause between consumer failures before rejoining the group
var consumerRejoinDelay = 5 * time.Second

type gatewayOpts struct {
	httpAddr string
	onListen func(httpAddr string)
}

type gatewayDeps struct {
	webhook *web.Webhook
	reg     registrar
	errs    errorStore

	requestConsumer     kafkaConsumer
	fulfillmentConsumer kafkaConsumer
	retryConsumer       kafkaConsumer
}

func runGateway(ctx context.Context, opts gatewayOpts, d gatewayDeps) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	startConsumer(ctx, "tracking-request", d.requestConsumer, registerHandler(ctx, d.reg))
	startConsumer(ctx, "fulfillment-track-request", d.fulfillmentConsumer, registerHandler(ctx, d.reg))
	startConsumer(ctx, "retry-request", d.retryConsumer, retryHandler(ctx, d.reg, d.errs))

	srv := &http.Server{Handler: d.webhook.Router()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("gateway listening", "addr", lis.Addr().String())
	err = srv.Serve(lis)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func startConsumer(ctx context.Context, name string, c kafkaConsumer, handler func(key, value []byte) error) {
	if c == nil {
		return
	}
	go func() {
		slog.Info("kafka consumer started", "consumer", name)
		for {
			err := c.Consume(ctx, handler)
			if ctx.Err() != nil {
				return
			}
			// a failed unit of work aborts alone; the consumer rejoins
			// and the uncommitted message is redelivered
			slog.Error("kafka consumer failed, rejoining", "consumer", name, "err", err)
			c.Rejoin()
			select {
			case <-ctx.Done():
				return
			case <-time.After(consumerRejoinDelay):
			}
		}
	}()
}

func registerHandler(ctx context.Context, reg registrar) func(key, value []byte) error {
	return func(_, value []byte) error {
		var m messages.TrackDeliveryMessage
		if err := json.Unmarshal(value, &m); err != nil || m.Request == nil {
			slog.Warn("unparsable track delivery message dropped", "err", err)
			return nil
		}
		_, err := reg.Register(ctx, m.Request, m.Header)
		return err
	}
}

func retryHandler(ctx context.Context, reg registrar, errs errorStore) func(key, value []byte) error {
	return func(_, value []byte) error {
		var m messages.RetryRequest
		if err := json.Unmarshal(value, &m); err != nil || m.Request == nil {
			slog.Warn("unparsable retry request dropped", "err", err)
			return nil
		}
		ok, err := reg.Register(ctx, m.Request, m.Header)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return errs.DeleteTrackingError(ctx, m.Request.TrackingID)
	}
}
