package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type runner interface {
	Run(ctx context.Context) error
}

type schedulerOpts struct {
	httpAddr string
	onListen func(httpAddr string)
}

// runScheduler runs the poll and retry loops next to a small HTTP
// surface for probes and metrics. The first one to fail takes the whole
// process down.
func runScheduler(ctx context.Context, opts schedulerOpts, loops ...runner) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8081"
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	loopErr := make(chan error, len(loops))
	for _, l := range loops {
		loop := l
		go func() { loopErr <- loop.Run(ctx) }()
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runSchedulerHTTPServer(ctx, lis)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-loopErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func runSchedulerHTTPServer(ctx context.Context, lis net.Listener) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("scheduler listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}
