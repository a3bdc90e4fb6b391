package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context) error { return r.err }

func TestRunScheduler_ServesProbes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runScheduler(ctx, schedulerOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		}, blockingRunner{})
	}()

	addr := <-addrCh
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get("http://" + addr + path)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting scheduler to stop")
	}
}

func TestRunScheduler_LoopFailureStopsProcess(t *testing.T) {
	boom := errors.New("loop broke")
	err := runScheduler(context.Background(), schedulerOpts{httpAddr: "127.0.0.1:0"}, failingRunner{err: boom})
	require.ErrorIs(t, err, boom)
}
