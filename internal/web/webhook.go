package web

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"

	"github.com/BearBump/ShipRelay/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// hmacHeader carries the base64 HMAC-SHA256 of the raw request body,
// keyed with the webhook secret shared with the carrier cloud.
const hmacHeader = "Aftership-Hmac-Sha256"

type NotificationHandler interface {
	ProcessNotification(ctx context.Context, body []byte) error
}

// Webhook is the inbound HTTP surface of the gateway. A request with a
// bad signature gets 404 so probing the endpoint reveals nothing; an
// authentic one is always answered 200, processing failures included,
// because the cloud retries on anything else and the poll loop already
// covers a lost update.
type Webhook struct {
	handler NotificationHandler
	secret  []byte
	log     *slog.Logger
}

func NewWebhook(handler NotificationHandler, secret string, log *slog.Logger) *Webhook {
	return &Webhook{handler: handler, secret: []byte(secret), log: log}
}

func (wh *Webhook) Router() chi.Router {
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

	r.Post("/api/aftership/notification", wh.handleNotification)
	return r
}

func (wh *Webhook) handleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.WebhooksRejected.WithLabelValues("body_read").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !wh.signatureValid(r.Header.Get(hmacHeader), body) {
		metrics.WebhooksRejected.WithLabelValues("bad_signature").Inc()
		wh.log.Warn("webhook signature mismatch", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	metrics.WebhooksReceived.Inc()
	if err := wh.handler.ProcessNotification(r.Context(), body); err != nil {
		wh.log.Error("process notification", "err", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (wh *Webhook) signatureValid(got string, body []byte) bool {
	if got == "" {
		return false
	}
	mac := hmac.New(sha256.New, wh.secret)
	mac.Write(body)
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(got), []byte(want))
}
