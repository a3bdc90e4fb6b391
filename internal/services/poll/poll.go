package poll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/metrics"
	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/BearBump/ShipRelay/internal/services/extlog"
)

type Repository interface {
	ListStaleRequests(ctx context.Context, excludeStatuses []string, before time.Time) ([]*models.TrackingRequest, error)
}

type Reconciler interface {
	ProcessTracking(ctx context.Context, tr *aftership.Tracking) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller sweeps packages whose webhook went missing. Every cycle it
// fetches the current state of each stale tracking from the cloud and
// feeds it through the same reconciliation path the webhook uses.
type Poller struct {
	repo      Repository
	carrier   aftership.Client
	reconcile Reconciler
	rl        RateLimiter
	audit     *extlog.Logger
	log       *slog.Logger

	interval        time.Duration
	fetchBefore     time.Duration
	excludeStatuses []string
	ratePerMinute   int64
}

type Config struct {
	Interval                time.Duration
	FetchTrackingBeforeDays int
	ExcludeStatuses         []string
	RatePerMinute           int64
}

func New(repo Repository, carrier aftership.Client, reconcile Reconciler, rl RateLimiter, audit *extlog.Logger, log *slog.Logger, cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	days := cfg.FetchTrackingBeforeDays
	if days <= 0 {
		days = 1
	}
	rate := cfg.RatePerMinute
	if rate <= 0 {
		rate = 120
	}
	return &Poller{
		repo:            repo,
		carrier:         carrier,
		reconcile:       reconcile,
		rl:              rl,
		audit:           audit,
		log:             log,
		interval:        interval,
		fetchBefore:     time.Duration(days) * 24 * time.Hour,
		excludeStatuses: cfg.ExcludeStatuses,
		ratePerMinute:   rate,
	}
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	start := time.Now().UTC()
	cutoff := start.Add(-p.fetchBefore)

	items, err := p.repo.ListStaleRequests(ctx, p.excludeStatuses, cutoff)
	if err != nil {
		p.log.Error("list stale requests", "err", err)
		return
	}

	var failed int
	for _, req := range items {
		if ctx.Err() != nil {
			return
		}
		if err := p.processOne(ctx, req); err != nil {
			failed++
			p.log.Error("poll tracking", "trackingId", req.TrackingID, "err", err)
		}
	}

	elapsed := time.Since(start)
	metrics.PollCycleDuration.Observe(elapsed.Seconds())
	p.log.Info("poll cycle finished",
		"stale", len(items), "failed", failed, "duration", elapsed.String())
}

func (p *Poller) processOne(ctx context.Context, req *models.TrackingRequest) error {
	slug, ok := storedSlug(req)
	if !ok {
		p.log.Warn("stale request without carrier slug skipped", "trackingId", req.TrackingID)
		return nil
	}

	if p.rl != nil {
		key := fmt.Sprintf("rl:slug:%s:%s", slug, time.Now().UTC().Format("200601021504"))
		allowed, n, err := p.rl.Allow(ctx, key, p.ratePerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			p.log.Warn("carrier rate limit exceeded", "slug", slug, "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	start := time.Now().UTC()
	tr, err := p.carrier.GetTracking(ctx, slug, req.TrackingID)
	if err != nil {
		code, _ := aftership.ErrorCode(err)
		p.audit.Record(&messages.ExternalLog{
			EventType:         "GET_TRACKING",
			TrackingID:        req.TrackingID,
			Description:       err.Error(),
			RequestTimestamp:  start.UnixMilli(),
			ResponseTimestamp: time.Now().UTC().UnixMilli(),
			ResponseCode:      code,
		})
		return err
	}
	p.audit.Record(&messages.ExternalLog{
		EventType:         "GET_TRACKING",
		TrackingID:        req.TrackingID,
		RequestTimestamp:  start.UnixMilli(),
		ResponseTimestamp: time.Now().UTC().UnixMilli(),
		ResponseCode:      200,
	})

	return p.reconcile.ProcessTracking(ctx, tr)
}

// storedSlug recovers the carrier slug from the last stored carrier
// payload. Webhook payloads nest the tracking one level deeper than
// polled ones.
func storedSlug(req *models.TrackingRequest) (string, bool) {
	if req.CarrierResponse == nil || *req.CarrierResponse == "" || req.CarrierResponseType == nil {
		return "", false
	}
	switch *req.CarrierResponseType {
	case models.CarrierResponseNotification:
		var n aftership.Notification
		if err := json.Unmarshal([]byte(*req.CarrierResponse), &n); err != nil || n.Msg == nil || n.Msg.Slug == "" {
			return "", false
		}
		return n.Msg.Slug, true
	case models.CarrierResponseTracking:
		var t aftership.Tracking
		if err := json.Unmarshal([]byte(*req.CarrierResponse), &t); err != nil || t.Slug == "" {
			return "", false
		}
		return t.Slug, true
	}
	return "", false
}
