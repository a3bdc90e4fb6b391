package retryloop

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
	"github.com/BearBump/ShipRelay/internal/metrics"
	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ListRetriableErrors(ctx context.Context, maxRetryCount int32) ([]*models.TrackingError, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Loop replays failed registrations through the normal ingestion path.
// It only re-enqueues: the registration consumer does the actual retry
// and deletes the error row on success, while a renewed failure bumps
// the retry count until the ceiling takes the row out of rotation.
type Loop struct {
	repo     Repository
	producer Publisher
	log      *slog.Logger

	interval      time.Duration
	maxRetryCount int32
}

func New(repo Repository, producer Publisher, log *slog.Logger, interval time.Duration, maxRetryCount int32) *Loop {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if maxRetryCount <= 0 {
		maxRetryCount = 5
	}
	return &Loop{
		repo:          repo,
		producer:      producer,
		log:           log,
		interval:      interval,
		maxRetryCount: maxRetryCount,
	}
}

func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			l.runOnce(ctx)
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	rows, err := l.repo.ListRetriableErrors(ctx, l.maxRetryCount)
	if err != nil {
		l.log.Error("list retriable errors", "err", err)
		return
	}

	var replayed int
	for _, row := range rows {
		if ctx.Err() != nil {
			return
		}
		if err := l.replay(ctx, row); err != nil {
			l.log.Error("replay registration", "trackingId", row.TrackingID, "err", err)
			continue
		}
		replayed++
	}
	if len(rows) > 0 {
		l.log.Info("retry cycle finished", "candidates", len(rows), "replayed", replayed)
	}
}

func (l *Loop) replay(ctx context.Context, row *models.TrackingError) error {
	if row.TrackDeliveryRequest == nil || *row.TrackDeliveryRequest == "" {
		l.log.Warn("error row without request snapshot skipped", "trackingId", row.TrackingID)
		return nil
	}
	var req messages.TrackDeliveryRequest
	if err := json.Unmarshal([]byte(*row.TrackDeliveryRequest), &req); err != nil {
		l.log.Warn("unparsable request snapshot skipped", "trackingId", row.TrackingID, "err", err)
		return nil
	}

	var hdr *messages.MessageHeader
	if row.Header != nil && *row.Header != "" {
		var h messages.MessageHeader
		if err := json.Unmarshal([]byte(*row.Header), &h); err != nil {
			l.log.Warn("unparsable header snapshot", "trackingId", row.TrackingID, "err", err)
		} else {
			hdr = &h
		}
	}

	b, err := json.Marshal(messages.RetryRequest{Request: &req, Header: hdr})
	if err != nil {
		return errors.Wrap(err, "marshal retry request")
	}
	if err := l.producer.Publish(ctx, []byte(row.TrackingID), b); err != nil {
		return err
	}
	metrics.RetryReplays.Inc()
	return nil
}
