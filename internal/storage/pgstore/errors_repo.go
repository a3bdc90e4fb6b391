package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/pkg/errors"
)

// UpsertTrackingError records one registration failure. The first
// failure for a tracking id writes retry_count 0; every renewed failure
// bumps it by one and refreshes the stored snapshot.
func (s *Storage) UpsertTrackingError(ctx context.Context, e *models.TrackingError) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO tracking_request_error (
  tracking_id, error_code, retry_count, track_delivery_request, header, created_at, updated_at
)
VALUES ($1,$2,0,$3,$4,$5,$5)
ON CONFLICT (tracking_id) DO UPDATE SET
  error_code = EXCLUDED.error_code,
  retry_count = tracking_request_error.retry_count + 1,
  track_delivery_request = EXCLUDED.track_delivery_request,
  header = EXCLUDED.header,
  updated_at = now()
`, e.TrackingID, e.ErrorCode, e.TrackDeliveryRequest, e.Header, now)
	return errors.Wrap(err, "upsert tracking error")
}

// ListRetriableErrors selects errors still under the retry ceiling.
// Rows at the ceiling stay put as an operator-visible terminal state.
func (s *Storage) ListRetriableErrors(ctx context.Context, maxRetryCount int32) ([]*models.TrackingError, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, tracking_id, error_code, retry_count,
  track_delivery_request, header, created_at, updated_at
FROM tracking_request_error
WHERE retry_count < $1
ORDER BY updated_at ASC
`, maxRetryCount)
	if err != nil {
		return nil, errors.Wrap(err, "select retriable errors")
	}
	defer rows.Close()

	var out []*models.TrackingError
	for rows.Next() {
		var e models.TrackingError
		if err := rows.Scan(
			&e.ID, &e.TrackingID, &e.ErrorCode, &e.RetryCount,
			&e.TrackDeliveryRequest, &e.Header, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan tracking error")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// DeleteTrackingError removes the error row once a replay succeeds.
func (s *Storage) DeleteTrackingError(ctx context.Context, trackingID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM tracking_request_error WHERE tracking_id = $1`, trackingID)
	return errors.Wrap(err, "delete tracking error")
}

// FindErrorByTrackingID returns nil without error when no row exists.
func (s *Storage) FindErrorByTrackingID(ctx context.Context, trackingID string) (*models.TrackingError, error) {
	rows, err := s.db.Query(ctx, `
SELECT
  id, tracking_id, error_code, retry_count,
  track_delivery_request, header, created_at, updated_at
FROM tracking_request_error
WHERE tracking_id = $1
`, trackingID)
	if err != nil {
		return nil, errors.Wrap(err, "select tracking error")
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	var e models.TrackingError
	if err := rows.Scan(
		&e.ID, &e.TrackingID, &e.ErrorCode, &e.RetryCount,
		&e.TrackDeliveryRequest, &e.Header, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan tracking error")
	}
	return &e, nil
}
