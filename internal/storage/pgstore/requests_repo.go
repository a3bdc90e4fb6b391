package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const requestColumns = `
  id, tracking_id, operation, provider, participant,
  status, sub_status_code, sub_status_description,
  carrier_response, carrier_response_type,
  fulfillment_order_id, header,
  created_at, updated_at`

// StatusUpdate is the bookkeeping written back after every accepted
// status observation, whether or not an event was published.
type StatusUpdate struct {
	Status               string
	SubStatusCode        *string
	SubStatusDescription *string
	CarrierResponse      *string
	CarrierResponseType  string
}

func scanRequest(row pgx.Row) (*models.TrackingRequest, error) {
	var r models.TrackingRequest
	if err := row.Scan(
		&r.ID, &r.TrackingID, &r.Operation, &r.Provider, &r.Participant,
		&r.Status, &r.SubStatusCode, &r.SubStatusDescription,
		&r.CarrierResponse, &r.CarrierResponseType,
		&r.FulfillmentOrderID, &r.Header,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateTrackingRequest inserts a new row. Returns false without error
// when a row for this tracking id already exists.
func (s *Storage) CreateTrackingRequest(ctx context.Context, r *models.TrackingRequest) (bool, error) {
	now := time.Now().UTC()
	tag, err := s.db.Exec(ctx, `
INSERT INTO tracking_request (
  tracking_id, operation, provider, participant, status,
  carrier_response, carrier_response_type,
  fulfillment_order_id, header, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (tracking_id) DO NOTHING
`, r.TrackingID, r.Operation, r.Provider, r.Participant, r.Status,
		r.CarrierResponse, r.CarrierResponseType,
		r.FulfillmentOrderID, r.Header, now)
	if err != nil {
		return false, errors.Wrap(err, "insert tracking request")
	}
	return tag.RowsAffected() == 1, nil
}

// FindByTrackingID returns nil without error when no row exists.
func (s *Storage) FindByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRequest, error) {
	row := s.db.QueryRow(ctx, `SELECT`+requestColumns+` FROM tracking_request WHERE tracking_id = $1`, trackingID)
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking request")
	}
	return r, nil
}

// WithRequestForUpdate runs fn against the row for trackingID while
// holding a row lock, so webhook and poll observations racing for the
// same package are serialized. fn may return a StatusUpdate to persist
// inside the same transaction, or nil to leave the row untouched.
// Returns false when no row exists (the observation is a no-op).
func (s *Storage) WithRequestForUpdate(ctx context.Context, trackingID string,
	fn func(req *models.TrackingRequest) (*StatusUpdate, error)) (bool, error) {

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT`+requestColumns+` FROM tracking_request WHERE tracking_id = $1 FOR UPDATE`, trackingID)
	req, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "select tracking request for update")
	}

	upd, err := fn(req)
	if err != nil {
		return true, err
	}
	if upd != nil {
		_, err = tx.Exec(ctx, `
UPDATE tracking_request
SET
  status = $2,
  sub_status_code = $3,
  sub_status_description = $4,
  carrier_response = $5,
  carrier_response_type = $6,
  updated_at = now()
WHERE tracking_id = $1
`, trackingID, upd.Status, upd.SubStatusCode, upd.SubStatusDescription,
			upd.CarrierResponse, upd.CarrierResponseType)
		if err != nil {
			return true, errors.Wrap(err, "update tracking request")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return true, errors.Wrap(err, "commit tx")
	}
	return true, nil
}

// ListStaleRequests selects requests whose status is outside the
// terminal exclusion set and whose last update is older than before.
func (s *Storage) ListStaleRequests(ctx context.Context, excludeStatuses []string, before time.Time) ([]*models.TrackingRequest, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+requestColumns+`
FROM tracking_request
WHERE status <> ALL($1)
  AND updated_at < $2
ORDER BY updated_at ASC
`, excludeStatuses, before.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "select stale requests")
	}
	defer rows.Close()

	var out []*models.TrackingRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan stale request")
		}
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
