package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking_request (
  id BIGSERIAL PRIMARY KEY,
  tracking_id TEXT NOT NULL,
  operation TEXT NOT NULL,
  provider TEXT NOT NULL,
  participant TEXT NULL,
  status TEXT NOT NULL DEFAULT '',
  sub_status_code TEXT NULL,
  sub_status_description TEXT NULL,
  carrier_response TEXT NULL,
  carrier_response_type TEXT NULL,
  fulfillment_order_id BIGINT NULL,
  header TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tracking_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_request_status_updated_at ON tracking_request(status, updated_at)`,
		`
CREATE TABLE IF NOT EXISTS tracking_request_error (
  id BIGSERIAL PRIMARY KEY,
  tracking_id TEXT NOT NULL,
  error_code INT NULL,
  retry_count INT NOT NULL DEFAULT 0,
  track_delivery_request TEXT NULL,
  header TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tracking_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_request_error_retry_count ON tracking_request_error(retry_count)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
