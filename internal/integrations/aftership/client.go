package aftership

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Tracking is the carrier-tracking cloud's view of one package. Shared
// by webhook payloads, API responses and the stored carrier response.
type Tracking struct {
	TrackingNumber   string            `json:"tracking_number"`
	Slug             string            `json:"slug,omitempty"`
	Tag              string            `json:"tag,omitempty"`
	Subtag           string            `json:"subtag,omitempty"`
	SubtagMessage    string            `json:"subtag_message,omitempty"`
	ExpectedDelivery string            `json:"expected_delivery,omitempty"`
	LastUpdatedAt    *time.Time        `json:"last_updated_at,omitempty"`
	CustomFields     map[string]string `json:"custom_fields,omitempty"`
}

// Notification is the webhook envelope: the tracking nested under "msg".
type Notification struct {
	Msg *Tracking `json:"msg"`
}

// NewTracking is the registration payload.
type NewTracking struct {
	TrackingNumber string            `json:"tracking_number"`
	Slug           string            `json:"slug,omitempty"`
	CustomFields   map[string]string `json:"custom_fields,omitempty"`
}

// APIError is a failure reported by the cloud API with its numeric code
// (AfterShip meta.code, e.g. 429 for rate limiting, 4004 for not found).
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aftership api error %d: %s", e.Code, e.Message)
}

// ErrorCode extracts the API error code from an error chain.
func ErrorCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

type Client interface {
	CreateTracking(ctx context.Context, nt NewTracking) (*Tracking, error)
	GetTracking(ctx context.Context, slug, trackingNumber string) (*Tracking, error)
}
