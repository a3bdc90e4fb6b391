package poll

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	stale       []*models.TrackingRequest
	gotExcluded []string
	gotBefore   time.Time
}

func (r *fakeRepo) ListStaleRequests(_ context.Context, excludeStatuses []string, before time.Time) ([]*models.TrackingRequest, error) {
	r.gotExcluded = excludeStatuses
	r.gotBefore = before
	return r.stale, nil
}

type fakeCarrier struct {
	byNumber map[string]*aftership.Tracking
	errors   map[string]error
	slugs    []string
}

func (c *fakeCarrier) CreateTracking(context.Context, aftership.NewTracking) (*aftership.Tracking, error) {
	return nil, errors.New("not used")
}

func (c *fakeCarrier) GetTracking(_ context.Context, slug, trackingNumber string) (*aftership.Tracking, error) {
	c.slugs = append(c.slugs, slug)
	if err, ok := c.errors[trackingNumber]; ok {
		return nil, err
	}
	return c.byNumber[trackingNumber], nil
}

type fakeReconciler struct {
	seen []string
}

func (f *fakeReconciler) ProcessTracking(_ context.Context, tr *aftership.Tracking) error {
	f.seen = append(f.seen, tr.TrackingNumber)
	return nil
}

type fakeRateLimiter struct {
	keys []string
}

func (f *fakeRateLimiter) Allow(_ context.Context, key string, _ int64, _ time.Duration) (bool, int64, error) {
	f.keys = append(f.keys, key)
	return true, 1, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staleRow(trackingID, payload, payloadType string) *models.TrackingRequest {
	r := &models.TrackingRequest{TrackingID: trackingID, Status: models.TagInTransit}
	if payload != "" {
		r.CarrierResponse = &payload
		r.CarrierResponseType = &payloadType
	}
	return r
}

func TestRunOnce_FeedsReconciler(t *testing.T) {
	repo := &fakeRepo{stale: []*models.TrackingRequest{
		staleRow("TN-1", `{"tracking_number":"TN-1","slug":"usps"}`, models.CarrierResponseTracking),
		staleRow("TN-2", `{"msg":{"tracking_number":"TN-2","slug":"fedex"}}`, models.CarrierResponseNotification),
	}}
	carrier := &fakeCarrier{byNumber: map[string]*aftership.Tracking{
		"TN-1": {TrackingNumber: "TN-1", Tag: models.TagDelivered},
		"TN-2": {TrackingNumber: "TN-2", Tag: models.TagInTransit},
	}}
	rec := &fakeReconciler{}
	rl := &fakeRateLimiter{}
	p := New(repo, carrier, rec, rl, nil, testLogger(), Config{
		FetchTrackingBeforeDays: 2,
		ExcludeStatuses:         []string{models.TagDelivered, models.TagExpired},
		RatePerMinute:           60,
	})

	p.runOnce(context.Background())

	require.Equal(t, []string{models.TagDelivered, models.TagExpired}, repo.gotExcluded)
	require.WithinDuration(t, time.Now().UTC().Add(-48*time.Hour), repo.gotBefore, 5*time.Second)
	require.Equal(t, []string{"usps", "fedex"}, carrier.slugs)
	require.Equal(t, []string{"TN-1", "TN-2"}, rec.seen)
	require.Len(t, rl.keys, 2)
	require.Contains(t, rl.keys[0], "rl:slug:usps:")
}

func TestRunOnce_SkipsRowsWithoutSlug(t *testing.T) {
	repo := &fakeRepo{stale: []*models.TrackingRequest{
		staleRow("TN-1", "", ""),
		staleRow("TN-2", `{"msg":{"tracking_number":"TN-2"}}`, models.CarrierResponseNotification),
		staleRow("TN-3", `not json`, models.CarrierResponseTracking),
		staleRow("TN-4", `{"tracking_number":"TN-4","slug":"usps"}`, models.CarrierResponseTracking),
	}}
	carrier := &fakeCarrier{byNumber: map[string]*aftership.Tracking{
		"TN-4": {TrackingNumber: "TN-4", Tag: models.TagDelivered},
	}}
	rec := &fakeReconciler{}
	p := New(repo, carrier, rec, nil, nil, testLogger(), Config{})

	p.runOnce(context.Background())
	require.Equal(t, []string{"TN-4"}, rec.seen)
}

func TestRunOnce_OneFailureDoesNotStopTheCycle(t *testing.T) {
	repo := &fakeRepo{stale: []*models.TrackingRequest{
		staleRow("TN-1", `{"tracking_number":"TN-1","slug":"usps"}`, models.CarrierResponseTracking),
		staleRow("TN-2", `{"tracking_number":"TN-2","slug":"usps"}`, models.CarrierResponseTracking),
	}}
	carrier := &fakeCarrier{
		byNumber: map[string]*aftership.Tracking{
			"TN-2": {TrackingNumber: "TN-2", Tag: models.TagDelivered},
		},
		errors: map[string]error{
			"TN-1": &aftership.APIError{Code: 500, Message: "boom"},
		},
	}
	rec := &fakeReconciler{}
	p := New(repo, carrier, rec, nil, nil, testLogger(), Config{})

	p.runOnce(context.Background())
	require.Equal(t, []string{"TN-2"}, rec.seen)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	p := New(repo, &fakeCarrier{}, &fakeReconciler{}, nil, nil, testLogger(), Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
