package fake

import (
	"context"
	"hash/fnv"
	"time"

	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/models"
)

// FakeClient is a local stand-in for the AfterShip cloud, used in demos
// and tests. Status is deterministic per tracking number: a fifth of
// trackings report Delivered, the rest InTransit.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) CreateTracking(ctx context.Context, nt aftership.NewTracking) (*aftership.Tracking, error) {
	now := time.Now().UTC()
	return &aftership.Tracking{
		TrackingNumber: nt.TrackingNumber,
		Slug:           "fake-carrier",
		Tag:            models.TagPending,
		LastUpdatedAt:  &now,
		CustomFields:   nt.CustomFields,
	}, nil
}

func (f *FakeClient) GetTracking(ctx context.Context, slug, trackingNumber string) (*aftership.Tracking, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(slug))
	_, _ = h.Write([]byte("|"))
	_, _ = h.Write([]byte(trackingNumber))

	tag := models.TagInTransit
	if h.Sum32()%5 == 0 {
		tag = models.TagDelivered
	}

	return &aftership.Tracking{
		TrackingNumber: trackingNumber,
		Slug:           slug,
		Tag:            tag,
		LastUpdatedAt:  &now,
	}, nil
}
