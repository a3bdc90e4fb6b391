package status

import (
	"testing"

	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCoarse_allTags(t *testing.T) {
	cases := map[string]string{
		"":                           "",
		models.TagInTransit:          models.CoarseStatusInTransit,
		models.TagDelivered:          models.CoarseStatusDelivered,
		models.TagException:          models.CoarseStatusError,
		models.TagPending:            models.CoarseStatusPendingTracking,
		models.TagInfoReceived:       models.CoarseStatusUnrecognized,
		models.TagOutForDelivery:     models.CoarseStatusUnrecognized,
		models.TagAttemptFail:        models.CoarseStatusUnrecognized,
		models.TagAvailableForPickup: models.CoarseStatusUnrecognized,
		models.TagExpired:            models.CoarseStatusUnrecognized,
		"SomethingNew":               models.CoarseStatusUnrecognized,
	}

	for tag, want := range cases {
		require.Equal(t, want, Coarse(tag), "tag %q", tag)
	}
}

func TestFine_allPairs(t *testing.T) {
	type pair struct{ tag, subTag string }
	cases := map[pair]string{
		{"", ""}:                          "",
		{models.TagInTransit, ""}:         models.FineStatusInTransit,
		{models.TagInTransit, "whatever"}: models.FineStatusInTransit,
		{models.TagDelivered, ""}:         models.FineStatusDelivered,
		{models.TagPending, ""}:           models.FineStatusPending,

		{models.TagAvailableForPickup, models.SubTagAvailableForPickup001}: models.FineStatusAvailableToPickup,
		{models.TagAvailableForPickup, "AvailableForPickup_002"}:           models.FineStatusUnrecognized,
		{models.TagAvailableForPickup, ""}:                                 models.FineStatusUnrecognized,

		{models.TagOutForDelivery, models.SubTagOutForDelivery004}: models.FineStatusDeliveryAppointmentSetup,
		{models.TagOutForDelivery, "OutForDelivery_001"}:           models.FineStatusUnrecognized,

		{models.TagException, models.SubTagException011}: models.FineStatusReturned,
		{models.TagException, models.SubTagException004}: models.FineStatusPkgDelayed,
		{models.TagException, models.SubTagException005}: models.FineStatusPkgDelayed,
		{models.TagException, models.SubTagException013}: models.FineStatusPkgLost,
		{models.TagException, models.SubTagException007}: models.FineStatusIncorrectAddress,
		{models.TagException, "Exception_099"}:           models.FineStatusDeliveryFailed,
		{models.TagException, ""}:                        models.FineStatusDeliveryFailed,

		{models.TagInfoReceived, ""}: models.FineStatusUnrecognized,
		{models.TagAttemptFail, ""}:  models.FineStatusUnrecognized,
		{models.TagExpired, ""}:      models.FineStatusUnrecognized,
		{"SomethingNew", "X"}:        models.FineStatusUnrecognized,
	}

	for p, want := range cases {
		require.Equal(t, want, Fine(p.tag, p.subTag), "tag %q subTag %q", p.tag, p.subTag)
	}
}

func TestFine_deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		require.Equal(t, models.FineStatusPkgLost, Fine(models.TagException, models.SubTagException013))
	}
}

func TestCoarsePublishable(t *testing.T) {
	require.True(t, CoarsePublishable(models.CoarseStatusInTransit))
	require.True(t, CoarsePublishable(models.CoarseStatusDelivered))
	require.True(t, CoarsePublishable(models.CoarseStatusError))
	require.False(t, CoarsePublishable(models.CoarseStatusPendingTracking))
	require.False(t, CoarsePublishable(models.CoarseStatusUnrecognized))
	require.False(t, CoarsePublishable(""))
}

func TestSuppressionList(t *testing.T) {
	l := NewSuppressionList([]string{models.SubTagException004, "Exception_099", ""})
	require.True(t, l.Contains(models.SubTagException004))
	require.True(t, l.Contains("Exception_099"))
	require.False(t, l.Contains(models.SubTagException011))
	require.False(t, l.Contains(""))
}
