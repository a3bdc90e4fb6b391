package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPGStore_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "shiprelay_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/shiprelay_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	participant := `{"userId":42,"externalId":"EXT-42"}`
	created, err := st.CreateTrackingRequest(ctx, &models.TrackingRequest{
		TrackingID:  "A1",
		Operation:   models.OperationTrackDelivery,
		Provider:    "usps",
		Participant: &participant,
		Status:      models.TagPending,
	})
	require.NoError(t, err)
	require.True(t, created)

	// second insert for the same tracking id is a no-op
	created, err = st.CreateTrackingRequest(ctx, &models.TrackingRequest{
		TrackingID: "A1",
		Operation:  models.OperationTrackDelivery,
		Provider:   "usps",
		Status:     models.TagPending,
	})
	require.NoError(t, err)
	require.False(t, created)

	found, err := st.FindByTrackingID(ctx, "A1")
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotZero(t, found.ID)
	require.Equal(t, "usps", found.Provider)

	missing, err := st.FindByTrackingID(ctx, "NO-SUCH")
	require.NoError(t, err)
	require.Nil(t, missing)

	// row-locked read-modify-write
	payload := `{"tag":"InTransit"}`
	ok, err := st.WithRequestForUpdate(ctx, "A1", func(r *models.TrackingRequest) (*StatusUpdate, error) {
		require.Equal(t, models.TagPending, r.Status)
		return &StatusUpdate{
			Status:              models.TagInTransit,
			CarrierResponse:     &payload,
			CarrierResponseType: models.CarrierResponseTracking,
		}, nil
	})
	require.NoError(t, err)
	require.True(t, ok)

	found, err = st.FindByTrackingID(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, models.TagInTransit, found.Status)
	require.NotNil(t, found.CarrierResponseType)
	require.Equal(t, models.CarrierResponseTracking, *found.CarrierResponseType)

	ok, err = st.WithRequestForUpdate(ctx, "NO-SUCH", func(r *models.TrackingRequest) (*StatusUpdate, error) {
		t.Fatal("callback must not run without a row")
		return nil, nil
	})
	require.NoError(t, err)
	require.False(t, ok)

	// stale selection: push updated_at into the past, then exclude by status
	_, err = st.db.Exec(ctx, `UPDATE tracking_request SET updated_at = now() - interval '3 days' WHERE tracking_id = 'A1'`)
	require.NoError(t, err)

	stale, err := st.ListStaleRequests(ctx, []string{models.TagDelivered, models.TagExpired}, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, "A1", stale[0].TrackingID)

	stale, err = st.ListStaleRequests(ctx, []string{models.TagInTransit}, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Empty(t, stale)

	// error rows: first upsert keeps retry_count at zero, repeats bump it
	code := 4004
	snapshot := `{"trackingId":"B2"}`
	errRow := &models.TrackingError{
		TrackingID:           "B2",
		ErrorCode:            &code,
		TrackDeliveryRequest: &snapshot,
	}
	require.NoError(t, st.UpsertTrackingError(ctx, errRow))
	require.NoError(t, st.UpsertTrackingError(ctx, errRow))
	require.NoError(t, st.UpsertTrackingError(ctx, errRow))

	got, err := st.FindErrorByTrackingID(ctx, "B2")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int32(2), got.RetryCount)
	require.NotNil(t, got.ErrorCode)
	require.Equal(t, 4004, *got.ErrorCode)

	retriable, err := st.ListRetriableErrors(ctx, 5)
	require.NoError(t, err)
	require.Len(t, retriable, 1)

	retriable, err = st.ListRetriableErrors(ctx, 2)
	require.NoError(t, err)
	require.Empty(t, retriable)

	require.NoError(t, st.DeleteTrackingError(ctx, "B2"))
	got, err = st.FindErrorByTrackingID(ctx, "B2")
	require.NoError(t, err)
	require.Nil(t, got)
}
