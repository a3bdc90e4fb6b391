package registration

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/metrics"
	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/BearBump/ShipRelay/internal/resilience"
	"github.com/BearBump/ShipRelay/internal/services/extlog"
	"github.com/pkg/errors"
)

const (
	customFieldUserID     = "userId"
	customFieldExternalID = "externalId"
	customFieldPlatformID = "platformId"
)

type Repository interface {
	FindByTrackingID(ctx context.Context, trackingID string) (*models.TrackingRequest, error)
	CreateTrackingRequest(ctx context.Context, req *models.TrackingRequest) (bool, error)
	UpsertTrackingError(ctx context.Context, e *models.TrackingError) error
}

// Service registers packages with the carrier-tracking cloud. A tracking
// id is registered at most once; renewed requests for a known id are
// acknowledged without touching the cloud. Carrier failures are absorbed
// into the error table where the replay loop picks them up, so the
// consumer never redelivers on a carrier outage.
type Service struct {
	repo       Repository
	carrier    aftership.Client
	exec       *resilience.Executor
	audit      *extlog.Logger
	log        *slog.Logger
	platform   string
	retryCodes map[int]struct{}
}

func New(repo Repository, carrier aftership.Client, exec *resilience.Executor, audit *extlog.Logger, log *slog.Logger, platform string, retryStatusCodes []int) *Service {
	codes := make(map[int]struct{}, len(retryStatusCodes))
	for _, c := range retryStatusCodes {
		codes[c] = struct{}{}
	}
	return &Service{
		repo:       repo,
		carrier:    carrier,
		exec:       exec,
		audit:      audit,
		log:        log,
		platform:   platform,
		retryCodes: codes,
	}
}

// Register returns true only when a new tracking was created both in the
// cloud and locally. Duplicates and carrier failures return false with a
// nil error; only storage failures propagate.
func (s *Service) Register(ctx context.Context, req *messages.TrackDeliveryRequest, hdr *messages.MessageHeader) (bool, error) {
	if req == nil || req.TrackingID == "" {
		return false, errors.New("trackingId is required")
	}

	existing, err := s.repo.FindByTrackingID(ctx, req.TrackingID)
	if err != nil {
		return false, err
	}
	if existing != nil {
		s.log.Info("tracking already registered", "trackingId", req.TrackingID)
		return false, nil
	}

	nt := aftership.NewTracking{
		TrackingNumber: req.TrackingID,
		Slug:           req.CarrierCode,
		CustomFields:   map[string]string{customFieldPlatformID: s.platform},
	}
	if req.Participant != nil {
		nt.CustomFields[customFieldUserID] = strconv.FormatInt(req.Participant.UserID, 10)
		if req.Participant.ExternalID != "" {
			nt.CustomFields[customFieldExternalID] = req.Participant.ExternalID
		}
	}

	reqBody, _ := json.Marshal(nt)
	start := time.Now().UTC()
	tr, callErr := resilience.Execute(ctx, s.exec, func(ctx context.Context) (*aftership.Tracking, error) {
		return s.carrier.CreateTracking(ctx, nt)
	})
	if callErr != nil {
		return false, s.recordFailure(ctx, req, hdr, callErr, reqBody, start)
	}

	s.audit.Record(&messages.ExternalLog{
		EventType:         "CREATE_TRACKING",
		TrackingID:        req.TrackingID,
		RequestTimestamp:  start.UnixMilli(),
		ResponseTimestamp: time.Now().UTC().UnixMilli(),
		ResponseCode:      201,
		RequestBody:       string(reqBody),
	})

	// never the create response's tag: the first observed checkpoint
	// must not look like a duplicate
	row := &models.TrackingRequest{
		TrackingID:         req.TrackingID,
		Operation:          models.OperationTrackDelivery,
		Provider:           req.CarrierCode,
		Status:             models.StatusPendingTracking,
		FulfillmentOrderID: req.FulfillmentOrderID,
	}
	// keep the create response around so the poll loop can recover the slug
	if rb, err := json.Marshal(tr); err == nil {
		cr := string(rb)
		ct := models.CarrierResponseTracking
		row.CarrierResponse = &cr
		row.CarrierResponseType = &ct
	}
	if req.Participant != nil {
		b, _ := json.Marshal(req.Participant)
		p := string(b)
		row.Participant = &p
	}
	if hdr != nil {
		b, _ := json.Marshal(hdr)
		h := string(b)
		row.Header = &h
	}

	created, err := s.repo.CreateTrackingRequest(ctx, row)
	if err != nil {
		return false, err
	}
	if !created {
		// lost a race with a concurrent consumer, the other one won
		s.log.Info("tracking already registered", "trackingId", req.TrackingID)
		return false, nil
	}

	metrics.RegistrationsCreated.Inc()
	s.log.Info("tracking registered", "trackingId", req.TrackingID, "carrier", req.CarrierCode)
	return true, nil
}

func (s *Service) recordFailure(ctx context.Context, req *messages.TrackDeliveryRequest, hdr *messages.MessageHeader, callErr error, reqBody []byte, start time.Time) error {
	code, hasCode := aftership.ErrorCode(callErr)
	retriable := false
	if hasCode {
		_, retriable = s.retryCodes[code]
	}
	metrics.RegistrationsFailed.WithLabelValues(strconv.FormatBool(retriable)).Inc()
	s.log.Error("tracking registration failed",
		"trackingId", req.TrackingID, "err", callErr, "code", code, "retriable", retriable)

	row := &models.TrackingError{TrackingID: req.TrackingID}
	if hasCode {
		row.ErrorCode = &code
	}
	b, _ := json.Marshal(req)
	snapshot := string(b)
	row.TrackDeliveryRequest = &snapshot
	if hdr != nil {
		hb, _ := json.Marshal(hdr)
		h := string(hb)
		row.Header = &h
	}
	if err := s.repo.UpsertTrackingError(ctx, row); err != nil {
		return err
	}

	// a rejected call never reached the cloud, nothing to audit
	if !errors.Is(callErr, resilience.ErrRejected) {
		s.audit.Record(&messages.ExternalLog{
			EventType:         "CREATE_TRACKING",
			TrackingID:        req.TrackingID,
			Description:       callErr.Error(),
			RequestTimestamp:  start.UnixMilli(),
			ResponseTimestamp: time.Now().UTC().UnixMilli(),
			ResponseCode:      code,
			RequestBody:       string(reqBody),
		})
	}
	return nil
}
