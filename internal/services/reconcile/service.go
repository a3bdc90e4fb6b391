package reconcile

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
	"github.com/BearBump/ShipRelay/internal/header"
	"github.com/BearBump/ShipRelay/internal/integrations/aftership"
	"github.com/BearBump/ShipRelay/internal/metrics"
	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/BearBump/ShipRelay/internal/status"
	"github.com/BearBump/ShipRelay/internal/storage/pgstore"
	"github.com/pkg/errors"
)

const (
	customFieldUserID     = "userId"
	customFieldExternalID = "externalId"
	customFieldPlatformID = "platformId"
)

type Repository interface {
	WithRequestForUpdate(ctx context.Context, trackingID string,
		fn func(req *models.TrackingRequest) (*pgstore.StatusUpdate, error)) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Service turns carrier status observations into bus events. Every
// observation is reconciled against the stored request under a row lock:
// the publish decision and the bookkeeping write commit together.
//
// Requests without a fulfillment order id feed the legacy coarse channel,
// the rest feed the fulfillment channel with the full fine-grained
// vocabulary.
type Service struct {
	repo     Repository
	coarse   Publisher
	fine     Publisher
	suppress status.SuppressionList
	platform string
	log      *slog.Logger
}

func New(repo Repository, coarsePub, finePub Publisher, suppress status.SuppressionList, platform string, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		coarse:   coarsePub,
		fine:     finePub,
		suppress: suppress,
		platform: platform,
		log:      log,
	}
}

// ProcessNotification handles one webhook payload. Payloads for other
// platforms and unknown tracking ids are dropped without error.
func (s *Service) ProcessNotification(ctx context.Context, body []byte) error {
	var n aftership.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return errors.Wrap(err, "decode notification")
	}
	if n.Msg == nil || n.Msg.TrackingNumber == "" {
		return errors.New("notification without tracking")
	}

	// only an explicit, different platform is someone else's traffic;
	// a blank field does not disqualify the notification
	if p := n.Msg.CustomFields[customFieldPlatformID]; p != "" && !strings.EqualFold(p, s.platform) {
		s.log.Info("notification for another platform ignored",
			"trackingId", n.Msg.TrackingNumber, "platformId", p)
		return nil
	}

	return s.apply(ctx, n.Msg, string(body), models.CarrierResponseNotification, false)
}

// ProcessTracking handles one polled tracking. Unlike the webhook path an
// unchanged status leaves the row completely untouched, so the package
// stays in the stale window for the next cycle.
func (s *Service) ProcessTracking(ctx context.Context, tr *aftership.Tracking) error {
	if tr == nil || tr.TrackingNumber == "" {
		return errors.New("tracking without tracking number")
	}
	raw, _ := json.Marshal(tr)
	return s.apply(ctx, tr, string(raw), models.CarrierResponseTracking, true)
}

func (s *Service) apply(ctx context.Context, tr *aftership.Tracking, raw, respType string, skipUnchanged bool) error {
	found, err := s.repo.WithRequestForUpdate(ctx, tr.TrackingNumber, func(req *models.TrackingRequest) (*pgstore.StatusUpdate, error) {
		if skipUnchanged && unchanged(req, tr) {
			return nil, nil
		}

		var pubErr error
		if req.FulfillmentOrderID == nil {
			pubErr = s.publishCoarse(ctx, req, tr)
		} else {
			pubErr = s.publishFine(ctx, req, tr)
		}
		if pubErr != nil {
			return nil, pubErr
		}

		return &pgstore.StatusUpdate{
			Status:               tr.Tag,
			SubStatusCode:        optional(tr.Subtag),
			SubStatusDescription: optional(tr.SubtagMessage),
			CarrierResponse:      &raw,
			CarrierResponseType:  respType,
		}, nil
	})
	if err != nil {
		return err
	}
	if !found {
		s.log.Warn("observation for unknown tracking dropped", "trackingId", tr.TrackingNumber)
		return nil
	}
	return nil
}

func (s *Service) publishCoarse(ctx context.Context, req *models.TrackingRequest, tr *aftership.Tracking) error {
	if req.Status != "" && tr.Tag != "" && req.Status == tr.Tag {
		metrics.ResponsesSuppressed.WithLabelValues("coarse", "duplicate").Inc()
		return nil
	}
	if s.suppress.Contains(tr.Subtag) {
		metrics.ResponsesSuppressed.WithLabelValues("coarse", "suppression_list").Inc()
		s.log.Info("sub-status suppressed", "trackingId", req.TrackingID, "subtag", tr.Subtag)
		return nil
	}
	coarse := status.Coarse(tr.Tag)
	if !status.CoarsePublishable(coarse) {
		metrics.ResponsesSuppressed.WithLabelValues("coarse", "not_publishable").Inc()
		return nil
	}

	participant := participantOf(req, tr, s.log)
	resp := messages.TrackDeliveryResponse{
		Operation:   req.Operation,
		Provider:    req.Provider,
		TrackingID:  req.TrackingID,
		Participant: participant,
		Dates:       expectedDeliveryDates(tr.ExpectedDelivery),
		Status:      coarse,
		DateTime:    statusTime(tr),
		Header:      header.ForResponse(header.Stored(req), userIDOf(participant), header.SpecTrackDeliveryResponse),
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "marshal track delivery response")
	}
	if err := s.coarse.Publish(ctx, []byte(req.TrackingID), b); err != nil {
		return err
	}
	metrics.ResponsesPublished.WithLabelValues("coarse", coarse).Inc()
	s.log.Info("status published", "channel", "coarse", "trackingId", req.TrackingID, "status", coarse)
	return nil
}

func (s *Service) publishFine(ctx context.Context, req *models.TrackingRequest, tr *aftership.Tracking) error {
	if sameFineStatus(req, tr) {
		metrics.ResponsesSuppressed.WithLabelValues("fine", "duplicate").Inc()
		return nil
	}
	if s.suppress.Contains(tr.Subtag) {
		metrics.ResponsesSuppressed.WithLabelValues("fine", "suppression_list").Inc()
		s.log.Info("sub-status suppressed", "trackingId", req.TrackingID, "subtag", tr.Subtag)
		return nil
	}
	fine := status.Fine(tr.Tag, tr.Subtag)
	if fine == models.FineStatusUnrecognized {
		metrics.ResponsesSuppressed.WithLabelValues("fine", "not_publishable").Inc()
		return nil
	}

	participant := participantOf(req, tr, s.log)
	resp := messages.FulfillmentTrackDeliveryResponse{
		FulfillmentOrderID: *req.FulfillmentOrderID,
		CarrierCode:        req.Provider,
		TrackingID:         req.TrackingID,
		Participant:        participant,
		Dates:              expectedDeliveryDates(tr.ExpectedDelivery),
		Status:             fine,
		StatusTime:         statusTime(tr),
		Header:             header.ForResponse(header.Stored(req), userIDOf(participant), header.SpecFulfillmentTrackDeliveryResponse),
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "marshal fulfillment response")
	}
	if err := s.fine.Publish(ctx, []byte(req.TrackingID), b); err != nil {
		return err
	}
	metrics.ResponsesPublished.WithLabelValues("fine", fine).Inc()
	s.log.Info("status published", "channel", "fine", "trackingId", req.TrackingID,
		"fulfillmentOrderId", *req.FulfillmentOrderID, "status", fine)
	return nil
}

// unchanged reports whether the observation carries nothing beyond the
// stored state. The fine channel also compares the sub-status.
func unchanged(req *models.TrackingRequest, tr *aftership.Tracking) bool {
	if req.FulfillmentOrderID == nil {
		return req.Status != "" && tr.Tag != "" && req.Status == tr.Tag
	}
	return sameFineStatus(req, tr)
}

func sameFineStatus(req *models.TrackingRequest, tr *aftership.Tracking) bool {
	if req.Status == "" || tr.Tag == "" || req.Status != tr.Tag {
		return false
	}
	return tr.Subtag != "" && req.SubStatusCode != nil && *req.SubStatusCode == tr.Subtag
}

// statusTime is the carrier's own update time in unix millis, or -1 when
// the carrier did not report one.
func statusTime(tr *aftership.Tracking) int64 {
	if tr.LastUpdatedAt == nil {
		return -1
	}
	return tr.LastUpdatedAt.UnixMilli()
}

// participantOf prefers the participant stored with the request; when it
// is absent or unparsable the custom fields stamped onto the tracking at
// registration still identify the owner.
func participantOf(req *models.TrackingRequest, tr *aftership.Tracking, log *slog.Logger) *messages.Participant {
	if req.Participant != nil && *req.Participant != "" {
		var p messages.Participant
		if err := json.Unmarshal([]byte(*req.Participant), &p); err == nil {
			return &p
		}
		log.Warn("stored participant unparsable", "trackingId", req.TrackingID)
	}

	uid, err := strconv.ParseInt(tr.CustomFields[customFieldUserID], 10, 64)
	if err != nil {
		return nil
	}
	return &messages.Participant{
		UserID:     uid,
		ExternalID: tr.CustomFields[customFieldExternalID],
	}
}

func userIDOf(p *messages.Participant) int64 {
	if p == nil {
		return -1
	}
	return p.UserID
}

func expectedDeliveryDates(expected string) []messages.DateEntry {
	if expected == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", expected)
	if err != nil {
		t, err = time.Parse(time.RFC3339, expected)
	}
	if err != nil {
		return nil
	}
	return []messages.DateEntry{{Type: messages.DateTypeExpectedDelivery, Timestamp: t.UnixMilli()}}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
