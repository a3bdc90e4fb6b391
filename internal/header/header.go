package header

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/ShipRelay/internal/broker/messages"
	"github.com/BearBump/ShipRelay/internal/models"
	"github.com/google/uuid"
)

const (
	headerVersion      = "2.1.3"
	messageSpecVersion = "2.1.2"
	sourceAfterShip    = "AfterShip"

	defaultWorkflowName = "SALIVARY_KIT_ORDER"
	originatorBackend   = "PTBE"
	patternWorkflow     = "WORKFLOW"
	triggerEvent        = "EVENT"

	SpecTrackDeliveryResponse            = "TRACK_DELIVERY_RESPONSE"
	SpecFulfillmentTrackDeliveryResponse = "FULFILLMENT_TRACK_DELIVERY_RESPONSE"
)

// Stored parses the correlation header persisted with a tracking request.
// A missing or unparsable header is not an error; callers fabricate a
// default one instead.
func Stored(req *models.TrackingRequest) *messages.MessageHeader {
	if req == nil || req.Header == nil || *req.Header == "" {
		return nil
	}
	var h messages.MessageHeader
	if err := json.Unmarshal([]byte(*req.Header), &h); err != nil {
		slog.Warn("parse stored message header", "tracking_id", req.TrackingID, "error", err.Error())
		return nil
	}
	return &h
}

// ForResponse builds the header for an outbound response: fresh message
// id and timestamp, workflow/tenant/program identity inherited from the
// saved header, or a fabricated default when none was stored.
func ForResponse(saved *messages.MessageHeader, userID int64, messageSpec string) *messages.MessageHeader {
	if saved == nil {
		return defaultHeader(userID, messageSpec)
	}
	return &messages.MessageHeader{
		MessageID:          uuid.NewString(),
		HeaderVersion:      saved.HeaderVersion,
		WorkflowName:       saved.WorkflowName,
		WorkflowInstanceID: saved.WorkflowInstanceID,
		MessageSpec:        messageSpec,
		MessageSpecVersion: saved.MessageSpecVersion,
		MessageTimestamp:   time.Now().UnixMilli(),
		Source:             sourceAfterShip,
		Originator:         originatorBackend,
		Pattern:            saved.Pattern,
		Trigger:            saved.Trigger,
		UserID:             userID,
		TenantID:           saved.TenantID,
		ProgramID:          saved.ProgramID,
	}
}

func defaultHeader(userID int64, messageSpec string) *messages.MessageHeader {
	return &messages.MessageHeader{
		MessageID:          uuid.NewString(),
		HeaderVersion:      headerVersion,
		WorkflowName:       defaultWorkflowName,
		WorkflowInstanceID: uuid.NewString(),
		MessageSpec:        messageSpec,
		MessageSpecVersion: messageSpecVersion,
		MessageTimestamp:   time.Now().UnixMilli(),
		Source:             sourceAfterShip,
		Originator:         originatorBackend,
		Pattern:            patternWorkflow,
		Trigger:            triggerEvent,
		UserID:             userID,
	}
}
