package models

import "time"

// Raw AfterShip checkpoint tags.
const (
	TagInfoReceived       = "InfoReceived"
	TagInTransit          = "InTransit"
	TagOutForDelivery     = "OutForDelivery"
	TagAttemptFail        = "AttemptFail"
	TagDelivered          = "Delivered"
	TagAvailableForPickup = "AvailableForPickup"
	TagException          = "Exception"
	TagExpired            = "Expired"
	TagPending            = "Pending"
)

// Sub-tags that refine a tag into a specific fine-grained status.
const (
	SubTagAvailableForPickup001 = "AvailableForPickup_001"
	SubTagOutForDelivery004     = "OutForDelivery_004"
	SubTagException004          = "Exception_004"
	SubTagException005          = "Exception_005"
	SubTagException007          = "Exception_007"
	SubTagException011          = "Exception_011"
	SubTagException013          = "Exception_013"
)

// Coarse statuses for the legacy response channel.
const (
	CoarseStatusInTransit       = "IN_TRANSIT"
	CoarseStatusDelivered       = "DELIVERED"
	CoarseStatusError           = "ERROR"
	CoarseStatusPendingTracking = "PENDING_TRACKING"
	CoarseStatusUnrecognized    = "UNRECOGNIZED"
)

// Fine-grained statuses for the fulfillment response channel.
const (
	FineStatusInTransit                = "IN_TRANSIT"
	FineStatusDelivered                = "DELIVERED"
	FineStatusAvailableToPickup        = "AVAILABLE_TO_PICKUP"
	FineStatusPending                  = "PENDING"
	FineStatusDeliveryAppointmentSetup = "DELIVERY_APPOINTMENT_SETUP"
	FineStatusReturned                 = "RETURNED"
	FineStatusPkgDelayed               = "PKG_DELAYED"
	FineStatusPkgLost                  = "PKG_LOST"
	FineStatusIncorrectAddress         = "INCORRECT_ADDRESS"
	FineStatusDeliveryFailed           = "DELIVERY_FAILED"
	FineStatusUnrecognized             = "UNRECOGNIZE"
)

// Carrier response payload shapes stored alongside a tracking request.
// NOTIFICATION wraps the tracking object one level deeper than TRACKING.
const (
	CarrierResponseNotification = "NOTIFICATION"
	CarrierResponseTracking     = "TRACKING"
)

const OperationTrackDelivery = "TRACK_DELIVERY"

// StatusPendingTracking is the status of a freshly registered request.
// It never matches a raw checkpoint tag, so the first real observation
// always clears the duplicate check and publishes.
const StatusPendingTracking = "PendingTracking"

// TrackingRequest is one package under observation. Created once by the
// registration service, mutated only by the reconciliation engine, never
// deleted (it is the durable "have we seen this before" cursor).
type TrackingRequest struct {
	ID                   uint64
	TrackingID           string
	Operation            string
	Provider             string
	Participant          *string // serialized participant, stored verbatim
	Status               string  // last applied raw tag
	SubStatusCode        *string
	SubStatusDescription *string
	CarrierResponse      *string
	CarrierResponseType  *string
	FulfillmentOrderID   *int64
	Header               *string // serialized correlation header
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// TrackingError is one outstanding registration failure, upserted by
// tracking id. RetryCount starts at 0 and is bumped on every renewed
// failure; the replay loop stops selecting rows at the configured ceiling.
type TrackingError struct {
	ID                   uint64
	TrackingID           string
	ErrorCode            *int
	RetryCount           int32
	TrackDeliveryRequest *string // serialized original request snapshot
	Header               *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
