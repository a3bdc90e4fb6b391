package messages

// Correlation header carried on every message. Responses get a fresh
// message id and timestamp but inherit workflow/tenant/program identity
// from the header stored with the original request.
type MessageHeader struct {
	MessageID          string `json:"messageId"`
	HeaderVersion      string `json:"headerVersion"`
	WorkflowName       string `json:"workflowName,omitempty"`
	WorkflowInstanceID string `json:"workflowInstanceId,omitempty"`
	MessageSpec        string `json:"messageSpec"`
	MessageSpecVersion string `json:"messageSpecVersion"`
	MessageTimestamp   int64  `json:"messageTimestamp"`
	Source             string `json:"source"`
	Originator         string `json:"originator,omitempty"`
	Pattern            string `json:"pattern,omitempty"`
	Trigger            string `json:"trigger,omitempty"`
	UserID             int64  `json:"userId"`
	TenantID           int64  `json:"tenantId,omitempty"`
	ProgramID          int64  `json:"programId,omitempty"`
}

// Participant identifies the internal owner of a shipment. The core
// stores it verbatim and passes it through to responses.
type Participant struct {
	UserID     int64  `json:"userId"`
	ExternalID string `json:"externalId,omitempty"`
}

// TrackDeliveryRequest asks the service to register one package with the
// carrier-tracking cloud.
type TrackDeliveryRequest struct {
	TrackingID         string       `json:"trackingId"`
	CarrierCode        string       `json:"carrierCode"`
	Operation          string       `json:"operation,omitempty"`
	Participant        *Participant `json:"participant,omitempty"`
	FulfillmentOrderID *int64       `json:"fulfillmentOrderId,omitempty"`
}

// TrackDeliveryMessage is the envelope consumed from the request topics:
// the request plus the correlation header of the producing workflow.
type TrackDeliveryMessage struct {
	Request *TrackDeliveryRequest `json:"request"`
	Header  *MessageHeader        `json:"header"`
}

// RetryRequest re-submits a failed registration through the normal
// ingestion path, original header included.
type RetryRequest struct {
	Request *TrackDeliveryRequest `json:"request"`
	Header  *MessageHeader        `json:"header"`
}

const DateTypeExpectedDelivery = "EXPECTED_DELIVERY_DATE"

type DateEntry struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// TrackDeliveryResponse is the coarse-channel status event.
type TrackDeliveryResponse struct {
	Operation   string         `json:"operation"`
	Provider    string         `json:"provider"`
	TrackingID  string         `json:"trackingId"`
	Participant *Participant   `json:"participant,omitempty"`
	Dates       []DateEntry    `json:"dates,omitempty"`
	Status      string         `json:"status"`
	DateTime    int64          `json:"dateTime"`
	Header      *MessageHeader `json:"header"`
}

// FulfillmentTrackDeliveryResponse is the fine-grained-channel status event.
type FulfillmentTrackDeliveryResponse struct {
	FulfillmentOrderID int64          `json:"fulfillmentOrderId"`
	CarrierCode        string         `json:"carrierCode"`
	TrackingID         string         `json:"trackingId"`
	Participant        *Participant   `json:"participant,omitempty"`
	Dates              []DateEntry    `json:"dates,omitempty"`
	Status             string         `json:"status"`
	StatusTime         int64          `json:"statusTime"`
	Header             *MessageHeader `json:"header"`
}

// ExternalLog is the fire-and-forget audit record of one outbound round
// trip to the carrier-tracking cloud.
type ExternalLog struct {
	EventType         string `json:"eventType"`
	TrackingID        string `json:"trackingId,omitempty"`
	Description       string `json:"description,omitempty"`
	RequestTimestamp  int64  `json:"requestTimestamp"`
	ResponseTimestamp int64  `json:"responseTimestamp"`
	ResponseCode      int    `json:"responseCode"`
	RequestBody       string `json:"requestBody,omitempty"`
	ResponseBody      string `json:"responseBody,omitempty"`
}
