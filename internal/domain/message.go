package domain

import (
	"encoding/json"
	"fmt"
)

// Envelope is the single frame format on the websocket: a named event
// plus an event-specific payload. Signaling payloads (SDP offers,
// answers, ICE candidates) stay opaque — the relay never looks inside.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope for the given event.
// A nil data produces an envelope with no payload.
func NewEnvelope(event string, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	env.Data = raw
	return env, nil
}

// Inbound events.
const (
	EventRegister           = "register"
	EventSendLocation       = "send-location"
	EventToggleAvailability = "toggle-availability"
	EventOffer              = "offer"
	EventAnswer             = "answer"
	EventICECandidate       = "ice-candidate"
	EventCallRejected       = "call-rejected"
	EventCallEnded          = "call-ended"
	EventHire               = "hire"
	EventHireResponse       = "hire-response"
	EventCancelService      = "cancel-service"
	EventEndService         = "end-service"
)

// Outbound events.
const (
	EventPeerList         = "peer-list"
	EventHireRequest      = "hire-request"
	EventHireAccepted     = "hire-accepted"
	EventHireRejected     = "hire-rejected"
	EventOnJob            = "on-job"
	EventServiceCancelled = "service-cancelled"
	EventServiceEnded     = "service-ended"
)

// RegisterPayload binds a connection to an application identity.
type RegisterPayload struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// OfferPayload carries an opaque SDP offer. Inbound it names a target;
// outbound the relay annotates it with the sender identity so the
// recipient knows who to answer.
type OfferPayload struct {
	Target string          `json:"target,omitempty"`
	Offer  json.RawMessage `json:"offer"`
	Sender string          `json:"sender,omitempty"`
}

// AnswerPayload carries an opaque SDP answer to a target identity.
type AnswerPayload struct {
	Target string          `json:"target,omitempty"`
	Answer json.RawMessage `json:"answer"`
}

// CandidatePayload carries an opaque ICE candidate to a target identity.
type CandidatePayload struct {
	Target    string          `json:"target,omitempty"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallControlPayload is the shared shape of call-rejected and call-ended.
type CallControlPayload struct {
	Target string `json:"target,omitempty"`
}

// HirePayload asks a technician to take a job for a customer.
type HirePayload struct {
	TechnicianID string `json:"technicianId"`
	ClientID     string `json:"clientId"`
}

// Hire response values.
const (
	HireAccept = "accept"
	HireReject = "reject"
)

// HireResponsePayload resolves a pending hire request.
type HireResponsePayload struct {
	Response     string `json:"response"`
	ClientID     string `json:"clientId"`
	TechnicianID string `json:"technicianId"`
}

// ServicePayload terminates an engagement, by cancellation or completion.
type ServicePayload struct {
	ClientID     string `json:"clientId"`
	TechnicianID string `json:"technicianId"`
}

// HireRequestPayload is delivered to the technician being hired.
type HireRequestPayload struct {
	ClientID string     `json:"clientId"`
	Location Coordinate `json:"location"`
}

// HireResultPayload is delivered to the customer on accept or reject.
type HireResultPayload struct {
	TechnicianID string `json:"technicianId"`
}

// OnJobPayload tells the technician which customer it now serves.
type OnJobPayload struct {
	ClientID string `json:"clientId"`
}

// ServiceNoticePayload carries the human-readable termination message.
type ServiceNoticePayload struct {
	Message string `json:"message"`
}
