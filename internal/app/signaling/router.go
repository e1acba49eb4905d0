// Package signaling relays WebRTC negotiation messages between two
// peers resolved by application identity. The router is stateless and
// never inspects the payloads it forwards.
package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/techlink-io/techlink/internal/domain"
	"github.com/techlink-io/techlink/internal/infra/metrics"
	"github.com/techlink-io/techlink/internal/infra/registry"
)

// Sender delivers an envelope to one connection.
type Sender interface {
	Send(connID string, env domain.Envelope) error
}

// Router relays offer, answer, ice-candidate, call-rejected, and
// call-ended envelopes. All failures are returned for suppression at
// the dispatch boundary; the sender is never told delivery failed.
type Router struct {
	reg  *registry.Registry
	send Sender
}

// New creates a router over the given registry.
func New(reg *registry.Registry, send Sender) *Router {
	return &Router{reg: reg, send: send}
}

// Relay routes one signaling envelope from the given connection.
func (rt *Router) Relay(senderConnID string, env domain.Envelope) error {
	switch env.Event {
	case domain.EventOffer:
		return rt.relayOffer(senderConnID, env.Data)
	case domain.EventAnswer:
		var p domain.AnswerPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		return rt.deliver(env.Event, p.Target, domain.AnswerPayload{Answer: p.Answer})
	case domain.EventICECandidate:
		var p domain.CandidatePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		return rt.deliver(env.Event, p.Target, domain.CandidatePayload{Candidate: p.Candidate})
	case domain.EventCallRejected:
		var p domain.CallControlPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		// The rejection notice carries no payload.
		return rt.deliver(env.Event, p.Target, nil)
	case domain.EventCallEnded:
		var p domain.CallControlPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		return rt.deliver(env.Event, p.Target, domain.CallControlPayload{Target: p.Target})
	default:
		return domain.ErrUnknownEvent
	}
}

// relayOffer forwards an offer annotated with the sender's application
// identity so the recipient knows who to answer. The other relays do
// not echo sender identity.
func (rt *Router) relayOffer(senderConnID string, data json.RawMessage) error {
	var p domain.OfferPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}

	sender, ok := rt.reg.Get(senderConnID)
	if !ok {
		return fmt.Errorf("offer: %w", domain.ErrUnregisteredSender)
	}
	return rt.deliver(domain.EventOffer, p.Target, domain.OfferPayload{
		Offer:  p.Offer,
		Sender: sender.UserID,
	})
}

// deliver resolves the target identity and sends the outbound envelope.
func (rt *Router) deliver(event, target string, payload any) error {
	connID, ok := rt.reg.Resolve(target)
	if !ok {
		return fmt.Errorf("%s to %q: %w", event, target, domain.ErrUnresolvedTarget)
	}

	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := rt.send.Send(connID, env); err != nil {
		metrics.RelayFailures.WithLabelValues(event).Inc()
		return fmt.Errorf("%s to %q: %w", event, target, err)
	}
	metrics.RelayDelivered.WithLabelValues(event).Inc()
	return nil
}
