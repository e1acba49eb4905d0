// Package relay is the inbound dispatch boundary: it maps each
// envelope from a connection's event stream to the registry, the
// presence broadcaster, the signaling router, or the job workflow
// engine, and suppresses every handler error locally. A bad message is
// a no-op plus a journal entry; nothing is reported to the sender and
// nothing crashes the process.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/techlink-io/techlink/internal/app/dispatch"
	"github.com/techlink-io/techlink/internal/app/presence"
	"github.com/techlink-io/techlink/internal/app/signaling"
	"github.com/techlink-io/techlink/internal/domain"
	"github.com/techlink-io/techlink/internal/infra/journal"
	"github.com/techlink-io/techlink/internal/infra/metrics"
	"github.com/techlink-io/techlink/internal/infra/registry"
)

// Sender delivers an envelope to one connection.
type Sender interface {
	Send(connID string, env domain.Envelope) error
}

// Relay routes inbound envelopes. One logical event stream per
// connection feeds Dispatch; the registry is the only shared state.
type Relay struct {
	reg       *registry.Registry
	presence  *presence.Broadcaster
	signaling *signaling.Router
	workflow  *dispatch.Engine
	journal   *journal.Journal
}

// New wires a relay over its collaborators.
func New(reg *registry.Registry, pb *presence.Broadcaster, rt *signaling.Router, wf *dispatch.Engine, jrnl *journal.Journal) *Relay {
	return &Relay{reg: reg, presence: pb, signaling: rt, workflow: wf, journal: jrnl}
}

// HandleConnect is called when the transport reports a new connection.
func (r *Relay) HandleConnect(connID string) {
	log.Printf("[relay] connected: %s", connID)
}

// HandleDisconnect removes the peer and refreshes every customer view.
// A disconnect from a connection that never registered is a no-op
// removal. No job reconciliation happens here: a peer dropping mid-job
// leaves the counterpart's view stale, as in the original service.
func (r *Relay) HandleDisconnect(connID string) {
	if p, ok := r.reg.Remove(connID); ok {
		log.Printf("[relay] disconnected: %s (%s %s)", connID, p.Role, p.UserID)
	} else {
		log.Printf("[relay] disconnected: %s (unregistered)", connID)
	}
	r.presence.BroadcastToCustomers()
	r.syncGauges()
}

// Dispatch routes one envelope from connID.
func (r *Relay) Dispatch(connID string, env domain.Envelope) {
	metrics.EventsInbound.WithLabelValues(eventLabel(env.Event)).Inc()

	if err := r.route(connID, env); err != nil {
		r.suppress(connID, env.Event, err)
	}
	r.syncGauges()
}

func (r *Relay) route(connID string, env domain.Envelope) error {
	switch env.Event {
	case domain.EventRegister:
		return r.register(connID, env.Data)

	case domain.EventSendLocation:
		var c domain.Coordinate
		if err := json.Unmarshal(env.Data, &c); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		if !r.reg.UpdateLocation(connID, c) {
			return fmt.Errorf("send-location: %w", domain.ErrUnregisteredSender)
		}
		r.presence.BroadcastToCustomers()
		return nil

	case domain.EventToggleAvailability:
		var available bool
		if err := json.Unmarshal(env.Data, &available); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
		}
		if !r.reg.SetAvailability(connID, available) {
			if _, ok := r.reg.Get(connID); !ok {
				return fmt.Errorf("toggle-availability: %w", domain.ErrUnregisteredSender)
			}
			return fmt.Errorf("toggle-availability: %w", domain.ErrRoleMismatch)
		}
		r.presence.BroadcastToCustomers()
		return nil

	case domain.EventOffer, domain.EventAnswer, domain.EventICECandidate,
		domain.EventCallRejected, domain.EventCallEnded:
		return r.signaling.Relay(connID, env)

	case domain.EventHire:
		return r.workflow.Hire(connID, env.Data)
	case domain.EventHireResponse:
		return r.workflow.HireResponse(connID, env.Data)
	case domain.EventCancelService:
		return r.workflow.Cancel(connID, env.Data)
	case domain.EventEndService:
		return r.workflow.Complete(connID, env.Data)

	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownEvent, env.Event)
	}
}

func (r *Relay) register(connID string, data json.RawMessage) error {
	var p domain.RegisterPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}
	if p.UserID == "" || !p.Role.Valid() {
		return fmt.Errorf("%w: register needs userId and a known role", domain.ErrBadPayload)
	}

	r.reg.Register(connID, p.UserID, p.Role)
	log.Printf("[relay] registered %s: %s", p.Role, p.UserID)

	// A registering customer needs the current roster immediately.
	// Technicians join unavailable, so the customer view is unchanged.
	if p.Role == domain.RoleCustomer {
		r.presence.BroadcastToCustomers()
	}
	return nil
}

// suppress records a dropped event for operator visibility.
func (r *Relay) suppress(connID, event string, err error) {
	reason := reasonFor(err)
	var userID string
	if p, ok := r.reg.Get(connID); ok {
		userID = p.UserID
	}

	log.Printf("[relay] %s from %s dropped (%s): %v", event, connID, reason, err)
	metrics.EventsSuppressed.WithLabelValues(eventLabel(event), reason).Inc()
	r.journal.Record(reason, connID, userID, event+": "+err.Error())
}

// eventLabel maps an event name to its metric label. Event names are
// client-controlled, so anything outside the protocol collapses to one
// label to keep metric cardinality bounded.
func eventLabel(event string) string {
	switch event {
	case domain.EventRegister, domain.EventSendLocation, domain.EventToggleAvailability,
		domain.EventOffer, domain.EventAnswer, domain.EventICECandidate,
		domain.EventCallRejected, domain.EventCallEnded,
		domain.EventHire, domain.EventHireResponse,
		domain.EventCancelService, domain.EventEndService:
		return event
	default:
		return "unknown"
	}
}

// syncGauges republishes the registry counts after any mutation.
func (r *Relay) syncGauges() {
	customers, technicians, available := r.reg.Counts()
	metrics.ConnectionsActive.WithLabelValues(string(domain.RoleCustomer)).Set(float64(customers))
	metrics.ConnectionsActive.WithLabelValues(string(domain.RoleTechnician)).Set(float64(technicians))
	metrics.TechniciansAvailable.Set(float64(available))
}

// reasonFor maps an error to its journal/metric label.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnresolvedTarget):
		return "unresolved_target"
	case errors.Is(err, domain.ErrUnregisteredSender):
		return "unregistered_sender"
	case errors.Is(err, domain.ErrMissingLocation):
		return "missing_location"
	case errors.Is(err, domain.ErrRoleMismatch):
		return "role_mismatch"
	case errors.Is(err, domain.ErrBadPayload):
		return "bad_payload"
	case errors.Is(err, domain.ErrUnknownEvent):
		return "unknown_event"
	default:
		return "delivery_failed"
	}
}
