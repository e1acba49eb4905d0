// Package dispatch implements the hire workflow: request, accept or
// reject, then cancel or complete, with the availability side effects
// of each transition.
//
// The engine holds no per-pairing job state. Every transition is
// inferred from the message kind and current registry availability, so
// an accept is honored even without a preceding hire. That matches the
// original service; hardening it would change observable behavior, so
// it stays a documented weak invariant and every transition is
// journaled instead.
package dispatch

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/techlink-io/techlink/internal/app/presence"
	"github.com/techlink-io/techlink/internal/domain"
	"github.com/techlink-io/techlink/internal/infra/journal"
	"github.com/techlink-io/techlink/internal/infra/metrics"
	"github.com/techlink-io/techlink/internal/infra/registry"
)

// Sender delivers an envelope to one connection.
type Sender interface {
	Send(connID string, env domain.Envelope) error
}

// Engine drives the hire/accept/cancel/complete lifecycle.
type Engine struct {
	reg      *registry.Registry
	send     Sender
	presence *presence.Broadcaster
	journal  *journal.Journal
}

// New creates a workflow engine.
func New(reg *registry.Registry, send Sender, pb *presence.Broadcaster, jrnl *journal.Journal) *Engine {
	return &Engine{reg: reg, send: send, presence: pb, journal: jrnl}
}

// Hire asks a technician to take a job for a customer. The request
// carries the customer's location, so a customer without a known
// location cannot hire: the request is dropped (suppressed upstream),
// no protocol error reaches the sender. Availability does not change
// here — only an explicit accept flips it.
func (e *Engine) Hire(senderConnID string, data json.RawMessage) error {
	var p domain.HirePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}

	techConnID, ok := e.reg.Resolve(p.TechnicianID)
	if !ok {
		return fmt.Errorf("hire technician %q: %w", p.TechnicianID, domain.ErrUnresolvedTarget)
	}

	var location *domain.Coordinate
	if clientConnID, ok := e.reg.Resolve(p.ClientID); ok {
		if client, ok := e.reg.Get(clientConnID); ok {
			location = client.Location
		}
	}
	if location == nil {
		return fmt.Errorf("hire for %q: %w", p.ClientID, domain.ErrMissingLocation)
	}

	if err := e.notify(techConnID, domain.EventHireRequest, domain.HireRequestPayload{
		ClientID: p.ClientID,
		Location: *location,
	}); err != nil {
		return err
	}

	log.Printf("[dispatch] %s wants to hire %s", p.ClientID, p.TechnicianID)
	metrics.JobTransitions.WithLabelValues("requested").Inc()
	e.journal.Record("job_requested", senderConnID, p.ClientID, "technician "+p.TechnicianID)
	return nil
}

// HireResponse resolves a pending hire. On accept the technician goes
// unavailable, both parties are notified, and the technician receives
// the narrowed on-job presence view. On reject only the customer is
// told. Each delivery is independent: a missing party skips its notice
// without aborting the rest.
func (e *Engine) HireResponse(senderConnID string, data json.RawMessage) error {
	var p domain.HireResponsePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}

	clientConnID, clientOK := e.reg.Resolve(p.ClientID)
	techConnID, techOK := e.reg.Resolve(p.TechnicianID)

	switch p.Response {
	case domain.HireAccept:
		if techOK {
			e.reg.SetAvailability(techConnID, false)
		}
		if clientOK {
			_ = e.notify(clientConnID, domain.EventHireAccepted, domain.HireResultPayload{TechnicianID: p.TechnicianID})
		}
		if techOK {
			_ = e.notify(techConnID, domain.EventOnJob, domain.OnJobPayload{ClientID: p.ClientID})
			if err := e.presence.SendOnJobView(techConnID, p.ClientID); err != nil {
				log.Printf("[dispatch] on-job view to %s failed: %v", p.TechnicianID, err)
			}
		}
		log.Printf("[dispatch] %s accepted the job from %s", p.TechnicianID, p.ClientID)
		metrics.JobTransitions.WithLabelValues("accepted").Inc()
		e.journal.Record("job_accepted", senderConnID, p.TechnicianID, "client "+p.ClientID)
		return nil

	case domain.HireReject:
		if clientOK {
			_ = e.notify(clientConnID, domain.EventHireRejected, domain.HireResultPayload{TechnicianID: p.TechnicianID})
		}
		log.Printf("[dispatch] %s rejected the job from %s", p.TechnicianID, p.ClientID)
		metrics.JobTransitions.WithLabelValues("rejected").Inc()
		e.journal.Record("job_rejected", senderConnID, p.TechnicianID, "client "+p.ClientID)
		return nil

	default:
		return fmt.Errorf("%w: hire response %q", domain.ErrBadPayload, p.Response)
	}
}

// Cancel terminates an engagement before completion. The technician
// becomes available again regardless of prior state — idempotent, and a
// no-op on a missing technician.
func (e *Engine) Cancel(senderConnID string, data json.RawMessage) error {
	return e.terminate(senderConnID, data, domain.EventServiceCancelled, "cancelled",
		"The job has been cancelled!", "Job Cancelled!")
}

// Complete terminates an engagement as finished work. Same availability
// reset as Cancel; only the event kind and wording differ.
func (e *Engine) Complete(senderConnID string, data json.RawMessage) error {
	return e.terminate(senderConnID, data, domain.EventServiceEnded, "completed",
		"The job has been completed!", "Job completed!")
}

func (e *Engine) terminate(senderConnID string, data json.RawMessage, event, transition, clientMsg, techMsg string) error {
	var p domain.ServicePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadPayload, err)
	}

	if techConnID, ok := e.reg.Resolve(p.TechnicianID); ok {
		e.reg.SetAvailability(techConnID, true)
		_ = e.notify(techConnID, event, domain.ServiceNoticePayload{Message: techMsg})
	}
	if clientConnID, ok := e.reg.Resolve(p.ClientID); ok {
		_ = e.notify(clientConnID, event, domain.ServiceNoticePayload{Message: clientMsg})
	}

	log.Printf("[dispatch] job between %s and %s %s", p.ClientID, p.TechnicianID, transition)
	metrics.JobTransitions.WithLabelValues(transition).Inc()
	e.journal.Record("job_"+transition, senderConnID, p.TechnicianID, "client "+p.ClientID)
	return nil
}

// notify sends one workflow envelope, logging failures locally.
func (e *Engine) notify(connID, event string, payload any) error {
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	if err := e.send.Send(connID, env); err != nil {
		metrics.RelayFailures.WithLabelValues(event).Inc()
		log.Printf("[dispatch] %s to %s failed: %v", event, connID, err)
		return fmt.Errorf("%s: %w", event, err)
	}
	metrics.RelayDelivered.WithLabelValues(event).Inc()
	return nil
}
