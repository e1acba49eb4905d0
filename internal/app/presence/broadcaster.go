// Package presence pushes filtered peer lists to interested
// connections whenever registry state affecting presence changes.
package presence

import (
	"log"

	"github.com/techlink-io/techlink/internal/domain"
	"github.com/techlink-io/techlink/internal/infra/metrics"
	"github.com/techlink-io/techlink/internal/infra/registry"
)

// Sender delivers an envelope to one connection.
type Sender interface {
	Send(connID string, env domain.Envelope) error
}

// Broadcaster computes peer lists from registry snapshots and fans them
// out. Delivery is fire-and-forget per target: one dead connection
// never aborts delivery to the rest.
type Broadcaster struct {
	reg  *registry.Registry
	send Sender
}

// New creates a broadcaster over the given registry.
func New(reg *registry.Registry, send Sender) *Broadcaster {
	return &Broadcaster{reg: reg, send: send}
}

// BroadcastToCustomers pushes the list of available technicians to
// every customer connection. Unavailable technicians never appear in
// this view.
func (b *Broadcaster) BroadcastToCustomers() {
	list := b.reg.Snapshot(func(p domain.Peer) bool {
		return p.Role == domain.RoleTechnician && p.Available
	})
	env, err := domain.NewEnvelope(domain.EventPeerList, list)
	if err != nil {
		log.Printf("[presence] peer-list encode failed: %v", err)
		return
	}

	targets := b.reg.Connections(func(p domain.Peer) bool {
		return p.Role == domain.RoleCustomer
	})
	metrics.BroadcastFanout.Observe(float64(len(targets)))

	for _, connID := range targets {
		if err := b.send.Send(connID, env); err != nil {
			metrics.RelayFailures.WithLabelValues(domain.EventPeerList).Inc()
			log.Printf("[presence] peer-list to %s failed: %v", connID, err)
			continue
		}
		metrics.RelayDelivered.WithLabelValues(domain.EventPeerList).Inc()
	}
}

// SendOnJobView pushes the narrowed post-accept view to the technician
// that just took a job: a peer list containing exactly the hiring
// customer's entry, so its client can render the counterpart without
// the full roster.
func (b *Broadcaster) SendOnJobView(technicianConnID, clientID string) error {
	list := b.reg.Snapshot(func(p domain.Peer) bool {
		return p.UserID == clientID
	})
	env, err := domain.NewEnvelope(domain.EventPeerList, list)
	if err != nil {
		return err
	}
	if err := b.send.Send(technicianConnID, env); err != nil {
		metrics.RelayFailures.WithLabelValues(domain.EventPeerList).Inc()
		return err
	}
	metrics.RelayDelivered.WithLabelValues(domain.EventPeerList).Inc()
	return nil
}
