package presence

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/techlink-io/techlink/internal/domain"
	"github.com/techlink-io/techlink/internal/infra/registry"
)

type fakeSender struct {
	mu   sync.Mutex
	sent map[string][]domain.Envelope
	fail map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string][]domain.Envelope), fail: make(map[string]bool)}
}

func (f *fakeSender) Send(connID string, env domain.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[connID] {
		return errors.New("connection gone")
	}
	f.sent[connID] = append(f.sent[connID], env)
	return nil
}

func (f *fakeSender) lastPeerList(t *testing.T, connID string) []domain.Peer {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	envs := f.sent[connID]
	if len(envs) == 0 {
		t.Fatalf("no envelopes sent to %s", connID)
	}
	last := envs[len(envs)-1]
	if last.Event != domain.EventPeerList {
		t.Fatalf("last event = %q, want peer-list", last.Event)
	}
	var list []domain.Peer
	if err := json.Unmarshal(last.Data, &list); err != nil {
		t.Fatalf("decode peer-list: %v", err)
	}
	return list
}

func TestBroadcastFiltersUnavailableTechnicians(t *testing.T) {
	reg := registry.New()
	send := newFakeSender()
	b := New(reg, send)

	reg.Register("c1", "alice", domain.RoleCustomer)
	reg.Register("t1", "bob", domain.RoleTechnician)
	reg.Register("t2", "carol", domain.RoleTechnician)
	reg.SetAvailability("t1", true)

	b.BroadcastToCustomers()

	list := send.lastPeerList(t, "c1")
	if len(list) != 1 {
		t.Fatalf("peer-list len = %d, want 1", len(list))
	}
	if list[0].UserID != "bob" {
		t.Errorf("peer-list[0] = %q, want bob", list[0].UserID)
	}
}

func TestBroadcastReachesOnlyCustomers(t *testing.T) {
	reg := registry.New()
	send := newFakeSender()
	b := New(reg, send)

	reg.Register("c1", "alice", domain.RoleCustomer)
	reg.Register("c2", "dave", domain.RoleCustomer)
	reg.Register("t1", "bob", domain.RoleTechnician)
	reg.SetAvailability("t1", true)

	b.BroadcastToCustomers()

	if len(send.sent["c1"]) != 1 || len(send.sent["c2"]) != 1 {
		t.Error("every customer should receive the broadcast")
	}
	if len(send.sent["t1"]) != 0 {
		t.Error("technicians should not receive the customer broadcast")
	}
}

func TestBroadcastSurvivesDeadTarget(t *testing.T) {
	reg := registry.New()
	send := newFakeSender()
	b := New(reg, send)

	reg.Register("c1", "alice", domain.RoleCustomer)
	reg.Register("c2", "dave", domain.RoleCustomer)
	send.fail["c1"] = true

	b.BroadcastToCustomers()

	if len(send.sent["c2"]) != 1 {
		t.Error("a failed delivery must not abort delivery to other customers")
	}
}

func TestBroadcastEmptyRoster(t *testing.T) {
	reg := registry.New()
	send := newFakeSender()
	b := New(reg, send)

	reg.Register("c1", "alice", domain.RoleCustomer)
	b.BroadcastToCustomers()

	list := send.lastPeerList(t, "c1")
	if len(list) != 0 {
		t.Errorf("peer-list len = %d, want 0", len(list))
	}
}

func TestSendOnJobView(t *testing.T) {
	reg := registry.New()
	send := newFakeSender()
	b := New(reg, send)

	reg.Register("c1", "alice", domain.RoleCustomer)
	reg.UpdateLocation("c1", domain.Coordinate{Lat: 1, Lng: 2})
	reg.Register("c2", "dave", domain.RoleCustomer)
	reg.Register("t1", "bob", domain.RoleTechnician)

	if err := b.SendOnJobView("t1", "alice"); err != nil {
		t.Fatalf("SendOnJobView: %v", err)
	}

	list := send.lastPeerList(t, "t1")
	if len(list) != 1 {
		t.Fatalf("narrowed view len = %d, want 1", len(list))
	}
	if list[0].UserID != "alice" {
		t.Errorf("narrowed view entry = %q, want alice", list[0].UserID)
	}
	if list[0].Location == nil || list[0].Location.Lat != 1 {
		t.Error("narrowed view should carry the customer location")
	}
	if len(send.sent["c2"]) != 0 {
		t.Error("narrowed view must only go to the accepting technician")
	}
}
