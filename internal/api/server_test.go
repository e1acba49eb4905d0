package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/techlink-io/techlink/internal/app/dispatch"
	"github.com/techlink-io/techlink/internal/app/presence"
	"github.com/techlink-io/techlink/internal/app/relay"
	"github.com/techlink-io/techlink/internal/app/signaling"
	"github.com/techlink-io/techlink/internal/domain"
	"github.com/techlink-io/techlink/internal/health"
	"github.com/techlink-io/techlink/internal/infra/journal"
	"github.com/techlink-io/techlink/internal/infra/registry"
	"github.com/techlink-io/techlink/internal/infra/ws"
)

func newTestServer(t *testing.T) *httptest.Server {
	return newTestServerWithJournal(t, nil)
}

func newTestServerWithJournal(t *testing.T, jrnl *journal.Journal) *httptest.Server {
	t.Helper()

	reg := registry.New()
	hub := ws.NewHub(time.Second)
	pb := presence.New(reg, hub)
	rt := signaling.New(reg, hub)
	wf := dispatch.New(reg, hub, pb, jrnl)
	rly := relay.New(reg, pb, rt, wf, jrnl)
	checker := health.NewChecker(reg, jrnl)

	s := NewServer(hub, rly, reg, jrnl, checker, "test")
	s.SetNodeInfo("node-test", "auto")
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(hub.CloseAll)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	env, err := domain.NewEnvelope(event, payload)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var env domain.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	return env
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/api/status", http.StatusOK)
	if body["status"] != "TechLink is running" {
		t.Errorf("status = %v", body["status"])
	}
	if body["node_id"] != "node-test" {
		t.Errorf("node_id = %v, want node-test", body["node_id"])
	}
	if body["region"] != "auto" {
		t.Errorf("region = %v, want auto", body["region"])
	}
	if body["connections"].(float64) != 0 {
		t.Errorf("connections = %v, want 0", body["connections"])
	}
	// Journaling is off, so no job counters are reported.
	if _, ok := body["jobs_24h"]; ok {
		t.Error("jobs_24h should be absent without a journal")
	}
}

func TestStatusJobCounters(t *testing.T) {
	jrnl, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open journal: %v", err)
	}
	t.Cleanup(func() { jrnl.Close() })
	srv := newTestServerWithJournal(t, jrnl)

	jrnl.Record("job_requested", "c1", "C", "technician P")
	jrnl.Record("job_accepted", "t1", "P", "client C")
	jrnl.Record("job_completed", "c1", "P", "client C")

	body := getJSON(t, srv.URL+"/api/status", http.StatusOK)
	jobs, ok := body["jobs_24h"].(map[string]interface{})
	if !ok {
		t.Fatalf("jobs_24h missing or wrong shape: %v", body["jobs_24h"])
	}
	want := map[string]float64{
		"requested": 1, "accepted": 1, "rejected": 0, "cancelled": 0, "completed": 1,
	}
	for k, n := range want {
		if jobs[k].(float64) != n {
			t.Errorf("jobs_24h[%s] = %v, want %v", k, jobs[k], n)
		}
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/api/version", http.StatusOK)
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	body := getJSON(t, srv.URL+"/health", http.StatusOK)
	if body["healthy"] != true {
		t.Errorf("healthy = %v, want true", body["healthy"])
	}
}

func TestEventsEndpointDisabled(t *testing.T) {
	srv := newTestServer(t)
	getJSON(t, srv.URL+"/api/events", http.StatusNotFound)
}

func TestWebsocketHireScenario(t *testing.T) {
	srv := newTestServer(t)

	customer := dial(t, srv)
	tech := dial(t, srv)

	// Customer registers and reports a location; each mutation pushes a
	// fresh roster to every customer.
	sendEvent(t, customer, domain.EventRegister, domain.RegisterPayload{UserID: "C", Role: domain.RoleCustomer})
	env := readEvent(t, customer)
	if env.Event != domain.EventPeerList {
		t.Fatalf("event = %q, want peer-list", env.Event)
	}

	sendEvent(t, customer, domain.EventSendLocation, domain.Coordinate{Lat: 1.5, Lng: 2.5})
	readEvent(t, customer) // roster refresh, still empty

	// Technician registers unavailable, then toggles on. Only the toggle
	// changes what customers see.
	sendEvent(t, tech, domain.EventRegister, domain.RegisterPayload{UserID: "P", Role: domain.RoleTechnician})
	sendEvent(t, tech, domain.EventToggleAvailability, true)

	env = readEvent(t, customer)
	var roster []domain.Peer
	if err := json.Unmarshal(env.Data, &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster) != 1 || roster[0].UserID != "P" {
		t.Fatalf("roster = %+v, want [P]", roster)
	}

	// Hire: the technician receives the request with the customer's
	// location attached.
	sendEvent(t, customer, domain.EventHire, domain.HirePayload{TechnicianID: "P", ClientID: "C"})
	env = readEvent(t, tech)
	if env.Event != domain.EventHireRequest {
		t.Fatalf("event = %q, want hire-request", env.Event)
	}
	var req domain.HireRequestPayload
	if err := json.Unmarshal(env.Data, &req); err != nil {
		t.Fatalf("decode hire-request: %v", err)
	}
	if req.ClientID != "C" || req.Location.Lat != 1.5 {
		t.Fatalf("hire-request = %+v", req)
	}

	// Accept: customer learns who accepted, technician is put on the job
	// and gets the narrowed view.
	sendEvent(t, tech, domain.EventHireResponse, domain.HireResponsePayload{
		Response: domain.HireAccept, ClientID: "C", TechnicianID: "P",
	})

	env = readEvent(t, customer)
	if env.Event != domain.EventHireAccepted {
		t.Fatalf("event = %q, want hire-accepted", env.Event)
	}
	var res domain.HireResultPayload
	if err := json.Unmarshal(env.Data, &res); err != nil || res.TechnicianID != "P" {
		t.Fatalf("hire-accepted = %s err=%v", env.Data, err)
	}

	env = readEvent(t, tech)
	if env.Event != domain.EventOnJob {
		t.Fatalf("event = %q, want on-job", env.Event)
	}
	env = readEvent(t, tech)
	if env.Event != domain.EventPeerList {
		t.Fatalf("event = %q, want narrowed peer-list", env.Event)
	}
	if err := json.Unmarshal(env.Data, &roster); err != nil {
		t.Fatalf("decode narrowed roster: %v", err)
	}
	if len(roster) != 1 || roster[0].UserID != "C" {
		t.Fatalf("narrowed roster = %+v, want [C]", roster)
	}
}

func TestWebsocketSignalingRelay(t *testing.T) {
	srv := newTestServer(t)

	customer := dial(t, srv)
	tech := dial(t, srv)

	sendEvent(t, customer, domain.EventRegister, domain.RegisterPayload{UserID: "C", Role: domain.RoleCustomer})
	readEvent(t, customer)
	sendEvent(t, tech, domain.EventRegister, domain.RegisterPayload{UserID: "P", Role: domain.RoleTechnician})
	sendEvent(t, tech, domain.EventToggleAvailability, true)
	readEvent(t, customer) // roster now lists P, so its registration is visible

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	sendEvent(t, customer, domain.EventOffer, domain.OfferPayload{Target: "P", Offer: sdp})

	env := readEvent(t, tech)
	if env.Event != domain.EventOffer {
		t.Fatalf("event = %q, want offer", env.Event)
	}
	var offer domain.OfferPayload
	if err := json.Unmarshal(env.Data, &offer); err != nil {
		t.Fatalf("decode offer: %v", err)
	}
	if offer.Sender != "C" {
		t.Errorf("sender = %q, want C", offer.Sender)
	}
	if string(offer.Offer) != string(sdp) {
		t.Error("offer body must pass through untouched")
	}
}

func TestWebsocketMalformedFrameIsIgnored(t *testing.T) {
	srv := newTestServer(t)
	conn := dial(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The connection survives and still processes valid envelopes.
	sendEvent(t, conn, domain.EventRegister, domain.RegisterPayload{UserID: "C", Role: domain.RoleCustomer})
	env := readEvent(t, conn)
	if env.Event != domain.EventPeerList {
		t.Fatalf("event = %q, want peer-list", env.Event)
	}
}
