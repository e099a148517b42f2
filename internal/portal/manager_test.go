package portal

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/muurk/wifimgr/internal/credentials"
	"github.com/muurk/wifimgr/internal/params"
	"github.com/muurk/wifimgr/internal/radio/sim"
	"github.com/muurk/wifimgr/internal/system"
	"github.com/muurk/wifimgr/internal/wifi"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeWeb struct {
	mu        sync.Mutex
	handler   http.Handler
	serveErr  error
	shutdowns int
}

func (f *fakeWeb) Serve(h http.Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.serveErr != nil {
		return f.serveErr
	}
	f.handler = h
	return nil
}

func (f *fakeWeb) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
	return nil
}

type fakeDNS struct {
	mu      sync.Mutex
	target  net.IP
	running bool
	starts  int
}

func (f *fakeDNS) Start(target net.IP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target = target
	f.running = true
	f.starts++
	return nil
}

func (f *fakeDNS) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

type harness struct {
	m         *Manager
	radio     *sim.Radio
	store     *credentials.MemoryStore
	web       *fakeWeb
	dns       *fakeDNS
	clock     *fakeClock
	restarter *system.RecordingRestarter
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		radio: sim.New(
			sim.Network{SSID: "HomeNet", Password: "secret123", RSSI: -55, Channel: 6, Encryption: wifi.EncryptionWPA2},
			sim.Network{SSID: "Cafe", RSSI: -80, Channel: 1},
		),
		store:     credentials.NewMemoryStore(),
		web:       &fakeWeb{},
		dns:       &fakeDNS{},
		clock:     newFakeClock(),
		restarter: &system.RecordingRestarter{},
	}
	h.m = New(cfg, Deps{
		Driver:    h.radio,
		Store:     h.store,
		Web:       h.web,
		DNS:       h.dns,
		Restarter: h.restarter,
	},
		WithClock(h.clock.Now),
		WithRand(func(int) int { return 0 }),
		WithResetDelay(0),
		WithTickInterval(time.Millisecond),
	)
	return h
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.APName = "wifimgr-setup"
	cfg.ConnectTimeout = time.Second
	return cfg
}

func (h *harness) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Host = "192.168.4.1"
	rec := httptest.NewRecorder()
	h.m.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStartConfigPortalModeless(t *testing.T) {
	h := newHarness(t, testConfig())

	var transitions []string
	h.m.OnStateChange(func(from, to State) { transitions = append(transitions, to.String()) })
	apCalled := false
	h.m.SetAPCallback(func(m *Manager) {
		apCalled = true
		if m.State() != StatePortalActive {
			t.Errorf("AP callback ran in state %s", m.State())
		}
	})

	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatalf("StartConfigPortalModeless() error = %v", err)
	}

	if !h.m.IsConfigPortalActive() {
		t.Errorf("State() = %s, want active", h.m.State())
	}
	if !apCalled {
		t.Error("AP callback not invoked")
	}
	ap := h.radio.AP()
	if ap == nil || ap.SSID != "wifimgr-setup" || ap.Channel != 1 {
		t.Errorf("AP = %+v", ap)
	}
	if !h.dns.running || h.dns.target.String() != "192.168.4.1" {
		t.Errorf("DNS running=%v target=%v", h.dns.running, h.dns.target)
	}
	if h.web.handler == nil {
		t.Error("web server was not given a handler")
	}
	if want := []string{"PORTAL_STARTING", "PORTAL_ACTIVE"}; strings.Join(transitions, ",") != strings.Join(want, ",") {
		t.Errorf("transitions = %v, want %v", transitions, want)
	}

	if err := h.m.StartConfigPortalModeless(context.Background(), false); !errors.Is(err, ErrPortalActive) {
		t.Errorf("second start error = %v, want ErrPortalActive", err)
	}
}

func TestPortalTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.PortalTimeout = 5 * time.Second
	h := newHarness(t, cfg)

	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(4 * time.Second)
	h.m.Loop(context.Background())
	if !h.m.IsConfigPortalActive() {
		t.Fatalf("portal closed early: %s", h.m.State())
	}

	h.clock.Advance(time.Second)
	h.m.Loop(context.Background())

	if h.m.Outcome() != StatePortalTimedOut {
		t.Errorf("Outcome() = %s, want timed out", h.m.Outcome())
	}
	if h.m.State() != StateIdle {
		t.Errorf("State() = %s, want idle", h.m.State())
	}
	if h.radio.AP() != nil {
		t.Error("AP still up after timeout")
	}
	if h.dns.running {
		t.Error("DNS still running after timeout")
	}
	if h.web.shutdowns != 1 {
		t.Errorf("web shutdowns = %d, want 1", h.web.shutdowns)
	}
}

func TestPortalTimeoutResetByActivity(t *testing.T) {
	cfg := testConfig()
	cfg.PortalTimeout = 5 * time.Second
	h := newHarness(t, cfg)
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(4 * time.Second)
	h.get(t, "/")
	h.clock.Advance(4 * time.Second)
	h.m.Loop(context.Background())

	if !h.m.IsConfigPortalActive() {
		t.Errorf("portal timed out despite activity: outcome %s", h.m.Outcome())
	}
}

func TestSaveConnects(t *testing.T) {
	h := newHarness(t, testConfig())
	saved := false
	h.m.SetSaveConfigCallback(func() {
		saved = true
		c, _ := h.store.LoadSlot(0)
		if c.SSID != "HomeNet" {
			t.Errorf("save callback ran before persistence: %v", c)
		}
	})
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	rec := h.get(t, "/wifisave?s=HomeNet&p=secret123")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Credentials saved") {
		t.Fatalf("save response %d:\n%s", rec.Code, rec.Body.String())
	}

	c, err := h.store.LoadSlot(0)
	if err != nil {
		t.Fatal(err)
	}
	if c.SSID != "HomeNet" || c.Password != "secret123" {
		t.Errorf("slot 0 = %+v", c)
	}

	h.m.Loop(context.Background())

	if !saved {
		t.Error("save callback not invoked")
	}
	begins := h.radio.BeginCalls()
	if len(begins) == 0 || begins[0].SSID != "HomeNet" || begins[0].Password != "secret123" {
		t.Errorf("Begin calls = %v", begins)
	}
	if h.m.Outcome() != StatePortalSaved || h.m.State() != StateIdle {
		t.Errorf("outcome %s state %s", h.m.Outcome(), h.m.State())
	}
	if h.m.LastStatus() != wifi.StatusConnected {
		t.Errorf("LastStatus() = %s", h.m.LastStatus())
	}
	if h.radio.AP() != nil {
		t.Error("AP still up after successful save")
	}
}

func TestSaveFailedConnectKeepsPortal(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.get(t, "/wifisave?s=HomeNet&p=wrongpass")
	h.m.Loop(context.Background())

	if !h.m.IsConfigPortalActive() {
		t.Errorf("State() = %s, want active after failed join", h.m.State())
	}
	if h.m.LastStatus() != wifi.StatusConnectFailed {
		t.Errorf("LastStatus() = %s", h.m.LastStatus())
	}
	if h.radio.AP() == nil {
		t.Error("AP should be up after failed join")
	}
}

func TestSaveBreakAfterConfig(t *testing.T) {
	cfg := testConfig()
	cfg.BreakAfterConfig = true
	h := newHarness(t, cfg)
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.get(t, "/wifisave?s=HomeNet&p=wrongpass")
	h.m.Loop(context.Background())

	if h.m.State() != StateIdle || h.m.Outcome() != StatePortalSaved {
		t.Errorf("state %s outcome %s, want idle after saved", h.m.State(), h.m.Outcome())
	}
}

func TestSaveSecondSlotAndStaticIP(t *testing.T) {
	h := newHarness(t, testConfig())
	h.m.AddParameter(params.NewParameter("mqtt", "MQTT server", "", 20))
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.get(t, "/wifisave?s=Gone&p=x&s1=HomeNet&p1=secret123&ip=192.168.1.50&gw=192.168.1.1&sn=255.255.255.0&timezone=Europe/London&mqtt=broker.lan")

	ipcfg, found, err := h.store.LoadStaticIPConfig()
	if err != nil || !found || ipcfg.IP.String() != "192.168.1.50" {
		t.Errorf("static IP = %+v found=%v err=%v", ipcfg, found, err)
	}
	values, _ := h.store.LoadParams()
	if values["mqtt"] != "broker.lan" {
		t.Errorf("params = %v", values)
	}
	if h.m.GetTimezoneName() != "Europe/London" {
		t.Errorf("timezone = %q", h.m.GetTimezoneName())
	}

	h.m.Loop(context.Background())

	begins := h.radio.BeginCalls()
	if len(begins) != 2 || begins[0].SSID != "Gone" || begins[1].SSID != "HomeNet" {
		t.Errorf("Begin calls = %v, want slot 0 then slot 1", begins)
	}
	if h.m.Outcome() != StatePortalSaved {
		t.Errorf("Outcome() = %s", h.m.Outcome())
	}
}

func TestSaveValidation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"no ssid", "/wifisave?p=secret", "Please enter a network name"},
		{"bad ip", "/wifisave?s=HomeNet&ip=300.1.1.1", "not a valid IPv4 address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
				t.Fatal(err)
			}

			rec := h.get(t, tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body missing %q:\n%s", tt.want, rec.Body.String())
			}
			h.m.Loop(context.Background())
			if len(h.radio.BeginCalls()) != 0 {
				t.Error("rejected form triggered a connection attempt")
			}
		})
	}
}

type failingStore struct {
	*credentials.MemoryStore
}

func (failingStore) SaveSlot(int, wifi.Credential) error {
	return credentials.NewIOError("write failed", "/data/wifi.yaml", errors.New("no space left on device"))
}

func TestSavePersistenceFailure(t *testing.T) {
	radio := sim.New(sim.Network{SSID: "HomeNet", Password: "secret123"})
	m := New(testConfig(), Deps{Driver: radio, Store: failingStore{credentials.NewMemoryStore()}}, WithRand(func(int) int { return 0 }))
	if err := m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/wifisave?s=HomeNet&p=secret123", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "could not be saved") {
		t.Errorf("expected error message in form:\n%s", rec.Body.String())
	}
	if m.GetSSID(0) != "HomeNet" {
		t.Errorf("in-memory slot = %q, want the attempted value", m.GetSSID(0))
	}

	m.Loop(context.Background())
	if !m.IsConfigPortalActive() {
		t.Errorf("State() = %s, want active", m.State())
	}
	if len(radio.BeginCalls()) != 0 {
		t.Error("connection attempted after persistence failure")
	}
}

func TestCloseEndpoint(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.get(t, "/close")
	if !h.m.IsConfigPortalActive() {
		t.Error("close should take effect on the next tick")
	}
	h.m.Loop(context.Background())

	if h.m.Outcome() != StatePortalClosedByUser || h.m.State() != StateIdle {
		t.Errorf("outcome %s state %s", h.m.Outcome(), h.m.State())
	}
}

func TestResetEndpoint(t *testing.T) {
	h := newHarness(t, testConfig())
	h.store.SaveSlot(0, wifi.NewCredential("HomeNet", "secret123"))
	h.store.SaveSlot(1, wifi.NewCredential("Backup", "backup123"))
	h.m = New(testConfig(), Deps{Driver: h.radio, Store: h.store, Restarter: h.restarter},
		WithResetDelay(0), WithRand(func(int) int { return 0 }))

	if h.m.GetSSID(1) != "Backup" {
		t.Fatalf("GetSSID(1) = %q, want stored slot", h.m.GetSSID(1))
	}
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	rec := h.get(t, "/r")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	h.m.Loop(context.Background())

	if h.restarter.Count() != 1 {
		t.Errorf("restarts = %d, want 1", h.restarter.Count())
	}
	for i := 0; i < wifi.SlotCount; i++ {
		c, err := h.store.LoadSlot(i)
		if err != nil || !c.Empty() {
			t.Errorf("slot %d = %+v err %v, want empty", i, c, err)
		}
		if h.m.GetSSID(i) != "" {
			t.Errorf("GetSSID(%d) = %q after reset", i, h.m.GetSSID(i))
		}
	}
	if !h.radio.StoredCredential().Empty() {
		t.Error("radio still holds credentials")
	}
}

type unresettableStore struct {
	*credentials.MemoryStore
}

func (unresettableStore) Reset() error {
	return credentials.NewIOError("reset failed", "/data/wifi.db", errors.New("read-only file system"))
}

func TestResetRestartsWhenStoreFails(t *testing.T) {
	h := newHarness(t, testConfig())
	store := unresettableStore{credentials.NewMemoryStore()}
	store.SaveSlot(0, wifi.NewCredential("HomeNet", "secret123"))
	h.m = New(testConfig(), Deps{Driver: h.radio, Store: store, Restarter: h.restarter},
		WithResetDelay(0), WithRand(func(int) int { return 0 }))

	err := h.m.Reset(context.Background())
	if err == nil || !strings.Contains(err.Error(), "read-only file system") {
		t.Errorf("Reset() error = %v, want the store error", err)
	}
	if h.restarter.Count() != 1 {
		t.Errorf("restarts = %d, want 1", h.restarter.Count())
	}
	calls := strings.Join(h.radio.Calls(), " ")
	if !strings.Contains(calls, "Disconnect") {
		t.Errorf("radio calls = %s, want a Disconnect", calls)
	}
	if !h.radio.StoredCredential().Empty() {
		t.Error("radio still holds credentials")
	}
}

func TestResetEndpointRestartsWhenStoreFails(t *testing.T) {
	h := newHarness(t, testConfig())
	h.m = New(testConfig(), Deps{Driver: h.radio, Store: unresettableStore{credentials.NewMemoryStore()}, Restarter: h.restarter},
		WithResetDelay(0), WithRand(func(int) int { return 0 }))
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	h.get(t, "/r")
	h.m.Loop(context.Background())

	if h.restarter.Count() != 1 {
		t.Errorf("restarts = %d, want 1", h.restarter.Count())
	}
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		check func(error) bool
	}{
		{
			name:  "AP refused",
			setup: func(h *harness) { h.radio.FailAP = errors.New("interface busy") },
			check: IsAPStartError,
		},
		{
			name:  "channel out of range",
			setup: func(h *harness) { h.m.SetConfigPortalChannel(13) },
			check: IsInvalidConfigError,
		},
		{
			name:  "short AP password",
			setup: func(h *harness) { h.m.update(func(c *Config) { c.APPassword = "short" }) },
			check: IsInvalidConfigError,
		},
		{
			name:  "web server",
			setup: func(h *harness) { h.web.serveErr = errors.New("address in use") },
			check: func(err error) bool { return isType(err, ErrTypeWebServer) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testConfig())
			tt.setup(h)

			err := h.m.StartConfigPortalModeless(context.Background(), false)
			if !tt.check(err) {
				t.Fatalf("error = %v", err)
			}
			if h.m.State() != StateIdle {
				t.Errorf("State() = %s, want idle", h.m.State())
			}
			if h.radio.AP() != nil {
				t.Error("AP left up after failed start")
			}
			if h.dns.running {
				t.Error("DNS left running after failed start")
			}
		})
	}
}

func TestStartConfigPortalReturnsOnCancel(t *testing.T) {
	h := newHarness(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	connected, err := h.m.StartConfigPortal(ctx)
	if connected || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("StartConfigPortal() = %v, %v", connected, err)
	}
	if h.m.State() != StateIdle || h.m.Outcome() != StatePortalClosedByUser {
		t.Errorf("state %s outcome %s", h.m.State(), h.m.Outcome())
	}
}

func TestAutoConnect(t *testing.T) {
	h := newHarness(t, testConfig())
	h.m.SetCredentials("HomeNet", "secret123", "", "")

	ok, err := h.m.AutoConnect(context.Background())
	if !ok || err != nil {
		t.Fatalf("AutoConnect() = %v, %v", ok, err)
	}
	for _, c := range h.radio.Calls() {
		if strings.HasPrefix(c, "StartAP") {
			t.Error("portal raised although slot 0 connected")
		}
	}
}

func TestAutoConnectFallsBackToPortal(t *testing.T) {
	h := newHarness(t, testConfig())
	h.m.SetCredentials("Gone", "x", "", "")
	h.m.SetAPCallback(func(m *Manager) { m.StopConfigPortal() })

	ok, err := h.m.AutoConnect(context.Background())
	if ok || err != nil {
		t.Errorf("AutoConnect() = %v, %v", ok, err)
	}
	if h.m.Outcome() != StatePortalClosedByUser {
		t.Errorf("Outcome() = %s", h.m.Outcome())
	}
}

func TestAutoConnectRecordsRadioStoredFailure(t *testing.T) {
	h := newHarness(t, testConfig())
	h.radio.SetStored(wifi.NewCredential("HomeNet", "wrong-pass"))

	var atPortal wifi.Status
	h.m.SetAPCallback(func(m *Manager) {
		atPortal = m.LastStatus()
		m.StopConfigPortal()
	})

	ok, err := h.m.AutoConnect(context.Background())
	if ok || err != nil {
		t.Fatalf("AutoConnect() = %v, %v", ok, err)
	}
	if atPortal != wifi.StatusConnectFailed {
		t.Errorf("LastStatus() when the portal opened = %s, want %s", atPortal, wifi.StatusConnectFailed)
	}
}

func TestAccessors(t *testing.T) {
	h := newHarness(t, Config{Hostname: "garage_door!!"})

	if got := h.m.Config().Hostname; got != "garagedoor" {
		t.Errorf("hostname = %q", got)
	}
	if got := h.m.GetConfigPortalSSID(); got != "garagedoor" {
		t.Errorf("AP name = %q, want hostname-derived", got)
	}
	h.m.SetCredentials("a", "b", "c", "d")
	if h.m.GetSSID(0) != "a" || h.m.GetPW(1) != "d" || h.m.GetSSID(2) != "" {
		t.Error("slot accessors returned wrong values")
	}
	if h.m.SetHostname("bad name") {
		t.Error("SetHostname should report a sanitized name")
	}
	if GetStatus(wifi.StatusConnected) != "WL_CONNECTED" {
		t.Errorf("GetStatus() = %s", GetStatus(wifi.StatusConnected))
	}
	if info := h.m.InfoAsString(); !strings.Contains(info, "MAC: 02:00:00:00:00:01") {
		t.Errorf("InfoAsString() = %s", info)
	}
}
