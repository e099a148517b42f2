package portalclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/wifimgr/internal/credentials"
	"github.com/muurk/wifimgr/internal/portal"
	"github.com/muurk/wifimgr/internal/radio/sim"
	"github.com/muurk/wifimgr/internal/wifi"
)

const mockState = `{"Status":"WL_IDLE_STATUS","SSID":"","Station_IP":"0.0.0.0","Soft_AP_IP":"192.168.4.1","Gateway":"","Portal":"PORTAL_ACTIVE","Hostname":"sensor"}`

func fastClient(url string) *Client {
	c := NewClientWithURL(url)
	c.RetryDelay = time.Millisecond
	c.MaxRetryDelay = 5 * time.Millisecond
	return c
}

func TestNewClient(t *testing.T) {
	client := NewClient("192.168.4.1", 80)
	if client.BaseURL != "http://192.168.4.1:80" {
		t.Errorf("BaseURL = %s", client.BaseURL)
	}
	if client.HTTPClient == nil || client.HTTPClient.Timeout != DefaultTimeout {
		t.Error("HTTPClient should use DefaultTimeout")
	}

	client = NewClientWithURL("http://sensor.local/")
	if client.BaseURL != "http://sensor.local" {
		t.Errorf("BaseURL = %s, trailing slash should be trimmed", client.BaseURL)
	}

	client.SetRetry(5, 2*time.Second)
	client.SetTimeout(time.Second)
	if client.MaxRetries != 5 || client.RetryDelay != 2*time.Second || client.HTTPClient.Timeout != time.Second {
		t.Errorf("settings not applied: %+v", client)
	}
}

func TestGetStateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/state" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(mockState))
	}))
	defer srv.Close()

	state, err := fastClient(srv.URL).GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if state.Portal != "PORTAL_ACTIVE" || state.SoftAPIP != "192.168.4.1" || state.Hostname != "sensor" {
		t.Errorf("state = %+v", state)
	}
	if state.Connected() {
		t.Error("idle device reported as connected")
	}
}

func TestNonRetryableErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		wantTry int32
	}{
		{"not found", http.StatusNotFound, "File Not Found", IsHTTPError, 1},
		{"bad json", http.StatusOK, "{", IsParseError, 1},
		{"server error", http.StatusInternalServerError, "boom", IsHTTPError, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := fastClient(srv.URL).GetState(context.Background())
			if !tt.check(err) {
				t.Errorf("error = %v, wrong classification", err)
			}
			if calls.Load() != tt.wantTry {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantTry)
			}
		})
	}
}

func TestSaveWiFiRejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/wifisave" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Error(err)
		}
		if r.PostForm.Get("s") != "HomeNet" || r.PostForm.Get("ip") != "10.0.0.9" {
			t.Errorf("form = %v", r.PostForm)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`<div class="msg err">Gateway &amp; subnet required</div>`))
	}))
	defer srv.Close()

	err := fastClient(srv.URL).SaveWiFi(context.Background(), &Provision{SSID: "HomeNet", Password: "pw", IP: "10.0.0.9"})
	if !IsRejected(err) {
		t.Fatalf("error = %v, want rejected", err)
	}
	if !strings.Contains(err.Error(), "Gateway & subnet required") {
		t.Errorf("error = %v, want portal message", err)
	}
	if calls.Load() != 1 {
		t.Errorf("rejected save retried %d times", calls.Load())
	}
}

func TestProvisionValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Provision
		wantErr bool
	}{
		{"ssid only", Provision{SSID: "HomeNet"}, false},
		{"second slot only", Provision{SSID1: "Backup"}, false},
		{"no ssid", Provision{Password: "x"}, true},
		{"long ssid", Provision{SSID: strings.Repeat("s", 33)}, true},
		{"long password", Provision{SSID: "a", Password: strings.Repeat("p", 65)}, true},
		{"bad ip", Provision{SSID: "a", IP: "300.0.0.1"}, true},
		{"ipv6 dns", Provision{SSID: "a", DNS1: "::1"}, true},
		{"static", Provision{SSID: "a", IP: "10.0.0.2", Gateway: "10.0.0.1", Subnet: "255.255.255.0"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidationError(err) {
				t.Errorf("error type = %v", err)
			}
		})
	}
}

func TestProvisionToFormData(t *testing.T) {
	p := Provision{SSID: "HomeNet", Password: "secret", Gateway: "10.0.0.1", Timezone: "Europe/Paris", Params: map[string]string{"mqtt": "broker.lan"}}
	form := p.ToFormData()

	want := map[string]string{"s": "HomeNet", "p": "secret", "gw": "10.0.0.1", "timezone": "Europe/Paris", "mqtt": "broker.lan"}
	for k, v := range want {
		if form.Get(k) != v {
			t.Errorf("form[%s] = %q, want %q", k, form.Get(k), v)
		}
	}
	for _, k := range []string{"s1", "p1", "ip", "dns1"} {
		if _, ok := form[k]; ok {
			t.Errorf("unset field %s was sent", k)
		}
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := fastClient(url)
	client.MaxRetries = 1
	_, err := client.Scan(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("error = %v, want network error", err)
	}
	if GetTroubleshootingHint(err) == "" {
		t.Error("missing hint")
	}
}

func TestFormatNetworks(t *testing.T) {
	out := FormatNetworks([]Network{
		{SSID: "HomeNet", Encryption: int(wifi.EncryptionWPA2), Quality: "90"},
		{SSID: "Cafe", Encryption: int(wifi.EncryptionOpen), Quality: "40"},
	})
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.Contains(lines[1], "HomeNet") || !strings.Contains(lines[1], "90%") || !strings.Contains(lines[1], "WPA2") {
		t.Errorf("row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "open") {
		t.Errorf("row = %q", lines[2])
	}
	if FormatNetworks(nil) != "No networks found.\n" {
		t.Error("empty list message")
	}
}

// startPortal runs a real portal on the simulated radio behind httptest.
func startPortal(t *testing.T) (*portal.Manager, *sim.Radio, *httptest.Server) {
	t.Helper()
	radio := sim.New(
		sim.Network{SSID: "HomeNet", Password: "secret123", RSSI: -55, Channel: 6, Encryption: wifi.EncryptionWPA2},
		sim.Network{SSID: "Cafe", RSSI: -80, Channel: 1},
	)
	cfg := portal.DefaultConfig()
	cfg.Hostname = "sensor"
	cfg.ConnectTimeout = time.Second
	m := portal.New(cfg, portal.Deps{Driver: radio, Store: credentials.NewMemoryStore()}, portal.WithRand(func(int) int { return 0 }))
	if err := m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(m.Handler())
	t.Cleanup(srv.Close)
	return m, radio, srv
}

func TestProvisionAgainstPortal(t *testing.T) {
	m, radio, srv := startPortal(t)
	client := fastClient(srv.URL)
	ctx := context.Background()

	state, err := client.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Portal != "PORTAL_ACTIVE" || state.Hostname != "sensor" {
		t.Errorf("state = %+v", state)
	}

	networks, err := client.Scan(ctx)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(networks) != 2 || networks[0].SSID != "HomeNet" || !networks[0].Secured() || networks[1].Secured() {
		t.Errorf("networks = %+v", networks)
	}

	if err := client.SaveWiFi(ctx, &Provision{SSID: "HomeNet", Password: "secret123"}); err != nil {
		t.Fatalf("SaveWiFi() error = %v", err)
	}
	m.Loop(ctx)

	if m.Outcome() != portal.StatePortalSaved {
		t.Errorf("Outcome() = %s", m.Outcome())
	}
	if begins := radio.BeginCalls(); len(begins) != 1 || begins[0].SSID != "HomeNet" {
		t.Errorf("Begin calls = %v", begins)
	}
}

func TestCloseAgainstPortal(t *testing.T) {
	m, _, srv := startPortal(t)
	if err := fastClient(srv.URL).Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	m.Loop(context.Background())
	if m.Outcome() != portal.StatePortalClosedByUser {
		t.Errorf("Outcome() = %s", m.Outcome())
	}
}

func TestWatchAgainstPortal(t *testing.T) {
	_, _, srv := startPortal(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var first LiveMessage
	err := fastClient(srv.URL).Watch(ctx, func(msg LiveMessage) bool {
		first = msg
		return false
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if first.Type != "state" || first.State == nil || first.State.Portal != "PORTAL_ACTIVE" {
		t.Errorf("first message = %+v", first)
	}

	var got []Network
	err = fastClient(srv.URL).RequestScan(ctx, true, func(n []Network) bool {
		got = n
		return false
	})
	if err != nil {
		t.Fatalf("RequestScan() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("networks = %+v", got)
	}
}
