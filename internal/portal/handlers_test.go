package portal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/wifimgr/internal/params"
	"github.com/muurk/wifimgr/internal/wifi"
)

func TestPortalHeaders(t *testing.T) {
	h := newHarness(t, testConfig())

	rec := h.get(t, "/")
	if got := rec.Header().Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
		t.Errorf("Cache-Control = %q", got)
	}
	if rec.Header().Get("Pragma") != "no-cache" || rec.Header().Get("Expires") != "-1" {
		t.Errorf("headers = %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS header sent while disabled")
	}

	h.m.SetCORSHeader()
	rec = h.get(t, "/state")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestCaptiveRedirect(t *testing.T) {
	h := newHarness(t, Config{Hostname: "sensor"})

	tests := []struct {
		name     string
		host     string
		path     string
		wantCode int
	}{
		{"foreign host on unknown path", "connectivitycheck.gstatic.com", "/generate_204", http.StatusFound},
		{"foreign host on root", "captive.apple.com", "/", http.StatusFound},
		{"portal ip unknown path", "192.168.4.1", "/favicon.ico", http.StatusNotFound},
		{"own hostname", "sensor.local", "/nothing", http.StatusNotFound},
		{"portal ip root", "192.168.4.1:80", "/", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Host = tt.host
			rec := httptest.NewRecorder()
			h.m.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusFound {
				if loc := rec.Header().Get("Location"); loc != "http://192.168.4.1/" {
					t.Errorf("Location = %q", loc)
				}
			}
			if rec.Header().Get("Cache-Control") == "" {
				t.Error("portal headers missing")
			}
		})
	}
}

func TestStateEndpoint(t *testing.T) {
	h := newHarness(t, Config{Hostname: "sensor"})
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	rec := h.get(t, "/state")
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var state map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, rec.Body.String())
	}
	for _, key := range []string{"Status", "SSID", "Station_IP", "Soft_AP_IP", "Gateway", "Portal", "Hostname"} {
		if _, ok := state[key]; !ok {
			t.Errorf("missing key %s in %v", key, state)
		}
	}
	if state["Soft_AP_IP"] != "192.168.4.1" || state["Portal"] != "PORTAL_ACTIVE" || state["Hostname"] != "sensor" {
		t.Errorf("state = %v", state)
	}
}

func TestScanEndpoint(t *testing.T) {
	h := newHarness(t, testConfig())

	rec := h.get(t, "/scan")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"Quality":"90"`) {
		t.Errorf("quality should be a string: %s", rec.Body.String())
	}

	var items []scanItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].SSID != "HomeNet" || items[0].Encryption != int(wifi.EncryptionWPA2) || items[0].Quality != "90" {
		t.Errorf("first item = %+v", items[0])
	}
	if items[1].SSID != "Cafe" || items[1].Quality != "40" {
		t.Errorf("second item = %+v", items[1])
	}

	h.get(t, "/scan")
	if h.radio.ScanCount() != 1 {
		t.Errorf("hardware scans = %d, want 1 (cached)", h.radio.ScanCount())
	}
}

func TestWiFiPage(t *testing.T) {
	h := newHarness(t, testConfig())
	h.m.SetCredentials("HomeNet", "secret123", "Backup", "pw")
	h.m.SetCustomHeadElement(`<style>.x{}</style><script>alert(1)</script>`)
	p := params.NewParameter("mqtt", "MQTT server", "broker.lan", 40)
	h.m.AddParameter(p)

	body := h.get(t, "/wifi").Body.String()
	for _, want := range []string{"HomeNet", "Cafe", `value="Backup"`, `name="mqtt"`, `value="broker.lan"`, "<style>.x{}</style>"} {
		if !strings.Contains(body, want) {
			t.Errorf("wifi page missing %s", want)
		}
	}
	if strings.Contains(body, "alert(1)") {
		t.Error("custom head script was not stripped")
	}
	if strings.Contains(body, "secret123") {
		t.Error("stored password leaked into the form")
	}
}

func TestInfoPage(t *testing.T) {
	h := newHarness(t, Config{Hostname: "sensor"})
	body := h.get(t, "/i").Body.String()
	for _, want := range []string{"sensor", "02:00:00:00:00:01", "WL_IDLE_STATUS"} {
		if !strings.Contains(body, want) {
			t.Errorf("info page missing %s", want)
		}
	}
}

func TestLiveFeed(t *testing.T) {
	h := newHarness(t, testConfig())
	if err := h.m.StartConfigPortalModeless(context.Background(), false); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(h.m.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg liveMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "state" || msg.State == nil || msg.State.Portal != "PORTAL_ACTIVE" {
		t.Errorf("first message = %+v", msg)
	}

	if err := conn.WriteJSON(liveRequest{Type: "scan"}); err != nil {
		t.Fatal(err)
	}
	msg = liveMessage{}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "scan" || len(msg.Networks) != 2 {
		t.Errorf("scan message = %+v", msg)
	}

	// A subscriber makes Loop rescan once the interval has passed.
	deadline := time.Now().Add(2 * time.Second)
	for h.m.hub.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	scans := h.radio.ScanCount()
	h.clock.Advance(ModelessScanInterval)
	h.m.Loop(context.Background())
	if h.radio.ScanCount() != scans+1 {
		t.Errorf("hardware scans = %d, want %d", h.radio.ScanCount(), scans+1)
	}
}

func TestHubSendAfterClose(t *testing.T) {
	h := newHub()
	c := &wsClient{send: make(chan liveMessage, 1)}
	h.add(c)

	if !h.sendTo(c, liveMessage{Type: "state"}) {
		t.Fatal("sendTo() = false for a subscribed client")
	}
	if h.sendTo(c, liveMessage{Type: "state"}) {
		t.Error("sendTo() = true with a full buffer")
	}

	h.closeAll()
	if h.sendTo(c, liveMessage{Type: "scan"}) {
		t.Error("sendTo() = true after the hub closed the client")
	}
	if h.count() != 0 {
		t.Errorf("count() = %d after closeAll", h.count())
	}
}

func TestChooseChannel(t *testing.T) {
	strongestOn := func(ch int) []wifi.ScanResult {
		return []wifi.ScanResult{{SSID: "weak", RSSI: -90, Channel: 3}, {SSID: "strong", RSSI: -40, Channel: ch}}
	}

	tests := []struct {
		name    string
		fixed   int
		cached  []wifi.ScanResult
		roll    int
		want    int
		wantErr bool
	}{
		{"fixed", 6, nil, 0, 6, false},
		{"fixed upper bound", 11, nil, 0, 11, false},
		{"fixed too high", 12, nil, 0, 0, true},
		{"negative", -1, nil, 0, 0, true},
		{"auto no scan", 0, nil, 4, 5, false},
		{"auto avoids strongest", 0, strongestOn(5), 4, 6, false},
		{"auto wraps", 0, strongestOn(11), 10, 1, false},
		{"auto other channel", 0, strongestOn(9), 4, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chooseChannel(tt.fixed, tt.cached, func(int) int { return tt.roll })
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("chooseChannel() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateAPPassword(t *testing.T) {
	for _, pw := range []string{"", "12345678", strings.Repeat("x", 63)} {
		if err := validateAPPassword(pw); err != nil {
			t.Errorf("validateAPPassword(%d chars) = %v", len(pw), err)
		}
	}
	for _, pw := range []string{"1234567", strings.Repeat("x", 64)} {
		if err := validateAPPassword(pw); !IsInvalidConfigError(err) {
			t.Errorf("validateAPPassword(%d chars) = %v, want invalid config", len(pw), err)
		}
	}
}

func TestSanitizeHostname(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sensor-1", "sensor-1"},
		{"-leading", "leading"},
		{"trailing-", "trailing"},
		{"with space_and.dots", "withspaceanddots"},
		{"a-very-long-hostname-that-overflows", "a-very-long-hostname-tha"},
		{"exactly-twenty-four-ch-x", "exactly-twenty-four-ch-x"},
		{"cut-at-dash-twenty-four--x", "cut-at-dash-twenty-four"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeHostname(tt.in); got != tt.want {
			t.Errorf("SanitizeHostname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPortalErrors(t *testing.T) {
	cause := errors.New("nl80211: device busy")
	err := NewAPStartError("wifimgr-setup", cause)

	if !errors.Is(err, cause) {
		t.Error("PortalError should unwrap to its cause")
	}
	if !IsAPStartError(err) || !IsRetryable(err) {
		t.Errorf("classification wrong for %v", err)
	}
	if IsRetryable(NewInvalidConfigError("x")) {
		t.Error("invalid config should not be retryable")
	}
	if !strings.Contains(GetTroubleshootingHint(err), "AP mode") {
		t.Errorf("hint = %q", GetTroubleshootingHint(err))
	}
	if GetTroubleshootingHint(cause) == "" {
		t.Error("plain errors should still get a hint")
	}
}
