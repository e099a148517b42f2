package main

import (
	"bytes"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/muurk/wifimgr/internal/portalclient"
)

// fakePortal serves the subset of the portal API the CLI talks to.
type fakePortal struct {
	mu     sync.Mutex
	saved  url.Values
	closed bool
	reject string
}

func (p *fakePortal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch r.URL.Path {
	case "/state":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"Status":"WL_DISCONNECTED","SSID":"","Station_IP":"0.0.0.0","Soft_AP_IP":"192.168.4.1","Gateway":"","Portal":"PORTAL_ACTIVE","Hostname":"sensor"}`))
	case "/scan":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"SSID":"HomeNet","Encryption":3,"Quality":"90"},{"SSID":"Cafe","Encryption":0,"Quality":"40"}]`))
	case "/wifisave":
		_ = r.ParseForm()
		if p.reject != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`<div class="msg err">` + p.reject + `</div>`))
			return
		}
		p.saved = r.PostForm
		_, _ = w.Write([]byte("saved"))
	case "/close":
		p.closed = true
		_, _ = w.Write([]byte("closing"))
	default:
		http.NotFound(w, r)
	}
}

func startPortal(t *testing.T) (*fakePortal, []string) {
	t.Helper()
	fp := &fakePortal{}
	srv := httptest.NewServer(fp)
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		deviceIP, outputFormat, refresh = "", "detailed", false
		provision = portalclient.Provision{}
	})
	return fp, []string{"--device", host, "--port", port}
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStateCommand(t *testing.T) {
	_, target := startPortal(t)

	out, err := run(append([]string{"state"}, target...)...)
	if err != nil {
		t.Fatalf("state: %v\n%s", err, out)
	}
	for _, want := range []string{"Hostname:   sensor", "PORTAL_ACTIVE", "192.168.4.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = run(append([]string{"state", "--format", "json"}, target...)...)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"Portal": "PORTAL_ACTIVE"`) {
		t.Errorf("json output:\n%s", out)
	}
}

func TestNetworksCommand(t *testing.T) {
	_, target := startPortal(t)

	out, err := run(append([]string{"networks"}, target...)...)
	if err != nil {
		t.Fatalf("networks: %v\n%s", err, out)
	}
	if !strings.Contains(out, "HomeNet") || !strings.Contains(out, "Cafe") {
		t.Errorf("output:\n%s", out)
	}
}

func TestProvisionCommand(t *testing.T) {
	fp, target := startPortal(t)

	args := append([]string{"provision", "--ssid", "HomeNet", "--password", "secret123",
		"--ssid1", "Backup", "--password1", "backup123", "--param", "mqtt=broker.lan"}, target...)
	out, err := run(args...)
	if err != nil {
		t.Fatalf("provision: %v\n%s", err, out)
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	want := map[string]string{"s": "HomeNet", "p": "secret123", "s1": "Backup", "p1": "backup123", "mqtt": "broker.lan"}
	for k, v := range want {
		if got := fp.saved.Get(k); got != v {
			t.Errorf("form %s = %q, want %q", k, got, v)
		}
	}
	if !strings.Contains(out, "Send credentials") {
		t.Errorf("output missing step lines:\n%s", out)
	}
}

func TestProvisionRejected(t *testing.T) {
	fp, target := startPortal(t)
	fp.reject = "SSID not found"

	out, err := run(append([]string{"provision", "--ssid", "HomeNet", "--password", "secret123"}, target...)...)
	if err == nil {
		t.Fatalf("expected an error, output:\n%s", out)
	}
	if !strings.Contains(out, "SSID not found") {
		t.Errorf("portal message missing:\n%s", out)
	}
}

func TestCloseCommand(t *testing.T) {
	fp, target := startPortal(t)

	if out, err := run(append([]string{"close"}, target...)...); err != nil {
		t.Fatalf("close: %v\n%s", err, out)
	}
	fp.mu.Lock()
	defer fp.mu.Unlock()
	if !fp.closed {
		t.Error("portal was not asked to close")
	}
}

func TestDescribeAddsHint(t *testing.T) {
	err := describe(&portalclient.ClientError{Type: portalclient.ErrTypeRejected, Message: "bad password"})
	if !strings.Contains(err.Error(), "bad password") || !strings.Contains(err.Error(), "\n") {
		t.Errorf("describe() = %q", err)
	}
}
