package params

import (
	"errors"
	"net/url"
	"strings"
	"testing"
)

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry(2)

	if err := r.Add(NewParameter("server", "MQTT server", "", 40)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	tests := []struct {
		name string
		p    *Parameter
		want error
	}{
		{"nil", nil, ErrMissingID},
		{"missing id", &Parameter{Placeholder: "x"}, ErrMissingID},
		{"duplicate", NewParameter("server", "again", "", 10), ErrDuplicateID},
		{"fits", NewParameter("port", "MQTT port", "1883", 6), nil},
		{"full", NewParameter("token", "Token", "", 32), ErrRegistryFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Add(tt.p); !errors.Is(err, tt.want) {
				t.Errorf("Add() = %v, want %v", err, tt.want)
			}
		})
	}

	if r.AddParameter(NewParameter("extra", "", "", 1)) {
		t.Error("AddParameter() on a full registry should return false")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry(0)
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if !r.AddParameter(NewParameter(id, id, "", 8)) {
			t.Fatalf("AddParameter(%s) rejected", id)
		}
	}
	for i, p := range r.All() {
		if p.ID != ids[i] {
			t.Errorf("All()[%d] = %s, want %s", i, p.ID, ids[i])
		}
	}
}

func TestBind(t *testing.T) {
	r := NewRegistry(0)
	server := NewParameter("server", "MQTT server", "broker.local", 10)
	port := NewParameter("port", "MQTT port", "1883", 6)
	r.Add(server)
	r.Add(port)

	r.Bind(url.Values{"server": {"a-very-long-hostname.example"}})

	if server.Value != "a-very-lon" {
		t.Errorf("server = %q, want truncation to 10 bytes", server.Value)
	}
	if port.Value != "" {
		t.Errorf("missing field should bind to empty, got %q", port.Value)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	r := NewRegistry(0)
	r.Add(NewParameter("server", "MQTT server", "", 40))

	html, err := r.RenderAll()
	if err != nil {
		t.Fatalf("RenderAll() error = %v", err)
	}
	out := string(html)
	for _, want := range []string{`id="server"`, `name="server"`, `maxlength="40"`, `<label for="server">MQTT server</label>`} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered form missing %s:\n%s", want, out)
		}
	}

	r.Bind(url.Values{"server": {"mqtt.home.arpa"}})
	p, ok := r.Get("server")
	if !ok || p.Value != "mqtt.home.arpa" {
		t.Errorf("Get(server) = %+v", p)
	}

	html, _ = Render(p)
	if !strings.Contains(string(html), `value="mqtt.home.arpa"`) {
		t.Errorf("re-rendered value missing:\n%s", html)
	}
}

func TestRenderLabelPlacement(t *testing.T) {
	tests := []struct {
		placement LabelPlacement
		check     func(string) bool
	}{
		{LabelNone, func(s string) bool { return !strings.Contains(s, "<label") }},
		{LabelBefore, func(s string) bool { return strings.Index(s, "<label") < strings.Index(s, "<input") }},
		{LabelAfter, func(s string) bool { return strings.Index(s, "<label") > strings.Index(s, "<input") }},
	}
	for _, tt := range tests {
		p := NewParameter("x", "X", "", 4)
		p.LabelPlacement = tt.placement
		html, err := Render(p)
		if err != nil {
			t.Fatal(err)
		}
		if !tt.check(string(html)) {
			t.Errorf("placement %d rendered %s", tt.placement, html)
		}
	}
}

func TestRenderFiltersCustomAttributes(t *testing.T) {
	p := NewParameter("enabled", "Enabled", "1", 1)
	p.CustomHTML = `type="checkbox" checked onclick="alert(1)"`

	html, err := Render(p)
	if err != nil {
		t.Fatal(err)
	}
	out := string(html)
	if !strings.Contains(out, `type="checkbox"`) || !strings.Contains(out, "checked") {
		t.Errorf("allowed attributes dropped:\n%s", out)
	}
	if strings.Contains(out, "onclick") || strings.Contains(out, "alert") {
		t.Errorf("event handler survived:\n%s", out)
	}
}

func TestRenderEscapesValue(t *testing.T) {
	p := NewParameter("name", "Name", `"><script>x</script>`, 64)
	html, _ := Render(p)
	if strings.Contains(string(html), "<script>") {
		t.Errorf("value not escaped:\n%s", html)
	}
}

func TestSanitizeHead(t *testing.T) {
	out := string(SanitizeHead(`<style>body{color:red}</style><script>alert(1)</script><meta name="viewport" content="width=device-width">`))
	if !strings.Contains(out, "<style>body{color:red}</style>") {
		t.Errorf("style dropped: %s", out)
	}
	if !strings.Contains(out, `<meta name="viewport"`) {
		t.Errorf("meta dropped: %s", out)
	}
	if strings.Contains(out, "script") {
		t.Errorf("script survived: %s", out)
	}
	if SanitizeHead("") != "" {
		t.Error("empty head should stay empty")
	}
}

func TestValuesRestore(t *testing.T) {
	r := NewRegistry(0)
	r.Add(NewParameter("a", "", "1", 4))
	r.Add(NewParameter("b", "", "2", 4))

	saved := r.Values()
	r.Bind(url.Values{})
	r.Restore(saved)
	r.Restore(map[string]string{"unknown": "x"})

	if got := r.Values(); got["a"] != "1" || got["b"] != "2" || len(got) != 2 {
		t.Errorf("Values() after Restore = %v", got)
	}
}
