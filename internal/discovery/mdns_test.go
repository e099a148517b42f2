package discovery

import (
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *zeroconf.ServiceEntry
		wantNil  bool
		wantIP   string
		wantPort int
	}{
		{
			name: "IPv4 entry",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor"},
				HostName:      "sensor.local.",
				Port:          80,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.4.1")},
				Text:          []string{"mac=02:00:00:00:00:01", "mode=portal"},
			},
			wantIP:   "192.168.4.1",
			wantPort: 80,
		},
		{
			name: "no port defaults to 80",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor"},
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantIP:   "10.0.0.5",
			wantPort: 80,
		},
		{
			name: "prefers IPv4",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor"},
				Port:          8080,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.50")},
				AddrIPv6:      []net.IP{net.ParseIP("fe80::2")},
			},
			wantIP:   "192.168.1.50",
			wantPort: 8080,
		},
		{
			name: "IPv6 only",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor"},
				Port:          80,
				AddrIPv6:      []net.IP{net.ParseIP("fe80::1")},
			},
			wantIP:   "fe80::1",
			wantPort: 80,
		},
		{
			name: "no address",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor"},
				Port:          80,
			},
			wantNil: true,
		},
		{
			name: "no instance",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			device := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if device != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", device)
				}
				return
			}
			if device == nil {
				t.Fatal("parseServiceEntry() = nil, want device")
			}
			if device.IP != tt.wantIP {
				t.Errorf("device.IP = %v, want %v", device.IP, tt.wantIP)
			}
			if device.Port != tt.wantPort {
				t.Errorf("device.Port = %v, want %v", device.Port, tt.wantPort)
			}
			if time.Since(device.DiscoveredAt) > time.Second {
				t.Error("DiscoveredAt should be recent")
			}
		})
	}
}

func TestParseServiceEntryText(t *testing.T) {
	entry := &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: "sensor"},
		AddrIPv4:      []net.IP{net.ParseIP("192.168.4.1")},
		Text:          []string{"mac=02:00:00:00:00:01", "flag", "version=a=b"},
	}
	d := parseServiceEntry(entry)
	want := map[string]string{"mac": "02:00:00:00:00:01", "flag": "", "version": "a=b"}
	if !reflect.DeepEqual(d.Metadata, want) {
		t.Errorf("Metadata = %v, want %v", d.Metadata, want)
	}
}

func TestMatches(t *testing.T) {
	d := &Device{Instance: "Sensor", Hostname: "sensor-host.local."}
	for _, name := range []string{"sensor", "Sensor", "sensor-host", "sensor-host.local", "SENSOR-HOST.local."} {
		if !matches(d, name) {
			t.Errorf("matches(%q) = false", name)
		}
	}
	if matches(d, "other") {
		t.Error("matches(other) = true")
	}
}

func TestInfoText(t *testing.T) {
	info := Info{Instance: "sensor", MAC: "02:00:00:00:00:01", Mode: ModeStation}
	want := []string{"mac=02:00:00:00:00:01", "mode=station"}
	if got := info.Text(); !reflect.DeepEqual(got, want) {
		t.Errorf("Text() = %v, want %v", got, want)
	}
}

func TestAnnounceRequiresInstance(t *testing.T) {
	if _, err := Announce(Info{}); err == nil {
		t.Error("Announce() without instance should fail")
	}
}

func TestNewScanner(t *testing.T) {
	if NewScanner().Timeout != DefaultScanTimeout {
		t.Error("NewScanner() should use DefaultScanTimeout")
	}
}
