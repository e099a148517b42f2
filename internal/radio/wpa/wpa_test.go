package wpa

import (
	"net"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/wifimgr/internal/wifi"
)

func TestFrequencyToChannel(t *testing.T) {
	tests := []struct {
		freq int
		want int
	}{
		{2412, 1},
		{2437, 6},
		{2462, 11},
		{2484, 14},
		{5180, 36},
		{900, 0},
	}
	for _, tt := range tests {
		if got := frequencyToChannel(tt.freq); got != tt.want {
			t.Errorf("frequencyToChannel(%d) = %d, want %d", tt.freq, got, tt.want)
		}
		if tt.want >= 1 && tt.want <= 14 {
			if back := channelToFrequency(tt.want); back != tt.freq {
				t.Errorf("channelToFrequency(%d) = %d, want %d", tt.want, back, tt.freq)
			}
		}
	}
}

func keyMgmtVariant(keys ...string) dbus.Variant {
	return dbus.MakeVariant(map[string]dbus.Variant{"KeyMgmt": dbus.MakeVariant(keys)})
}

func TestEncryptionOf(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]dbus.Variant
		want  wifi.Encryption
	}{
		{"open", map[string]dbus.Variant{}, wifi.EncryptionOpen},
		{"wep", map[string]dbus.Variant{"Privacy": dbus.MakeVariant(true)}, wifi.EncryptionWEP},
		{"wpa", map[string]dbus.Variant{"WPA": keyMgmtVariant("wpa-psk")}, wifi.EncryptionWPA},
		{"wpa2", map[string]dbus.Variant{"RSN": keyMgmtVariant("wpa-psk")}, wifi.EncryptionWPA2},
		{"mixed", map[string]dbus.Variant{"RSN": keyMgmtVariant("wpa-psk"), "WPA": keyMgmtVariant("wpa-psk")}, wifi.EncryptionWPAWPA2},
		{"wpa3", map[string]dbus.Variant{"RSN": keyMgmtVariant("sae")}, wifi.EncryptionWPA3},
		{"enterprise", map[string]dbus.Variant{"RSN": keyMgmtVariant("wpa-eap")}, wifi.EncryptionEnterprise},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := encryptionOf(tt.props); got != tt.want {
				t.Errorf("encryptionOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestScanResultOf(t *testing.T) {
	props := map[string]dbus.Variant{
		"SSID":      dbus.MakeVariant([]byte("HomeNet")),
		"BSSID":     dbus.MakeVariant([]byte{0xc4, 0xbe, 0x84, 0x74, 0x86, 0x37}),
		"Signal":    dbus.MakeVariant(int16(-64)),
		"Frequency": dbus.MakeVariant(uint16(2437)),
		"RSN":       keyMgmtVariant("wpa-psk"),
	}

	r := scanResultOf(props)
	if r.SSID != "HomeNet" || r.RSSI != -64 || r.Channel != 6 {
		t.Errorf("scanResultOf() = %+v", r)
	}
	if r.BSSID != "c4:be:84:74:86:37" {
		t.Errorf("BSSID = %s", r.BSSID)
	}
	if r.Hidden {
		t.Error("named network should not be hidden")
	}

	hidden := scanResultOf(map[string]dbus.Variant{"SSID": dbus.MakeVariant([]byte{0, 0, 0})})
	if !hidden.Hidden {
		t.Error("all-NUL SSID should be hidden")
	}
}

func TestJoinTracker(t *testing.T) {
	tests := []struct {
		name        string
		ssidMissing bool
		states      []string
		want        wifi.Status
	}{
		{"connects", false, []string{"scanning", "associating", "4way_handshake", "completed"}, wifi.StatusConnected},
		{"wrong passphrase", false, []string{"associating", "4way_handshake", "disconnected"}, wifi.StatusConnectFailed},
		{"network absent", true, []string{"scanning", "disconnected"}, wifi.StatusNoSSIDAvailable},
		{"still trying", false, []string{"scanning", "disconnected"}, wifi.StatusDisconnected},
		{"unseen before first scan", true, []string{"disconnected"}, wifi.StatusDisconnected},
		{"hidden network joins", true, []string{"disconnected", "scanning", "associating", "4way_handshake", "completed"}, wifi.StatusConnected},
		{"hidden network not found", true, []string{"disconnected", "scanning", "disconnected"}, wifi.StatusNoSSIDAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var j joinTracker
			j.reset(true)
			j.ssidMissing = tt.ssidMissing

			var got wifi.Status
			for _, s := range tt.states {
				got = j.observe(s)
			}
			if got != tt.want {
				t.Errorf("final status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCIDR(t *testing.T) {
	got := cidr(net.IPv4(192, 168, 4, 1), net.IPv4(255, 255, 255, 0))
	if got != "192.168.4.1/24" {
		t.Errorf("cidr() = %s", got)
	}
	if got := cidr(net.IPv4(10, 0, 0, 2), nil); got != "10.0.0.2/24" {
		t.Errorf("cidr() with nil mask = %s", got)
	}
}
