package wpa

import (
	"encoding/hex"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/wifimgr/internal/wifi"
)

// frequencyToChannel maps a centre frequency in MHz to its channel number.
func frequencyToChannel(freq int) int {
	switch {
	case freq == 2484:
		return 14
	case freq >= 2412 && freq <= 2472:
		return (freq - 2407) / 5
	case freq >= 5160 && freq <= 5885:
		return (freq - 5000) / 5
	default:
		return 0
	}
}

// channelToFrequency is the 2.4 GHz inverse used when raising the AP.
func channelToFrequency(channel int) int {
	if channel == 14 {
		return 2484
	}
	return 2407 + 5*channel
}

// encryptionOf derives the security of a BSS from its WPA, RSN and Privacy
// properties.
func encryptionOf(props map[string]dbus.Variant) wifi.Encryption {
	rsn := keyMgmt(props["RSN"])
	wpa := keyMgmt(props["WPA"])

	has := func(list []string, prefix string) bool {
		for _, k := range list {
			if strings.HasPrefix(k, prefix) {
				return true
			}
		}
		return false
	}

	switch {
	case has(rsn, "sae"):
		return wifi.EncryptionWPA3
	case has(rsn, "wpa-eap") || has(wpa, "wpa-eap"):
		return wifi.EncryptionEnterprise
	case len(rsn) > 0 && len(wpa) > 0:
		return wifi.EncryptionWPAWPA2
	case len(rsn) > 0:
		return wifi.EncryptionWPA2
	case len(wpa) > 0:
		return wifi.EncryptionWPA
	}

	if privacy, _ := props["Privacy"].Value().(bool); privacy {
		return wifi.EncryptionWEP
	}
	return wifi.EncryptionOpen
}

func keyMgmt(v dbus.Variant) []string {
	m, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return nil
	}
	list, _ := m["KeyMgmt"].Value().([]string)
	return list
}

// scanResultOf converts BSS properties to a scan entry.
func scanResultOf(props map[string]dbus.Variant) wifi.ScanResult {
	var r wifi.ScanResult

	if ssid, ok := props["SSID"].Value().([]byte); ok {
		r.SSID = string(ssid)
	}
	if bssid, ok := props["BSSID"].Value().([]byte); ok {
		r.BSSID = formatBSSID(bssid)
	}
	if signal, ok := props["Signal"].Value().(int16); ok {
		r.RSSI = int(signal)
	}
	if freq, ok := props["Frequency"].Value().(uint16); ok {
		r.Channel = frequencyToChannel(int(freq))
	}
	r.Encryption = encryptionOf(props)
	r.Hidden = r.SSID == "" || strings.Trim(r.SSID, "\x00") == ""
	return r
}

func formatBSSID(b []byte) string {
	h := hex.EncodeToString(b)
	var parts []string
	for i := 0; i+2 <= len(h); i += 2 {
		parts = append(parts, h[i:i+2])
	}
	return strings.Join(parts, ":")
}

// joinTracker turns wpa_supplicant interface states into connection statuses
// for one join attempt. A missing SSID is only reported once the supplicant
// has scanned for it during this attempt, which is when hidden networks
// (scan_ssid=1) are found.
type joinTracker struct {
	active       bool
	sawScan      bool
	sawHandshake bool
	ssidMissing  bool
}

func (j *joinTracker) reset(active bool) {
	*j = joinTracker{active: active}
}

func (j *joinTracker) observe(state string) wifi.Status {
	switch state {
	case "completed":
		return wifi.StatusConnected
	case "4way_handshake", "group_handshake":
		j.sawHandshake = true
		return wifi.StatusDisconnected
	case "scanning":
		j.sawScan = true
		return wifi.StatusDisconnected
	case "authenticating", "associating", "associated":
		return wifi.StatusDisconnected
	case "disconnected", "inactive":
		switch {
		case !j.active:
			return wifi.StatusDisconnected
		case j.sawHandshake:
			return wifi.StatusConnectFailed
		case j.ssidMissing && j.sawScan:
			return wifi.StatusNoSSIDAvailable
		}
		return wifi.StatusDisconnected
	case "interface_disabled":
		return wifi.StatusIdle
	default:
		return wifi.StatusDisconnected
	}
}
