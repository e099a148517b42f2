package portalclient

import (
	"fmt"
	"strings"

	"github.com/muurk/wifimgr/internal/wifi"
)

// Summary returns a one-line summary of the device state.
func (s *State) Summary() string {
	if s.Connected() {
		return fmt.Sprintf("%s connected to %s as %s (portal %s)", s.Hostname, s.SSID, s.StationIP, s.Portal)
	}
	return fmt.Sprintf("%s %s (portal %s on %s)", s.Hostname, s.Status, s.Portal, s.SoftAPIP)
}

// FormatDetailed returns the state as an aligned block.
func (s *State) FormatDetailed() string {
	var b strings.Builder

	b.WriteString("=== Device State ===\n")
	fmt.Fprintf(&b, "Hostname:   %s\n", orNone(s.Hostname))
	fmt.Fprintf(&b, "Status:     %s\n", s.Status)
	fmt.Fprintf(&b, "Portal:     %s\n", s.Portal)
	fmt.Fprintf(&b, "SSID:       %s\n", orNone(s.SSID))
	fmt.Fprintf(&b, "Station IP: %s\n", orNone(s.StationIP))
	fmt.Fprintf(&b, "Gateway:    %s\n", orNone(s.Gateway))
	fmt.Fprintf(&b, "Soft AP IP: %s\n", orNone(s.SoftAPIP))

	return b.String()
}

// FormatNetworks renders a scan list as a table.
func FormatNetworks(networks []Network) string {
	if len(networks) == 0 {
		return "No networks found.\n"
	}

	width := len("SSID")
	for _, n := range networks {
		width = max(width, len(n.SSID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %7s  %s\n", width, "SSID", "QUALITY", "SECURITY")
	for _, n := range networks {
		fmt.Fprintf(&b, "%-*s  %6d%%  %s\n", width, n.SSID, n.QualityPercent(), wifi.Encryption(n.Encryption))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
