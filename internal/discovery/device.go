package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// TXT record keys published by Announce.
const (
	TxtMAC     = "mac"
	TxtMode    = "mode"
	TxtVersion = "version"
)

// Modes published in the mode TXT record.
const (
	ModePortal  = "portal"
	ModeStation = "station"
)

// Device is a wifimgr instance seen on the network.
type Device struct {
	// Instance is the advertised service instance name, usually the hostname.
	Instance string

	// Hostname is the mDNS host (e.g. "sensor.local.")
	Hostname string

	IP   string
	Port int

	// Metadata holds the TXT records as key/value pairs.
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (d *Device) String() string {
	return fmt.Sprintf("wifimgr %s (%s) at %s", d.Instance, d.Hostname, net.JoinHostPort(d.IP, strconv.Itoa(d.Port)))
}

// BaseURL returns the HTTP base URL of the device's portal server.
func (d *Device) BaseURL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// GetMetadata retrieves a TXT value by key, or "" if absent.
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}

func (d *Device) MAC() string  { return d.GetMetadata(TxtMAC) }
func (d *Device) Mode() string { return d.GetMetadata(TxtMode) }
