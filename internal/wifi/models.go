package wifi

import (
	"fmt"
	"net"
)

// Credential is one stored (SSID, password) pair.
// An empty SSID marks an unused slot.
type Credential struct {
	SSID     string `json:"ssid" yaml:"ssid"`
	Password string `json:"password" yaml:"password"`
}

// NewCredential builds a credential, truncating both fields to their limits.
func NewCredential(ssid, password string) Credential {
	var c Credential
	c.SetSSID(ssid)
	c.SetPassword(password)
	return c
}

// SetSSID assigns the SSID, truncated to MaxSSIDLength bytes.
func (c *Credential) SetSSID(ssid string) {
	c.SSID = Truncate(ssid, MaxSSIDLength)
}

// SetPassword assigns the password, truncated to MaxPasswordLength bytes.
func (c *Credential) SetPassword(password string) {
	c.Password = Truncate(password, MaxPasswordLength)
}

// Empty reports whether the slot is unused.
func (c Credential) Empty() bool {
	return c.SSID == ""
}

// String never includes the password.
func (c Credential) String() string {
	if c.Empty() {
		return "<empty>"
	}
	return fmt.Sprintf("%q (password: %d bytes)", c.SSID, len(c.Password))
}

// StationIPConfig is the static addressing used in station mode.
// A zero or unspecified IP means DHCP.
type StationIPConfig struct {
	IP      net.IP `json:"ip,omitempty" yaml:"ip,omitempty"`
	Gateway net.IP `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	Subnet  net.IP `json:"subnet,omitempty" yaml:"subnet,omitempty"`
	DNS1    net.IP `json:"dns1,omitempty" yaml:"dns1,omitempty"`
	DNS2    net.IP `json:"dns2,omitempty" yaml:"dns2,omitempty"`
}

// DefaultStationIPConfig returns the station defaults: DHCP address with
// 192.168.2.1 as gateway and first resolver and 8.8.8.8 as second resolver.
func DefaultStationIPConfig() StationIPConfig {
	return StationIPConfig{
		IP:      net.IPv4zero.To4(),
		Gateway: net.IPv4(192, 168, 2, 1).To4(),
		Subnet:  net.IPv4(255, 255, 255, 0).To4(),
		DNS1:    net.IPv4(192, 168, 2, 1).To4(),
		DNS2:    net.IPv4(8, 8, 8, 8).To4(),
	}
}

// IsStatic reports whether a fixed station address is configured.
func (c StationIPConfig) IsStatic() bool {
	return c.IP != nil && !c.IP.IsUnspecified()
}

// APIPConfig is the addressing of the soft access point.
type APIPConfig struct {
	IP      net.IP `json:"ip" yaml:"ip"`
	Gateway net.IP `json:"gateway" yaml:"gateway"`
	Subnet  net.IP `json:"subnet" yaml:"subnet"`
}

// DefaultAPIPConfig returns 192.168.4.1/24.
func DefaultAPIPConfig() APIPConfig {
	return APIPConfig{
		IP:      net.IPv4(192, 168, 4, 1).To4(),
		Gateway: net.IPv4(192, 168, 4, 1).To4(),
		Subnet:  net.IPv4(255, 255, 255, 0).To4(),
	}
}

// Encryption identifies the security of a scanned network.
// Values are stable: they are emitted as integers by the scan endpoint.
type Encryption int

const (
	EncryptionOpen Encryption = iota
	EncryptionWEP
	EncryptionWPA
	EncryptionWPA2
	EncryptionWPAWPA2
	EncryptionEnterprise
	EncryptionWPA3
)

func (e Encryption) String() string {
	switch e {
	case EncryptionOpen:
		return "open"
	case EncryptionWEP:
		return "WEP"
	case EncryptionWPA:
		return "WPA"
	case EncryptionWPA2:
		return "WPA2"
	case EncryptionWPAWPA2:
		return "WPA/WPA2"
	case EncryptionEnterprise:
		return "WPA2-Enterprise"
	case EncryptionWPA3:
		return "WPA3"
	default:
		return fmt.Sprintf("Encryption(%d)", int(e))
	}
}

// ScanResult is one access point seen by a scan. Entries are rebuilt on
// every scan and never mutated after sorting.
type ScanResult struct {
	SSID       string
	Encryption Encryption
	RSSI       int
	BSSID      string
	Channel    int
	Hidden     bool
	Duplicate  bool
}

// Quality returns the 0-100 signal quality of the entry.
func (r ScanResult) Quality() int {
	return RSSIToQuality(r.RSSI)
}

// RSSIToQuality maps an RSSI in dBm to a 0-100 quality percentage.
func RSSIToQuality(rssi int) int {
	switch {
	case rssi <= -100:
		return 0
	case rssi >= -50:
		return 100
	default:
		return 2 * (rssi + 100)
	}
}
