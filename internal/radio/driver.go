package radio

import (
	"errors"
	"fmt"
	"net"

	"github.com/muurk/wifimgr/internal/wifi"
)

// Mode is the radio operating mode.
type Mode int

const (
	ModeOff Mode = iota
	ModeStation
	ModeAP
	ModeAPStation
)

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeStation:
		return "station"
	case ModeAP:
		return "ap"
	case ModeAPStation:
		return "ap+station"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// HasAP reports whether the soft access point is part of the mode.
func (m Mode) HasAP() bool {
	return m == ModeAP || m == ModeAPStation
}

// APConfig describes the soft access point to raise.
type APConfig struct {
	SSID     string
	Password string // empty for an open AP
	Channel  int
	IP       wifi.APIPConfig
}

// ErrScanInProgress is returned by StartScan when a scan is already running.
var ErrScanInProgress = errors.New("scan already in progress")

// Driver is a WiFi radio.
type Driver interface {
	Mode() Mode
	SetMode(m Mode) error

	// Begin starts joining ssid. It returns once the request is issued;
	// progress is observed through Status.
	Begin(ssid, password string) error
	// Reconnect rejoins using credentials persisted by the radio itself.
	Reconnect() error
	Disconnect(eraseStored bool) error
	Status() wifi.Status

	// ConfigureStation applies static addressing; a non-static config selects DHCP.
	ConfigureStation(cfg wifi.StationIPConfig) error
	SetHostname(hostname string) error

	StartAP(cfg APConfig) error
	StopAP() error

	// StartScan begins an asynchronous scan.
	StartScan() error
	// ScanResults reports done=false until the running scan completes.
	ScanResults() (results []wifi.ScanResult, done bool, err error)

	// StoredCredential is what Reconnect would use.
	StoredCredential() wifi.Credential
	ConnectedSSID() string
	StationIP() net.IP
	APIP() net.IP
	MAC() string
	// Gateway returns the station default gateway, or nil when unknown.
	Gateway() net.IP
}
