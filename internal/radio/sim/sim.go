// Package sim provides a scripted in-memory radio.
//
// Networks are registered with AddNetwork; Begin succeeds when the SSID is
// known and the password matches, after ConnectDelay worth of Status polls.
// Every call is recorded so tests can assert on ordering.
package sim

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/muurk/wifimgr/internal/radio"
	"github.com/muurk/wifimgr/internal/wifi"
)

// Network is an access point the simulated radio can see.
type Network struct {
	SSID       string
	Password   string
	RSSI       int
	Channel    int
	BSSID      string
	Encryption wifi.Encryption
}

// Radio implements radio.Driver in memory.
type Radio struct {
	mu sync.Mutex

	networks []Network
	mode     radio.Mode
	status   wifi.Status

	joining     string
	joinStarted time.Time
	stored      wifi.Credential
	connected   string
	hostname    string
	station     wifi.StationIPConfig

	ap       *radio.APConfig
	scanning bool
	scanDone time.Time

	// ConnectDelay is how long a join takes before Status settles.
	ConnectDelay time.Duration
	// ScanDuration is how long StartScan takes to complete.
	ScanDuration time.Duration
	// FailAP makes StartAP fail with this error.
	FailAP error
	// Now is the clock; defaults to time.Now.
	Now func() time.Time

	calls      []string
	scanCount  int
	beginCalls []wifi.Credential
}

var _ radio.Driver = (*Radio)(nil)

// New returns a radio that can see networks.
func New(networks ...Network) *Radio {
	return &Radio{
		networks: networks,
		mode:     radio.ModeStation,
		status:   wifi.StatusIdle,
		Now:      time.Now,
	}
}

// AddNetwork makes n visible to scans and joins.
func (r *Radio) AddNetwork(n Network) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks = append(r.networks, n)
}

func (r *Radio) record(call string) {
	r.calls = append(r.calls, call)
}

// Calls returns the driver methods invoked so far, in order.
func (r *Radio) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// BeginCalls returns the credentials passed to Begin, in order.
func (r *Radio) BeginCalls() []wifi.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wifi.Credential(nil), r.beginCalls...)
}

// ScanCount is the number of hardware scans started.
func (r *Radio) ScanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanCount
}

// AP returns the running access point config, or nil.
func (r *Radio) AP() *radio.APConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ap == nil {
		return nil
	}
	ap := *r.ap
	return &ap
}

// Hostname returns the last hostname set.
func (r *Radio) Hostname() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hostname
}

// SetStored seeds the radio's own persisted credential.
func (r *Radio) SetStored(c wifi.Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stored = c
}

func (r *Radio) Mode() radio.Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Radio) SetMode(m radio.Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetMode:" + m.String())
	r.mode = m
	if !m.HasAP() {
		r.ap = nil
	}
	return nil
}

func (r *Radio) Begin(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Begin:" + ssid)
	r.beginCalls = append(r.beginCalls, wifi.Credential{SSID: ssid, Password: password})
	switch r.mode {
	case radio.ModeOff:
		r.mode = radio.ModeStation
	case radio.ModeAP:
		r.mode = radio.ModeAPStation
	}
	r.stored = wifi.NewCredential(ssid, password)
	r.startJoin(ssid)
	return nil
}

func (r *Radio) Reconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Reconnect")
	if r.stored.Empty() {
		r.status = wifi.StatusNoSSIDAvailable
		return nil
	}
	r.startJoin(r.stored.SSID)
	return nil
}

// startJoin must be called with r.mu held.
func (r *Radio) startJoin(ssid string) {
	r.connected = ""
	r.joining = ssid
	r.joinStarted = r.Now()
	r.status = wifi.StatusDisconnected
}

func (r *Radio) Disconnect(eraseStored bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("Disconnect")
	r.connected = ""
	r.joining = ""
	r.status = wifi.StatusDisconnected
	if eraseStored {
		r.stored = wifi.Credential{}
	}
	return nil
}

// Status settles a pending join once ConnectDelay has elapsed.
func (r *Radio) Status() wifi.Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.joining == "" || r.Now().Sub(r.joinStarted) < r.ConnectDelay {
		return r.status
	}

	ssid := r.joining
	r.joining = ""
	n, ok := r.lookup(ssid)
	switch {
	case !ok:
		r.status = wifi.StatusNoSSIDAvailable
	case n.Password != r.stored.Password:
		r.status = wifi.StatusConnectFailed
	default:
		r.status = wifi.StatusConnected
		r.connected = ssid
	}
	return r.status
}

func (r *Radio) lookup(ssid string) (Network, bool) {
	for _, n := range r.networks {
		if n.SSID == ssid {
			return n, true
		}
	}
	return Network{}, false
}

func (r *Radio) ConfigureStation(cfg wifi.StationIPConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("ConfigureStation")
	r.station = cfg
	return nil
}

func (r *Radio) SetHostname(hostname string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("SetHostname:" + hostname)
	r.hostname = hostname
	return nil
}

func (r *Radio) StartAP(cfg radio.APConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("StartAP:" + cfg.SSID)
	if r.FailAP != nil {
		return r.FailAP
	}
	r.ap = &cfg
	if r.mode == radio.ModeStation {
		r.mode = radio.ModeAPStation
	} else {
		r.mode = radio.ModeAP
	}
	return nil
}

func (r *Radio) StopAP() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record("StopAP")
	r.ap = nil
	if r.mode.HasAP() {
		r.mode = radio.ModeStation
	}
	return nil
}

func (r *Radio) StartScan() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanning {
		return radio.ErrScanInProgress
	}
	r.record("StartScan")
	r.scanning = true
	r.scanCount++
	r.scanDone = r.Now().Add(r.ScanDuration)
	return nil
}

func (r *Radio) ScanResults() ([]wifi.ScanResult, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.scanning {
		return nil, false, errors.New("no scan started")
	}
	if r.Now().Before(r.scanDone) {
		return nil, false, nil
	}
	r.scanning = false

	out := make([]wifi.ScanResult, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, wifi.ScanResult{
			SSID:       n.SSID,
			Encryption: n.Encryption,
			RSSI:       n.RSSI,
			BSSID:      n.BSSID,
			Channel:    n.Channel,
		})
	}
	return out, true, nil
}

func (r *Radio) StoredCredential() wifi.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stored
}

func (r *Radio) ConnectedSSID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Radio) StationIP() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected == "" {
		return nil
	}
	if r.station.IsStatic() {
		return r.station.IP
	}
	return net.IPv4(192, 168, 1, 77)
}

func (r *Radio) APIP() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ap == nil {
		return nil
	}
	return r.ap.IP.IP
}

func (r *Radio) MAC() string {
	return "02:00:00:00:00:01"
}

func (r *Radio) Gateway() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected == "" {
		return nil
	}
	if r.station.IsStatic() && r.station.Gateway != nil {
		return r.station.Gateway
	}
	return net.IPv4(192, 168, 1, 1)
}
