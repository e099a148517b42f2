package discovery

import (
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

// Info describes what a device publishes.
type Info struct {
	Instance string
	Port     int
	MAC      string
	Mode     string
	Version  string
	// Interfaces limits the announcement; nil means all multicast interfaces.
	Interfaces []net.Interface
}

// Text returns the TXT records for info.
func (i Info) Text() []string {
	var txt []string
	for _, kv := range [][2]string{{TxtMAC, i.MAC}, {TxtMode, i.Mode}, {TxtVersion, i.Version}} {
		if kv[1] != "" {
			txt = append(txt, kv[0]+"="+kv[1])
		}
	}
	return txt
}

// Announcement is a running mDNS registration.
type Announcement struct {
	mu     sync.Mutex
	server *zeroconf.Server
	info   Info
}

// Announce registers info as a ServiceType instance until Shutdown.
func Announce(info Info) (*Announcement, error) {
	if info.Instance == "" {
		return nil, fmt.Errorf("mDNS instance name is required")
	}
	if info.Port <= 0 {
		info.Port = DefaultPort
	}

	server, err := zeroconf.Register(info.Instance, ServiceType, ServiceDomain, info.Port, info.Text(), info.Interfaces)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("mDNS announcement started",
		zap.String("instance", info.Instance),
		zap.Int("port", info.Port),
		zap.String("mode", info.Mode))

	return &Announcement{server: server, info: info}, nil
}

// SetMode republishes the TXT records with a new mode.
func (a *Announcement) SetMode(mode string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.info.Mode = mode
	a.server.SetText(a.info.Text())
}

// Shutdown withdraws the announcement. Safe to call more than once.
func (a *Announcement) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	logging.Info("mDNS announcement stopped", zap.String("instance", a.info.Instance))
}
