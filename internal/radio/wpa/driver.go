package wpa

import (
	"fmt"
	"net"
	"os/exec"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/jackpal/gateway"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/radio"
	"github.com/muurk/wifimgr/internal/wifi"
)

// Config selects the interface to drive.
type Config struct {
	Interface string
}

// Driver implements radio.Driver on top of wpa_supplicant.
type Driver struct {
	ifname string
	conn   *dbus.Conn
	sup    *supplicant

	mu       sync.Mutex
	mode     radio.Mode
	ap       *radio.APConfig
	join     joinTracker
	target   string
	stored   wifi.Credential
	scanDone chan bool
	cancel   func()
	scanning bool

	// runIP executes iproute2; replaced in tests.
	runIP func(args ...string) error
}

var _ radio.Driver = (*Driver)(nil)

// Open connects to the system bus and attaches to cfg.Interface.
func Open(cfg Config) (*Driver, error) {
	if cfg.Interface == "" {
		cfg.Interface = "wlan0"
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("could not connect to system bus: %w", err)
	}

	sup, err := attach(conn, cfg.Interface)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	d := &Driver{
		ifname: cfg.Interface,
		conn:   conn,
		sup:    sup,
		mode:   radio.ModeStation,
		runIP:  execIP,
	}
	d.stored = d.readStored()
	return d, nil
}

// Close releases the bus connection.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.mu.Unlock()
	return d.conn.Close()
}

func (d *Driver) Mode() radio.Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *Driver) SetMode(m radio.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch m {
	case radio.ModeOff:
		if err := d.sup.disconnect(); err != nil {
			return err
		}
		d.ap = nil
	case radio.ModeStation:
		if d.ap != nil {
			if err := d.sup.removeAllNetworks(); err != nil {
				return err
			}
			d.ap = nil
			if !d.stored.Empty() {
				if err := d.addStation(d.stored); err != nil {
					return err
				}
			}
		}
	case radio.ModeAP, radio.ModeAPStation:
		if d.ap == nil {
			return fmt.Errorf("mode %s requires StartAP", m)
		}
	}
	d.mode = m
	return nil
}

// addStation must be called with d.mu held.
func (d *Driver) addStation(c wifi.Credential) error {
	args := map[string]interface{}{"ssid": c.SSID, "scan_ssid": int32(1)}
	if c.Password != "" {
		args["psk"] = c.Password
	} else {
		args["key_mgmt"] = "NONE"
	}

	path, err := d.sup.addNetwork(args)
	if err != nil {
		return err
	}
	return d.sup.selectNetwork(path)
}

func (d *Driver) Begin(ssid, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.sup.removeAllNetworks(); err != nil {
		return err
	}
	d.ap = nil
	d.mode = radio.ModeStation
	d.stored = wifi.NewCredential(ssid, password)
	d.target = ssid
	d.join.reset(true)
	d.join.ssidMissing = !d.visible(ssid)

	return d.addStation(d.stored)
}

func (d *Driver) Reconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.target = d.stored.SSID
	d.join.reset(true)
	if d.stored.Empty() {
		// Nothing to scan for.
		d.join.ssidMissing, d.join.sawScan = true, true
	}
	return d.sup.reconnect()
}

// visible reports whether the last scan saw ssid. Unknown counts as visible.
func (d *Driver) visible(ssid string) bool {
	paths, err := d.sup.bssPaths()
	if err != nil || len(paths) == 0 {
		return true
	}
	for _, p := range paths {
		props, err := d.sup.bssProperties(p)
		if err != nil {
			continue
		}
		if scanResultOf(props).SSID == ssid {
			return true
		}
	}
	return false
}

func (d *Driver) Disconnect(eraseStored bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.join.reset(false)
	if err := d.sup.disconnect(); err != nil {
		return err
	}
	if eraseStored {
		d.stored = wifi.Credential{}
		return d.sup.removeAllNetworks()
	}
	return nil
}

func (d *Driver) Status() wifi.Status {
	state, err := d.sup.state()
	if err != nil {
		logging.Warn("Could not read supplicant state", zap.Error(err))
		return wifi.StatusDisconnected
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ap != nil {
		return wifi.StatusDisconnected
	}
	return d.join.observe(state)
}

func (d *Driver) ConfigureStation(cfg wifi.StationIPConfig) error {
	if !cfg.IsStatic() {
		return nil
	}
	if err := d.runIP("addr", "replace", cidr(cfg.IP, cfg.Subnet), "dev", d.ifname); err != nil {
		return fmt.Errorf("could not set station address: %w", err)
	}
	if cfg.Gateway != nil && !cfg.Gateway.IsUnspecified() {
		if err := d.runIP("route", "replace", "default", "via", cfg.Gateway.String(), "dev", d.ifname); err != nil {
			return fmt.Errorf("could not set default route: %w", err)
		}
	}
	return nil
}

// SetHostname sets the transient hostname through systemd-hostnamed.
func (d *Driver) SetHostname(hostname string) error {
	obj := d.conn.Object("org.freedesktop.hostname1", "/org/freedesktop/hostname1")
	call := obj.Call("org.freedesktop.hostname1.SetHostname", 0, hostname, false)
	if call.Err != nil {
		return fmt.Errorf("could not set hostname: %w", call.Err)
	}
	return nil
}

func (d *Driver) StartAP(cfg radio.APConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.Channel < 1 || cfg.Channel > 14 {
		return fmt.Errorf("invalid AP channel %d", cfg.Channel)
	}

	args := map[string]interface{}{
		"ssid":      cfg.SSID,
		"mode":      uint32(2),
		"frequency": int32(channelToFrequency(cfg.Channel)),
	}
	if cfg.Password != "" {
		args["key_mgmt"] = "WPA-PSK"
		args["proto"] = "RSN"
		args["pairwise"] = "CCMP"
		args["psk"] = cfg.Password
	} else {
		args["key_mgmt"] = "NONE"
	}

	if err := d.sup.removeAllNetworks(); err != nil {
		return err
	}
	path, err := d.sup.addNetwork(args)
	if err != nil {
		return err
	}
	if err := d.sup.selectNetwork(path); err != nil {
		return err
	}
	if err := d.runIP("addr", "replace", cidr(cfg.IP.IP, cfg.IP.Subnet), "dev", d.ifname); err != nil {
		return fmt.Errorf("could not set AP address: %w", err)
	}

	d.ap = &cfg
	d.mode = radio.ModeAP
	d.join.reset(false)
	return nil
}

func (d *Driver) StopAP() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ap == nil {
		return nil
	}
	_ = d.runIP("addr", "del", cidr(d.ap.IP.IP, d.ap.IP.Subnet), "dev", d.ifname)
	if err := d.sup.removeAllNetworks(); err != nil {
		return err
	}
	d.ap = nil
	d.mode = radio.ModeStation
	if !d.stored.Empty() {
		return d.addStation(d.stored)
	}
	return nil
}

func (d *Driver) StartScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scanning {
		return radio.ErrScanInProgress
	}

	done := make(chan bool, 1)
	cancel, err := d.sup.watchScanDone(done)
	if err != nil {
		return err
	}
	if err := d.sup.scan(); err != nil {
		cancel()
		return err
	}

	d.scanDone = done
	d.cancel = cancel
	d.scanning = true
	return nil
}

func (d *Driver) ScanResults() ([]wifi.ScanResult, bool, error) {
	d.mu.Lock()
	if !d.scanning {
		d.mu.Unlock()
		return nil, false, fmt.Errorf("no scan started")
	}
	select {
	case ok := <-d.scanDone:
		d.scanning = false
		d.cancel()
		d.cancel = nil
		d.mu.Unlock()
		if !ok {
			return nil, true, fmt.Errorf("scan failed")
		}
	default:
		d.mu.Unlock()
		return nil, false, nil
	}

	paths, err := d.sup.bssPaths()
	if err != nil {
		return nil, true, err
	}
	results := make([]wifi.ScanResult, 0, len(paths))
	for _, p := range paths {
		props, err := d.sup.bssProperties(p)
		if err != nil {
			logging.Debug("Skipping unreadable BSS", zap.String("path", string(p)), zap.Error(err))
			continue
		}
		results = append(results, scanResultOf(props))
	}
	return results, true, nil
}

func (d *Driver) StoredCredential() wifi.Credential {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stored
}

// readStored picks up a network wpa_supplicant already had configured.
// Passphrases are write-only on the bus, so only the SSID is known.
func (d *Driver) readStored() wifi.Credential {
	paths, err := d.sup.networkPaths()
	if err != nil || len(paths) == 0 {
		return wifi.Credential{}
	}
	ssid, err := d.sup.networkSSID(paths[0])
	if err != nil {
		return wifi.Credential{}
	}
	return wifi.NewCredential(ssid, "")
}

func (d *Driver) ConnectedSSID() string {
	if d.Status() != wifi.StatusConnected {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.target
}

func (d *Driver) StationIP() net.IP {
	if d.Mode() != radio.ModeStation {
		return nil
	}
	return d.interfaceIPv4()
}

func (d *Driver) APIP() net.IP {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ap == nil {
		return nil
	}
	return d.ap.IP.IP
}

func (d *Driver) MAC() string {
	iface, err := net.InterfaceByName(d.ifname)
	if err != nil {
		return ""
	}
	return iface.HardwareAddr.String()
}

func (d *Driver) Gateway() net.IP {
	gw, err := gateway.DiscoverGateway()
	if err != nil {
		return nil
	}
	return gw
}

func (d *Driver) interfaceIPv4() net.IP {
	iface, err := net.InterfaceByName(d.ifname)
	if err != nil {
		return nil
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP
		}
	}
	return nil
}

func cidr(ip, mask net.IP) string {
	ones := 24
	if m := mask.To4(); m != nil {
		ones, _ = net.IPMask(m).Size()
	}
	return fmt.Sprintf("%s/%d", ip, ones)
}

func execIP(args ...string) error {
	out, err := exec.Command("ip", args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ip %v: %w: %s", args, err, out)
	}
	return nil
}
