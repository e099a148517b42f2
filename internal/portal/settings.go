package portal

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/muurk/wifimgr/internal/wifi"
)

// SetAPCallback registers a function called once the AP is up.
func (m *Manager) SetAPCallback(fn func(*Manager)) {
	m.mu.Lock()
	m.apCallback = fn
	m.mu.Unlock()
}

// SetSaveConfigCallback registers a function called after settings are
// persisted and before the new connection attempt.
func (m *Manager) SetSaveConfigCallback(fn func()) {
	m.mu.Lock()
	m.saveCallback = fn
	m.mu.Unlock()
}

// OnStateChange registers a function called on every portal transition.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	m.stateHook = fn
	m.mu.Unlock()
}

func (m *Manager) update(fn func(c *Config)) {
	m.mu.Lock()
	fn(&m.cfg)
	m.mu.Unlock()
}

// Config returns a copy of the current settings.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// SetConfigPortalTimeout sets the inactivity limit; 0 never times out.
func (m *Manager) SetConfigPortalTimeout(d time.Duration) {
	m.update(func(c *Config) { c.PortalTimeout = d })
}

// SetConnectTimeout bounds each station join attempt.
func (m *Manager) SetConnectTimeout(d time.Duration) {
	m.update(func(c *Config) { c.ConnectTimeout = d })
}

// SetBreakAfterConfig ends the portal after a save even if the join fails.
func (m *Manager) SetBreakAfterConfig(b bool) {
	m.update(func(c *Config) { c.BreakAfterConfig = b })
}

// SetConfigPortalChannel fixes the AP channel; 0 selects automatically.
func (m *Manager) SetConfigPortalChannel(channel int) {
	m.update(func(c *Config) { c.APChannel = channel })
}

// SetMinimumSignalQuality sets the scan filter; no value selects 8%.
func (m *Manager) SetMinimumSignalQuality(quality ...int) {
	m.scanner.SetMinimumSignalQuality(quality...)
	q := m.scanner.MinimumSignalQuality()
	m.update(func(c *Config) { c.MinimumQuality = q })
}

// SetRemoveDuplicateAPs collapses scan entries sharing an SSID.
func (m *Manager) SetRemoveDuplicateAPs(remove bool) {
	m.scanner.SetRemoveDuplicateAPs(remove)
	m.update(func(c *Config) { c.RemoveDuplicates = remove })
}

// SetCustomHeadElement injects markup into every page head. Only style,
// meta and link elements survive.
func (m *Manager) SetCustomHeadElement(head string) {
	m.update(func(c *Config) { c.CustomHead = head })
}

// SetCORSHeader enables the Access-Control-Allow-Origin header. With no
// value it allows any origin.
func (m *Manager) SetCORSHeader(origin ...string) {
	v := DefaultCORSHeader
	if len(origin) > 0 {
		v = origin[0]
	}
	m.update(func(c *Config) { c.CORSHeader = v })
}

// SetAPStaticIPConfig sets the soft AP address, gateway and mask.
func (m *Manager) SetAPStaticIPConfig(ip, gateway, subnet net.IP) {
	m.update(func(c *Config) {
		c.APIP = wifi.APIPConfig{IP: ip.To4(), Gateway: gateway.To4(), Subnet: subnet.To4()}
	})
}

// SetSTAStaticIPConfig fixes the station address. dns may hold up to two
// resolvers.
func (m *Manager) SetSTAStaticIPConfig(ip, gateway, subnet net.IP, dns ...net.IP) {
	cfg := wifi.StationIPConfig{IP: ip.To4(), Gateway: gateway.To4(), Subnet: subnet.To4()}
	if len(dns) > 0 {
		cfg.DNS1 = dns[0].To4()
	}
	if len(dns) > 1 {
		cfg.DNS2 = dns[1].To4()
	}
	m.update(func(c *Config) { c.StationIP = cfg })
}

// SetHostname sets an RFC952 hostname and reports whether name was valid
// as given.
func (m *Manager) SetHostname(name string) bool {
	clean := SanitizeHostname(name)
	m.update(func(c *Config) { c.Hostname = clean })
	return clean == name && clean != ""
}

// SetCredentials replaces the in-memory slots without persisting them.
func (m *Manager) SetCredentials(ssid, password, ssid1, password1 string) {
	m.mu.Lock()
	m.slots[0] = wifi.NewCredential(ssid, password)
	m.slots[1] = wifi.NewCredential(ssid1, password1)
	m.mu.Unlock()
}

// GetSSID returns the SSID of slot i, or "" for an invalid index.
func (m *Manager) GetSSID(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= wifi.SlotCount {
		return ""
	}
	return m.slots[i].SSID
}

// GetPW returns the password of slot i, or "" for an invalid index.
func (m *Manager) GetPW(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= wifi.SlotCount {
		return ""
	}
	return m.slots[i].Password
}

// GetConfigPortalSSID returns the AP name.
func (m *Manager) GetConfigPortalSSID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.APName
}

// GetConfigPortalPW returns the AP password, empty for an open AP.
func (m *Manager) GetConfigPortalPW() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.APPassword
}

// GetTimezoneName returns the timezone submitted through the portal.
func (m *Manager) GetTimezoneName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timezone
}

func (m *Manager) SetTimezoneName(tz string) {
	m.mu.Lock()
	m.timezone = tz
	m.mu.Unlock()
}

// GetStatus returns the name of a connection status.
func GetStatus(s wifi.Status) string {
	return s.String()
}

// InfoAsString is a one-line summary of the device's network identity.
func (m *Manager) InfoAsString() string {
	info := m.info()
	fields := []string{
		"Hostname: " + info.Hostname,
		"MAC: " + info.MAC,
		"Status: " + info.Status,
	}
	if info.SSID != "" {
		fields = append(fields, "SSID: "+info.SSID)
	}
	if info.StationIP != "" {
		fields = append(fields, "IP: "+info.StationIP)
	}
	if info.Gateway != "" {
		fields = append(fields, "Gateway: "+info.Gateway)
	}
	if info.SoftAPIP != "" {
		fields = append(fields, fmt.Sprintf("AP: %s (%s)", info.APName, info.SoftAPIP))
	}
	return strings.Join(fields, ", ")
}

// deviceInfo backs the /state endpoint, the info page and InfoAsString.
type deviceInfo struct {
	Status    string `json:"Status"`
	SSID      string `json:"SSID"`
	StationIP string `json:"Station_IP"`
	SoftAPIP  string `json:"Soft_AP_IP"`
	Gateway   string `json:"Gateway"`
	Portal    string `json:"Portal"`
	Hostname  string `json:"Hostname"`

	MAC      string `json:"-"`
	APName   string `json:"-"`
	Channel  int    `json:"-"`
	Uptime   string `json:"-"`
	Timezone string `json:"-"`
}

func (m *Manager) info() deviceInfo {
	m.mu.Lock()
	cfg, state, ap, started, tz := m.cfg, m.state, m.ap, m.startedAt, m.timezone
	m.mu.Unlock()

	info := deviceInfo{
		Status:   m.driver.Status().String(),
		SSID:     m.driver.ConnectedSSID(),
		Portal:   state.String(),
		Hostname: cfg.Hostname,
		MAC:      m.driver.MAC(),
		APName:   cfg.APName,
		Timezone: tz,
	}
	if ip := m.driver.StationIP(); ip != nil {
		info.StationIP = ip.String()
	}
	if ip := m.driver.APIP(); ip != nil {
		info.SoftAPIP = ip.String()
		info.Channel = ap.Channel
	}
	if gw := m.driver.Gateway(); gw != nil {
		info.Gateway = gw.String()
	}
	if state == StatePortalActive {
		info.Uptime = m.now().Sub(started).Truncate(time.Second).String()
	}
	return info
}
