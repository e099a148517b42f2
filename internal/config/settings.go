package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/muurk/wifimgr/internal/credentials"
	"github.com/muurk/wifimgr/internal/dnsredirect"
	"github.com/muurk/wifimgr/internal/portal"
	"github.com/muurk/wifimgr/internal/scanner"
	"github.com/muurk/wifimgr/internal/server"
	"github.com/muurk/wifimgr/internal/wifi"
)

// CurrentVersion is the settings document version this build reads.
const CurrentVersion = 1

// Radio backends.
const (
	RadioWPA = "wpa"
	RadioSim = "sim"
)

// Settings is the whole settings file.
type Settings struct {
	Version int             `yaml:"version" mapstructure:"version"`
	Portal  PortalSettings  `yaml:"portal" mapstructure:"portal"`
	Station StationSettings `yaml:"station" mapstructure:"station"`
	Store   StoreSettings   `yaml:"store" mapstructure:"store"`
	Radio   RadioSettings   `yaml:"radio" mapstructure:"radio"`
}

// PortalSettings configures the access point and the portal itself.
type PortalSettings struct {
	APName     string `yaml:"ap_name" mapstructure:"ap_name"`
	APPassword string `yaml:"ap_password" mapstructure:"ap_password"`
	APChannel  int    `yaml:"ap_channel" mapstructure:"ap_channel"` // 0 = auto
	APIP       string `yaml:"ap_ip" mapstructure:"ap_ip"`
	APGateway  string `yaml:"ap_gateway" mapstructure:"ap_gateway"`
	APSubnet   string `yaml:"ap_subnet" mapstructure:"ap_subnet"`

	PortalTimeout  time.Duration `yaml:"portal_timeout" mapstructure:"portal_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	MinQuality       int    `yaml:"min_quality" mapstructure:"min_quality"`
	RemoveDuplicates bool   `yaml:"remove_duplicates" mapstructure:"remove_duplicates"`
	CustomHead       string `yaml:"custom_head,omitempty" mapstructure:"custom_head"`
	BreakAfterConfig bool   `yaml:"break_after_config" mapstructure:"break_after_config"`
	CORSHeader       string `yaml:"cors_header,omitempty" mapstructure:"cors_header"`

	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr"`
	DNSAddr  string `yaml:"dns_addr" mapstructure:"dns_addr"`
	Hostname string `yaml:"hostname,omitempty" mapstructure:"hostname"`
}

// StationSettings is static station addressing. An empty IP means DHCP.
type StationSettings struct {
	IP      string `yaml:"ip,omitempty" mapstructure:"ip"`
	Gateway string `yaml:"gateway,omitempty" mapstructure:"gateway"`
	Subnet  string `yaml:"subnet,omitempty" mapstructure:"subnet"`
	DNS1    string `yaml:"dns1,omitempty" mapstructure:"dns1"`
	DNS2    string `yaml:"dns2,omitempty" mapstructure:"dns2"`
}

// StoreSettings selects the credential store.
type StoreSettings struct {
	Backend string `yaml:"backend" mapstructure:"backend"`
	// Path defaults to a file in the config directory.
	Path string `yaml:"path,omitempty" mapstructure:"path"`
}

// RadioSettings selects the radio driver.
type RadioSettings struct {
	Backend   string `yaml:"backend" mapstructure:"backend"`
	Interface string `yaml:"interface" mapstructure:"interface"`
}

// Default returns the settings used when no file exists.
func Default() *Settings {
	ap := wifi.DefaultAPIPConfig()
	return &Settings{
		Version: CurrentVersion,
		Portal: PortalSettings{
			APIP:             ap.IP.String(),
			APGateway:        ap.Gateway.String(),
			APSubnet:         ap.Subnet.String(),
			ConnectTimeout:   portal.DefaultConnectTimeout,
			MinQuality:       scanner.NoQualityFilter,
			RemoveDuplicates: true,
			HTTPAddr:         fmt.Sprintf(":%d", server.DefaultPort),
			DNSAddr:          dnsredirect.DefaultAddr,
		},
		Store: StoreSettings{Backend: credentials.BackendFile},
		Radio: RadioSettings{Backend: RadioWPA, Interface: "wlan0"},
	}
}

// Validate checks every field that Load cannot coerce on its own.
func (s *Settings) Validate() error {
	if s.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", s.Version, CurrentVersion)
	}

	p := s.Portal
	if p.APChannel < 0 || p.APChannel > portal.MaxAPChannel {
		return fmt.Errorf("portal.ap_channel must be 0 (auto) or %d-%d, got %d", portal.MinAPChannel, portal.MaxAPChannel, p.APChannel)
	}
	if n := len(p.APPassword); n != 0 && (n < 8 || n > 63) {
		return fmt.Errorf("portal.ap_password must be empty or 8-63 characters, got %d", n)
	}
	if p.Hostname != "" && portal.SanitizeHostname(p.Hostname) == "" {
		return fmt.Errorf("portal.hostname %q has no valid hostname characters", p.Hostname)
	}
	if p.MinQuality < scanner.NoQualityFilter || p.MinQuality > 100 {
		return fmt.Errorf("portal.min_quality must be -1 (off) or 0-100, got %d", p.MinQuality)
	}
	if p.PortalTimeout < 0 || p.ConnectTimeout < 0 {
		return fmt.Errorf("portal timeouts must not be negative")
	}
	for key, value := range map[string]string{
		"portal.ap_ip":      p.APIP,
		"portal.ap_gateway": p.APGateway,
		"portal.ap_subnet":  p.APSubnet,
	} {
		if parseIPv4(value) == nil {
			return fmt.Errorf("%s: invalid IPv4 address %q", key, value)
		}
	}
	for key, value := range map[string]string{
		"station.ip":      s.Station.IP,
		"station.gateway": s.Station.Gateway,
		"station.subnet":  s.Station.Subnet,
		"station.dns1":    s.Station.DNS1,
		"station.dns2":    s.Station.DNS2,
	} {
		if value != "" && parseIPv4(value) == nil {
			return fmt.Errorf("%s: invalid IPv4 address %q", key, value)
		}
	}
	if _, err := splitAddr(p.HTTPAddr); err != nil {
		return fmt.Errorf("portal.http_addr: %w", err)
	}
	if _, _, err := net.SplitHostPort(p.DNSAddr); err != nil {
		return fmt.Errorf("portal.dns_addr: %w", err)
	}

	switch s.Store.Backend {
	case credentials.BackendFile, credentials.BackendBolt, credentials.BackendMemory:
	default:
		return fmt.Errorf("store.backend must be file, bolt or memory, got %q", s.Store.Backend)
	}
	switch s.Radio.Backend {
	case RadioWPA, RadioSim:
	default:
		return fmt.Errorf("radio.backend must be wpa or sim, got %q", s.Radio.Backend)
	}
	return nil
}

// ToPortalConfig converts validated settings to the portal manager's config.
func (s *Settings) ToPortalConfig() portal.Config {
	p := s.Portal
	cfg := portal.DefaultConfig()
	cfg.APName = p.APName
	cfg.APPassword = p.APPassword
	cfg.APChannel = p.APChannel
	cfg.APIP = wifi.APIPConfig{
		IP:      parseIPv4(p.APIP),
		Gateway: parseIPv4(p.APGateway),
		Subnet:  parseIPv4(p.APSubnet),
	}
	cfg.PortalTimeout = p.PortalTimeout
	cfg.ConnectTimeout = p.ConnectTimeout
	cfg.MinimumQuality = p.MinQuality
	cfg.RemoveDuplicates = p.RemoveDuplicates
	cfg.CustomHead = p.CustomHead
	cfg.BreakAfterConfig = p.BreakAfterConfig
	cfg.CORSHeader = p.CORSHeader
	cfg.Hostname = portal.SanitizeHostname(p.Hostname)

	if s.Station.IP != "" {
		st := wifi.DefaultStationIPConfig()
		st.IP = parseIPv4(s.Station.IP)
		if ip := parseIPv4(s.Station.Gateway); ip != nil {
			st.Gateway = ip
		}
		if ip := parseIPv4(s.Station.Subnet); ip != nil {
			st.Subnet = ip
		}
		if ip := parseIPv4(s.Station.DNS1); ip != nil {
			st.DNS1 = ip
		}
		if ip := parseIPv4(s.Station.DNS2); ip != nil {
			st.DNS2 = ip
		}
		cfg.StationIP = st
	}
	return cfg
}

// ServerConfig returns the portal web server's listen configuration.
func (s *Settings) ServerConfig() (*server.Config, error) {
	return splitAddr(s.Portal.HTTPAddr)
}

func splitAddr(addr string) (*server.Config, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %q", portStr)
	}
	return &server.Config{Host: host, Port: port}, nil
}

func parseIPv4(s string) net.IP {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil
	}
	return ip.To4()
}
