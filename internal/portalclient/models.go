package portalclient

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/muurk/wifimgr/internal/wifi"
)

// State mirrors the portal's /state document.
type State struct {
	Status    string `json:"Status"`
	SSID      string `json:"SSID"`
	StationIP string `json:"Station_IP"`
	SoftAPIP  string `json:"Soft_AP_IP"`
	Gateway   string `json:"Gateway"`
	Portal    string `json:"Portal"`
	Hostname  string `json:"Hostname"`
}

// Connected reports whether the device has joined a network.
func (s *State) Connected() bool {
	return s.Status == wifi.StatusConnected.String()
}

// Network is one entry of the portal's /scan list.
type Network struct {
	SSID       string `json:"SSID"`
	Encryption int    `json:"Encryption"`
	// Quality is a percentage, sent as a string.
	Quality string `json:"Quality"`
}

// QualityPercent parses Quality, returning 0 when it is malformed.
func (n Network) QualityPercent() int {
	q, err := strconv.Atoi(n.Quality)
	if err != nil {
		return 0
	}
	return q
}

// Secured reports whether the network needs a password.
func (n Network) Secured() bool {
	return wifi.Encryption(n.Encryption) != wifi.EncryptionOpen
}

// Provision is a credential submission for /wifisave.
type Provision struct {
	SSID      string
	Password  string
	SSID1     string
	Password1 string

	// Static station addressing; leave IP empty for DHCP.
	IP      string
	Gateway string
	Subnet  string
	DNS1    string
	DNS2    string

	Timezone string
	// Params carries custom parameter values keyed by parameter ID.
	Params map[string]string
}

// Validate applies the checks the portal would apply.
func (p *Provision) Validate() error {
	if p.SSID == "" && p.SSID1 == "" {
		return NewValidationError("an SSID is required")
	}
	for _, c := range []struct{ ssid, pw string }{{p.SSID, p.Password}, {p.SSID1, p.Password1}} {
		if len(c.ssid) > wifi.MaxSSIDLength {
			return NewValidationError(fmt.Sprintf("SSID %q is longer than %d bytes", c.ssid, wifi.MaxSSIDLength))
		}
		if len(c.pw) > wifi.MaxPasswordLength {
			return NewValidationError(fmt.Sprintf("password for %q is longer than %d bytes", c.ssid, wifi.MaxPasswordLength))
		}
	}
	for name, value := range map[string]string{"ip": p.IP, "gateway": p.Gateway, "subnet": p.Subnet, "dns1": p.DNS1, "dns2": p.DNS2} {
		if value == "" {
			continue
		}
		if ip := net.ParseIP(value); ip == nil || ip.To4() == nil {
			return NewValidationError(fmt.Sprintf("%s %q is not a valid IPv4 address", name, value))
		}
	}
	return nil
}

// ToFormData encodes p with the portal's form field names.
func (p *Provision) ToFormData() url.Values {
	form := url.Values{}
	form.Set("s", p.SSID)
	form.Set("p", p.Password)
	if p.SSID1 != "" {
		form.Set("s1", p.SSID1)
		form.Set("p1", p.Password1)
	}
	for key, value := range map[string]string{"ip": p.IP, "gw": p.Gateway, "sn": p.Subnet, "dns1": p.DNS1, "dns2": p.DNS2, "timezone": p.Timezone} {
		if value != "" {
			form.Set(key, value)
		}
	}
	for id, value := range p.Params {
		form.Set(id, value)
	}
	return form
}

// LiveMessage is one frame from the portal's WebSocket feed.
type LiveMessage struct {
	Type     string    `json:"type"`
	State    *State    `json:"state,omitempty"`
	Networks []Network `json:"networks,omitempty"`
}
