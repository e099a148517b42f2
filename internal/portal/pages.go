package portal

import (
	"bytes"
	"embed"
	"html/template"
	"net"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/params"
	"github.com/muurk/wifimgr/internal/wifi"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").ParseFS(templateFS, "templates/*.html"))

type networkView struct {
	SSID    string
	Quality int
	Locked  bool
}

type stationFields struct {
	IP, Gateway, Subnet, DNS1, DNS2 string
}

func stationView(c wifi.StationIPConfig) stationFields {
	s := func(ip net.IP) string {
		if ip == nil || ip.IsUnspecified() {
			return ""
		}
		return ip.String()
	}
	return stationFields{
		IP:      s(c.IP),
		Gateway: s(c.Gateway),
		Subnet:  s(c.Subnet),
		DNS1:    s(c.DNS1),
		DNS2:    s(c.DNS2),
	}
}

type pageData struct {
	Title    string
	Head     template.HTML
	APName   string
	Hostname string

	Networks  []networkView
	ScanError string
	SSID0     string
	SSID1     string
	Station   stationFields
	Timezone  string
	Params    template.HTML
	Error     string

	Info deviceInfo
}

func (m *Manager) page(title string) pageData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pageData{
		Title:    title,
		Head:     params.SanitizeHead(m.cfg.CustomHead),
		APName:   m.cfg.APName,
		Hostname: m.cfg.Hostname,
	}
}

func (m *Manager) render(w http.ResponseWriter, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("Failed to render page", zap.String("page", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
