package portal

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/credentials"
	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/wifi"
)

// Route paths served by the portal.
const (
	PathRoot     = "/"
	PathWiFi     = "/wifi"
	PathWiFiSave = "/wifisave"
	PathClose    = "/close"
	PathInfo     = "/i"
	PathState    = "/state"
	PathScan     = "/scan"
	PathReset    = "/r"
	PathLive     = "/ws"
)

func (m *Manager) newRouter() http.Handler {
	r := mux.NewRouter()
	r.Use(m.logRequests, m.portalHeaders)

	r.HandleFunc(PathRoot, m.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(PathWiFi, m.handleWiFi).Methods(http.MethodGet)
	r.HandleFunc(PathWiFiSave, m.handleWiFiSave).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc(PathClose, m.handleClose).Methods(http.MethodGet)
	r.HandleFunc(PathInfo, m.handleInfo).Methods(http.MethodGet)
	r.HandleFunc(PathState, m.handleState).Methods(http.MethodGet)
	r.HandleFunc(PathScan, m.handleScan).Methods(http.MethodGet)
	r.HandleFunc(PathReset, m.handleReset).Methods(http.MethodGet)
	r.Handle(PathLive, m.handleWebSocket()).Methods(http.MethodGet)

	// Router middleware does not wrap the not-found handler.
	r.NotFoundHandler = m.logRequests(m.portalHeaders(http.HandlerFunc(m.handleNotFound)))
	return r
}

func (m *Manager) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, r.Host)
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) portalHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "-1")

		m.mu.Lock()
		cors := m.cfg.CORSHeader
		m.mu.Unlock()
		if cors != "" {
			h.Set("Access-Control-Allow-Origin", cors)
		}
		next.ServeHTTP(w, r)
	})
}

// touch restarts the inactivity timeout.
func (m *Manager) touch() {
	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
}

func (m *Manager) apAddress() net.IP {
	if ip := m.driver.APIP(); ip != nil {
		return ip
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.APIP.IP
}

// captiveRedirect sends clients that asked for a foreign host name to the
// portal root. Requests addressed by IP or by our own hostname pass.
func (m *Manager) captiveRedirect(w http.ResponseWriter, r *http.Request) bool {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || net.ParseIP(host) != nil {
		return false
	}

	m.mu.Lock()
	hostname := m.cfg.Hostname
	m.mu.Unlock()
	if hostname != "" && (strings.EqualFold(host, hostname) || strings.EqualFold(host, hostname+".local")) {
		return false
	}

	target := "http://" + m.apAddress().String() + "/"
	logging.Debug("Captive redirect", zap.String("host", host), zap.String("target", target))
	http.Redirect(w, r, target, http.StatusFound)
	return true
}

func (m *Manager) handleRoot(w http.ResponseWriter, r *http.Request) {
	if m.captiveRedirect(w, r) {
		return
	}
	m.touch()
	m.render(w, http.StatusOK, "menu", m.page("Options"))
}

func (m *Manager) handleWiFi(w http.ResponseWriter, r *http.Request) {
	m.touch()
	data := m.page("Configure WiFi")
	m.fillWiFiForm(r, &data)
	m.render(w, http.StatusOK, "wifi", data)
}

func (m *Manager) fillWiFiForm(r *http.Request, data *pageData) {
	results, err := m.scanner.Scan(r.Context(), false)
	if err != nil {
		logging.Warn("Scan for WiFi page failed", zap.Error(err))
		data.ScanError = "Scan failed, enter the network name manually."
	}
	for _, res := range results {
		if res.Hidden {
			continue
		}
		data.Networks = append(data.Networks, networkView{
			SSID:    res.SSID,
			Quality: res.Quality(),
			Locked:  res.Encryption != wifi.EncryptionOpen,
		})
	}

	m.mu.Lock()
	data.SSID0 = m.slots[0].SSID
	data.SSID1 = m.slots[1].SSID
	data.Timezone = m.timezone
	data.Station = stationView(m.cfg.StationIP)
	m.mu.Unlock()

	fields, err := m.params.RenderAll()
	if err != nil {
		logging.Error("Could not render custom parameters", zap.Error(err))
	}
	data.Params = fields
}

// saveForm is the /wifisave query or form body. Custom parameter values
// are bound separately by id.
type saveForm struct {
	SSID      string `schema:"s"`
	Password  string `schema:"p"`
	SSID1     string `schema:"s1"`
	Password1 string `schema:"p1"`
	IP        string `schema:"ip"`
	Gateway   string `schema:"gw"`
	Subnet    string `schema:"sn"`
	DNS1      string `schema:"dns1"`
	DNS2      string `schema:"dns2"`
	Timezone  string `schema:"timezone"`
}

var formDecoder = newFormDecoder()

func newFormDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

func (m *Manager) handleWiFiSave(w http.ResponseWriter, r *http.Request) {
	m.touch()

	var form saveForm
	if err := r.ParseForm(); err != nil {
		logging.Warn("Malformed save request", zap.Error(err))
	}
	if err := formDecoder.Decode(&form, r.Form); err != nil {
		logging.Warn("Could not decode save request", zap.Error(err))
	}

	slots := [wifi.SlotCount]wifi.Credential{
		wifi.NewCredential(form.SSID, form.Password),
		wifi.NewCredential(form.SSID1, form.Password1),
	}
	m.params.Bind(r.Form)

	fail := func(status int, msg string) {
		data := m.page("Configure WiFi")
		m.fillWiFiForm(r, &data)
		data.Error = msg
		m.render(w, status, "wifi", data)
	}

	if slots[0].Empty() && slots[1].Empty() {
		fail(http.StatusBadRequest, "Please enter a network name.")
		return
	}

	ipcfg, static, err := parseStationForm(form)
	if err != nil {
		fail(http.StatusBadRequest, err.Error())
		return
	}

	m.mu.Lock()
	m.slots = slots
	m.timezone = form.Timezone
	if static {
		m.cfg.StationIP = ipcfg
	}
	m.mu.Unlock()

	if err := m.persist(slots, ipcfg, static, form.Timezone); err != nil {
		logging.Error("Could not persist submitted settings", zap.Error(err))
		fail(http.StatusInternalServerError, "Settings could not be saved. Please try again.")
		return
	}

	m.mu.Lock()
	m.pending = &submission{slots: slots}
	m.mu.Unlock()

	data := m.page("Credentials Saved")
	data.SSID0 = slots[0].SSID
	m.render(w, http.StatusOK, "saved", data)
}

func (m *Manager) persist(slots [wifi.SlotCount]wifi.Credential, ipcfg wifi.StationIPConfig, static bool, tz string) error {
	for i, c := range slots {
		if err := m.store.SaveSlot(i, c); err != nil {
			return NewPersistError(err)
		}
	}
	if static {
		if err := m.store.SaveStaticIPConfig(ipcfg); err != nil {
			return NewPersistError(err)
		}
	}
	if ps, ok := m.store.(credentials.ParamStore); ok {
		values := m.params.Values()
		values[timezoneParamStoreID] = tz
		if err := ps.SaveParams(values); err != nil {
			return NewPersistError(err)
		}
	}
	return nil
}

// parseStationForm reads the optional static address fields. An empty ip
// field leaves the station on DHCP.
func parseStationForm(f saveForm) (wifi.StationIPConfig, bool, error) {
	if strings.TrimSpace(f.IP) == "" {
		return wifi.StationIPConfig{}, false, nil
	}

	cfg := wifi.DefaultStationIPConfig()
	fields := []struct {
		name  string
		value string
		dst   *net.IP
	}{
		{"IP", f.IP, &cfg.IP},
		{"Gateway", f.Gateway, &cfg.Gateway},
		{"Subnet", f.Subnet, &cfg.Subnet},
		{"DNS1", f.DNS1, &cfg.DNS1},
		{"DNS2", f.DNS2, &cfg.DNS2},
	}
	for _, fld := range fields {
		v := strings.TrimSpace(fld.value)
		if v == "" {
			continue
		}
		ip := net.ParseIP(v).To4()
		if ip == nil {
			return cfg, false, fmt.Errorf("%s %q is not a valid IPv4 address", fld.name, v)
		}
		*fld.dst = ip
	}
	return cfg, true, nil
}

func (m *Manager) handleClose(w http.ResponseWriter, r *http.Request) {
	m.render(w, http.StatusOK, "close", m.page("Close Portal"))
	m.StopConfigPortal()
}

func (m *Manager) handleInfo(w http.ResponseWriter, r *http.Request) {
	m.touch()
	data := m.page("Info")
	data.Info = m.info()
	m.render(w, http.StatusOK, "info", data)
}

func (m *Manager) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, m.info())
}

// scanItem is one entry of the /scan response.
type scanItem struct {
	SSID       string `json:"SSID"`
	Encryption int    `json:"Encryption"`
	Quality    string `json:"Quality"`
}

func scanItems(results []wifi.ScanResult) []scanItem {
	items := make([]scanItem, 0, len(results))
	for _, r := range results {
		if r.Hidden {
			continue
		}
		items = append(items, scanItem{
			SSID:       r.SSID,
			Encryption: int(r.Encryption),
			Quality:    strconv.Itoa(r.Quality()),
		})
	}
	return items
}

func (m *Manager) handleScan(w http.ResponseWriter, r *http.Request) {
	results, err := m.scanner.Scan(r.Context(), false)
	if err != nil {
		logging.Warn("Scan request failed", zap.Error(err))
		http.Error(w, "scan failed", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, scanItems(results))
}

func (m *Manager) handleReset(w http.ResponseWriter, r *http.Request) {
	m.render(w, http.StatusOK, "reset", m.page("WiFi Information"))
	m.mu.Lock()
	m.resetRequested = true
	m.mu.Unlock()
}

func (m *Manager) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if m.captiveRedirect(w, r) {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, "File Not Found\n\nURI: %s\nMethod: %s\n", r.URL.Path, r.Method)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("Failed to write JSON response", zap.Error(err))
	}
}
