package portal

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/connect"
	"github.com/muurk/wifimgr/internal/credentials"
	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/params"
	"github.com/muurk/wifimgr/internal/radio"
	"github.com/muurk/wifimgr/internal/scanner"
	"github.com/muurk/wifimgr/internal/system"
	"github.com/muurk/wifimgr/internal/wifi"
)

const (
	// DefaultPortalTimeout is a sensible inactivity timeout for callers
	// that want one. The zero Config never times out.
	DefaultPortalTimeout = 60 * time.Second
	// DefaultConnectTimeout bounds the join attempt after a save.
	DefaultConnectTimeout = 30 * time.Second
	// ModelessScanInterval is the live rescan period while a websocket
	// client is subscribed.
	ModelessScanInterval = 120 * time.Second
	// DefaultTickInterval is how often the blocking portal ticks Loop.
	DefaultTickInterval = 50 * time.Millisecond
	// DefaultCORSHeader is used by SetCORSHeader with no value.
	DefaultCORSHeader = "*"

	defaultResetDelay    = 2 * time.Second
	webShutdownTimeout   = 5 * time.Second
	timezoneParamStoreID = "wifimgr.timezone"
)

// Config holds the portal settings. The zero value of every field except
// RemoveDuplicates is usable; use DefaultConfig as a starting point.
type Config struct {
	APName     string
	APPassword string
	// APChannel is 1..11, or 0 to pick one automatically.
	APChannel int
	APIP      wifi.APIPConfig

	StationIP wifi.StationIPConfig

	// PortalTimeout is the inactivity limit; 0 keeps the portal up forever.
	PortalTimeout time.Duration
	// ConnectTimeout bounds each join attempt; 0 waits indefinitely.
	ConnectTimeout time.Duration

	MinimumQuality   int
	RemoveDuplicates bool
	CustomHead       string
	BreakAfterConfig bool
	// CORSHeader is sent as Access-Control-Allow-Origin when non-empty.
	CORSHeader string
	Hostname   string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		APIP:             wifi.DefaultAPIPConfig(),
		ConnectTimeout:   DefaultConnectTimeout,
		MinimumQuality:   scanner.NoQualityFilter,
		RemoveDuplicates: true,
	}
}

// WebServer serves the portal's HTTP handler.
type WebServer interface {
	// Serve starts serving h and returns once the listener is bound.
	Serve(h http.Handler) error
	Shutdown(ctx context.Context) error
}

// DNSServer answers captive DNS queries while the AP is up.
type DNSServer interface {
	Start(target net.IP) error
	Stop() error
}

// Deps are the collaborators a Manager drives. Driver and Store are
// required; a nil Web or DNS disables that part of the portal.
type Deps struct {
	Driver    radio.Driver
	Store     credentials.Store
	Web       WebServer
	DNS       DNSServer
	Restarter system.Restarter
	Params    *params.Registry
}

// Option tunes a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for timeout bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRand replaces the channel picker's random source.
func WithRand(intn func(n int) int) Option {
	return func(m *Manager) { m.intn = intn }
}

// WithTickInterval sets how often StartConfigPortal ticks Loop.
func WithTickInterval(d time.Duration) Option {
	return func(m *Manager) { m.tick = d }
}

// WithResetDelay sets the pause between clearing credentials and restarting.
func WithResetDelay(d time.Duration) Option {
	return func(m *Manager) { m.resetDelay = d }
}

// WithScanner replaces the network scanner.
func WithScanner(s *scanner.Scanner) Option {
	return func(m *Manager) { m.scanner = s }
}

// submission is a validated, persisted /wifisave request awaiting Loop.
type submission struct {
	slots [wifi.SlotCount]wifi.Credential
}

// Manager owns the radio for the lifetime of a provisioning session.
// Only Loop (and the blocking wrappers around it) changes portal state;
// HTTP handlers record requests for the next tick.
type Manager struct {
	driver    radio.Driver
	store     credentials.Store
	web       WebServer
	dns       DNSServer
	restarter system.Restarter
	params    *params.Registry
	scanner   *scanner.Scanner
	hub       *hub

	now        func() time.Time
	intn       func(int) int
	tick       time.Duration
	resetDelay time.Duration

	mu             sync.Mutex
	cfg            Config
	state          State
	outcome        State
	modeless       bool
	ap             radio.APConfig
	startedAt      time.Time
	lastActivity   time.Time
	lastLiveScan   time.Time
	closeRequested bool
	resetRequested bool
	pending        *submission
	slots          [wifi.SlotCount]wifi.Credential
	timezone       string
	lastStatus     wifi.Status
	router         http.Handler

	apCallback   func(*Manager)
	saveCallback func()
	stateHook    func(from, to State)
}

// New builds a Manager and loads the stored credential slots.
func New(cfg Config, deps Deps, opts ...Option) *Manager {
	m := &Manager{
		driver:     deps.Driver,
		store:      deps.Store,
		web:        deps.Web,
		dns:        deps.DNS,
		restarter:  deps.Restarter,
		params:     deps.Params,
		now:        time.Now,
		intn:       rand.Intn,
		tick:       DefaultTickInterval,
		resetDelay: defaultResetDelay,
		state:      StateIdle,
		outcome:    StateIdle,
		lastStatus: wifi.StatusIdle,
		hub:        newHub(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.params == nil {
		m.params = params.NewRegistry(params.DefaultCapacity)
	}
	if m.restarter == nil {
		m.restarter = &system.RecordingRestarter{}
	}
	if m.scanner == nil {
		m.scanner = scanner.New(m.driver, scanner.WithClock(m.now))
	}

	cfg.Hostname = SanitizeHostname(cfg.Hostname)
	if cfg.APName == "" {
		cfg.APName = defaultAPName(cfg.Hostname)
	}
	if cfg.APIP.IP == nil {
		cfg.APIP = wifi.DefaultAPIPConfig()
	}
	m.cfg = cfg
	m.scanner.SetMinimumSignalQuality(cfg.MinimumQuality)
	m.scanner.SetRemoveDuplicateAPs(cfg.RemoveDuplicates)

	m.loadStored()
	return m
}

func (m *Manager) loadStored() {
	slots, err := credentials.LoadSlots(m.store)
	if err != nil {
		logging.Warn("Could not load stored credentials", zap.Error(err))
	}
	m.slots = slots

	if !m.cfg.StationIP.IsStatic() {
		if ipcfg, found, err := m.store.LoadStaticIPConfig(); err != nil {
			logging.Warn("Could not load static IP config", zap.Error(err))
		} else if found {
			m.cfg.StationIP = ipcfg
		}
	}

	if ps, ok := m.store.(credentials.ParamStore); ok {
		values, err := ps.LoadParams()
		if err != nil {
			logging.Warn("Could not load saved parameters", zap.Error(err))
			return
		}
		m.timezone = values[timezoneParamStoreID]
		m.params.Restore(values)
	}
}

// attempter returns a connection attempter for the current settings.
func (m *Manager) attempter() *connect.Attempter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &connect.Attempter{
		Driver:    m.driver,
		Timeout:   m.cfg.ConnectTimeout,
		StationIP: m.cfg.StationIP,
		Hostname:  m.cfg.Hostname,
	}
}

// AutoConnect tries the stored slots and falls back to the blocking config
// portal. It reports whether the station ended up connected.
func (m *Manager) AutoConnect(ctx context.Context) (bool, error) {
	m.mu.Lock()
	slots := m.slots
	m.mu.Unlock()

	a := m.attempter()
	if slots[0].Empty() && slots[1].Empty() && !m.driver.StoredCredential().Empty() {
		status := a.Connect(ctx, "", "")
		m.setLastStatus(status)
		if status == wifi.StatusConnected {
			logging.Info("Connected using radio-stored credentials")
			return true, nil
		}
	} else if res := a.ConnectSlots(ctx, slots); res.Connected() {
		m.setLastStatus(res.Status)
		logging.Info("Connected using stored credentials", zap.Int("slot", res.Slot))
		return true, nil
	} else {
		m.setLastStatus(res.Status)
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	logging.Info("No stored network reachable, starting config portal")
	return m.StartConfigPortal(ctx)
}

// StartConfigPortal raises the portal and blocks until it finishes or ctx
// is cancelled. It reports whether the station is connected on return.
func (m *Manager) StartConfigPortal(ctx context.Context) (bool, error) {
	if err := m.startPortal(false); err != nil {
		return false, err
	}

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for m.State() != StateIdle {
		select {
		case <-ctx.Done():
			m.StopConfigPortal()
			m.Loop(context.Background())
			return m.driver.Status() == wifi.StatusConnected, ctx.Err()
		case <-ticker.C:
			m.Loop(ctx)
		}
	}
	return m.driver.Status() == wifi.StatusConnected, nil
}

// StartConfigPortalModeless raises the portal and returns. The caller must
// call Loop regularly. With shouldConnect a rejoin of the radio's stored
// network is requested first, without waiting for it.
func (m *Manager) StartConfigPortalModeless(ctx context.Context, shouldConnect bool) error {
	if shouldConnect {
		a := m.attempter()
		if a.Hostname != "" {
			_ = m.driver.SetHostname(a.Hostname)
		}
		if err := m.driver.Reconnect(); err != nil {
			logging.Warn("Stored network rejoin failed", zap.Error(err))
		}
	}
	return m.startPortal(true)
}

func (m *Manager) startPortal(modeless bool) (err error) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrPortalActive
	}
	m.modeless = modeless
	m.closeRequested = false
	m.resetRequested = false
	m.pending = nil
	cfg := m.cfg
	m.mu.Unlock()

	m.transition(StatePortalStarting)

	var started struct{ ap, dns, web bool }
	defer func() {
		if err == nil {
			return
		}
		logging.Error("Config portal failed to start", zap.Error(err))
		m.shutdown(started.ap, started.dns, started.web)
		m.transition(StateIdle)
	}()

	router := m.newRouter()

	cached, _ := m.scanner.Cached()
	channel, err := chooseChannel(cfg.APChannel, cached, m.intn)
	if err != nil {
		return err
	}
	if err := validateAPPassword(cfg.APPassword); err != nil {
		return err
	}

	ap := radio.APConfig{
		SSID:     wifi.Truncate(cfg.APName, wifi.MaxSSIDLength),
		Password: cfg.APPassword,
		Channel:  channel,
		IP:       cfg.APIP,
	}
	if err := m.driver.StartAP(ap); err != nil {
		return NewAPStartError(ap.SSID, err)
	}
	started.ap = true

	if m.dns != nil {
		if err := m.dns.Start(ap.IP.IP); err != nil {
			return NewDNSError(err)
		}
		started.dns = true
	}

	if m.web != nil {
		if err := m.web.Serve(router); err != nil {
			return NewWebServerError(err)
		}
		started.web = true
	}

	m.mu.Lock()
	m.router = router
	m.ap = ap
	m.startedAt = m.now()
	m.lastActivity = m.startedAt
	m.lastLiveScan = m.startedAt
	cb := m.apCallback
	m.mu.Unlock()

	logging.Info("Config portal started",
		zap.String("ssid", ap.SSID),
		zap.Int("channel", ap.Channel),
		zap.String("ip", ap.IP.IP.String()),
		zap.Bool("modeless", modeless),
	)

	m.transition(StatePortalActive)
	if cb != nil {
		cb(m)
	}
	return nil
}

// Loop advances the portal by one step. It is a no-op unless the portal
// is active, and safe to call at any rate.
func (m *Manager) Loop(ctx context.Context) {
	m.mu.Lock()
	if m.state != StatePortalActive {
		m.mu.Unlock()
		return
	}

	now := m.now()
	switch {
	case m.resetRequested:
		m.resetRequested = false
		m.mu.Unlock()
		if err := m.Reset(ctx); err != nil {
			logging.Error("Reset failed", zap.Error(err))
		}
		m.finish(StatePortalClosedByUser)
		return

	case m.closeRequested:
		m.closeRequested = false
		m.mu.Unlock()
		m.finish(StatePortalClosedByUser)
		return

	case m.pending != nil:
		sub := *m.pending
		m.pending = nil
		m.mu.Unlock()
		m.completeSave(ctx, sub)
		return

	case m.cfg.PortalTimeout > 0 && now.Sub(m.lastActivity) >= m.cfg.PortalTimeout:
		m.mu.Unlock()
		logging.Info("Config portal timed out", zap.Duration("timeout", m.cfg.PortalTimeout))
		m.finish(StatePortalTimedOut)
		return
	}

	liveScan := m.hub.count() > 0 && now.Sub(m.lastLiveScan) >= ModelessScanInterval
	if liveScan {
		m.lastLiveScan = now
	}
	m.mu.Unlock()

	if liveScan {
		results, err := m.scanner.Scan(ctx, true)
		if err != nil {
			logging.Warn("Live rescan failed", zap.Error(err))
			return
		}
		m.hub.broadcast(liveMessage{Type: "scan", Networks: scanItems(results)})
	}
}

func (m *Manager) completeSave(ctx context.Context, sub submission) {
	m.transition(StatePortalSaved)

	m.mu.Lock()
	cb := m.saveCallback
	breakAfter := m.cfg.BreakAfterConfig
	ap := m.ap
	m.mu.Unlock()

	if cb != nil {
		cb()
	}

	res := m.attempter().ConnectSlots(ctx, sub.slots)
	m.setLastStatus(res.Status)
	m.hub.broadcast(m.stateMessage())

	if res.Connected() || breakAfter {
		m.finish(StatePortalSaved)
		return
	}

	logging.Info("Connection with submitted credentials failed, portal stays up",
		zap.String("status", res.Status.String()))

	// Some radios cannot keep the AP up while joining.
	if !m.driver.Mode().HasAP() {
		if err := m.driver.StartAP(ap); err != nil {
			logging.Error("Could not re-raise access point", zap.Error(err))
			m.finish(StatePortalTimedOut)
			return
		}
	}

	m.mu.Lock()
	m.lastActivity = m.now()
	m.mu.Unlock()
	m.transition(StatePortalActive)
}

// finish tears the portal down after a terminal state.
func (m *Manager) finish(terminal State) {
	m.mu.Lock()
	current := m.state
	m.mu.Unlock()
	if current != terminal {
		m.transition(terminal)
	}

	m.shutdown(true, m.dns != nil, m.web != nil)

	m.mu.Lock()
	m.outcome = terminal
	m.router = nil
	m.mu.Unlock()

	m.hub.closeAll()
	m.transition(StateIdle)
}

func (m *Manager) shutdown(ap, dns, web bool) {
	if web {
		ctx, cancel := context.WithTimeout(context.Background(), webShutdownTimeout)
		if err := m.web.Shutdown(ctx); err != nil {
			logging.Warn("Portal web server shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if dns {
		if err := m.dns.Stop(); err != nil {
			logging.Warn("Captive DNS shutdown failed", zap.Error(err))
		}
	}
	if ap {
		if err := m.driver.StopAP(); err != nil {
			logging.Warn("Access point shutdown failed", zap.Error(err))
		}
	}
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	hook := m.stateHook
	m.mu.Unlock()

	if from == to {
		return
	}
	logging.LogPortalTransition(from.String(), to.String())
	if hook != nil {
		hook(from, to)
	}
}

// StopConfigPortal asks the portal to close on the next tick.
func (m *Manager) StopConfigPortal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePortalActive {
		m.closeRequested = true
	}
}

// Reset clears the stored credentials and the radio's own copy, then
// restarts the device. The restart happens even when the store could not
// be cleared; the store error is returned alongside any restart error.
func (m *Manager) Reset(ctx context.Context) error {
	logging.Warn("Resetting stored WiFi credentials")

	storeErr := m.store.Reset()
	if storeErr != nil {
		logging.Error("Could not clear credential store, restarting anyway", zap.Error(storeErr))
	}
	if err := m.driver.Disconnect(true); err != nil {
		logging.Warn("Radio disconnect failed during reset", zap.Error(err))
	}

	m.mu.Lock()
	m.slots = [wifi.SlotCount]wifi.Credential{}
	m.timezone = ""
	delay := m.resetDelay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(storeErr, ctx.Err())
		case <-timer.C:
		}
	}
	return errors.Join(storeErr, m.restarter.Restart())
}

func (m *Manager) setLastStatus(s wifi.Status) {
	m.mu.Lock()
	m.lastStatus = s
	m.mu.Unlock()
}

// State returns the current portal state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Outcome returns the terminal state the last portal session ended in, or
// StateIdle if no session has finished.
func (m *Manager) Outcome() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// IsConfigPortalActive reports whether the portal is serving.
func (m *Manager) IsConfigPortalActive() bool {
	return m.State() == StatePortalActive
}

// LastStatus is the result of the most recent connection attempt.
func (m *Manager) LastStatus() wifi.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastStatus
}

// Handler returns the portal's HTTP routes, building them if no portal
// is running.
func (m *Manager) Handler() http.Handler {
	m.mu.Lock()
	r := m.router
	m.mu.Unlock()
	if r != nil {
		return r
	}
	return m.newRouter()
}

// Scanner returns the network scanner the portal uses.
func (m *Manager) Scanner() *scanner.Scanner {
	return m.scanner
}

// Params returns the custom parameter registry.
func (m *Manager) Params() *params.Registry {
	return m.params
}

// AddParameter registers a custom form field.
func (m *Manager) AddParameter(p *params.Parameter) bool {
	return m.params.AddParameter(p)
}
