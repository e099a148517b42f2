package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/config"
	"github.com/muurk/wifimgr/internal/credentials"
	"github.com/muurk/wifimgr/internal/discovery"
	"github.com/muurk/wifimgr/internal/dnsredirect"
	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/portal"
	"github.com/muurk/wifimgr/internal/radio"
	"github.com/muurk/wifimgr/internal/radio/sim"
	"github.com/muurk/wifimgr/internal/radio/wpa"
	"github.com/muurk/wifimgr/internal/server"
	"github.com/muurk/wifimgr/internal/system"
	"github.com/muurk/wifimgr/internal/version"
	"github.com/muurk/wifimgr/internal/wifi"
)

// runtime is everything a command needs to drive the portal.
type runtime struct {
	settings *config.Settings
	driver   radio.Driver
	store    credentials.Store
	web      *server.Server
	port     int
	manager  *portal.Manager

	announce *discovery.Announcement
	closers  []func() error
}

type runtimeOptions struct {
	// noRestart replaces the logind restarter with a recorder.
	noRestart bool
}

func newRuntime(settings *config.Settings, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{settings: settings}

	driver, err := openRadio(settings.Radio)
	if err != nil {
		return nil, err
	}
	rt.driver = driver
	if c, ok := driver.(interface{ Close() error }); ok {
		rt.closers = append(rt.closers, c.Close)
	}

	store, err := credentials.Open(settings.Store.Backend, settings.Store.Path)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	rt.store = store
	rt.closers = append(rt.closers, func() error { return credentials.Close(store) })

	srvCfg, err := settings.ServerConfig()
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.web = server.New(srvCfg)
	rt.port = srvCfg.Port

	var restarter system.Restarter = system.LogindRestarter{}
	if opts.noRestart {
		restarter = &system.RecordingRestarter{}
	}

	rt.manager = portal.New(settings.ToPortalConfig(), portal.Deps{
		Driver:    driver,
		Store:     store,
		Web:       rt.web,
		DNS:       dnsredirect.New(settings.Portal.DNSAddr),
		Restarter: restarter,
	})
	return rt, nil
}

func openRadio(cfg config.RadioSettings) (radio.Driver, error) {
	switch cfg.Backend {
	case config.RadioSim:
		logging.Warn("Using the simulated radio; no real network will be joined")
		return sim.New(
			sim.Network{SSID: "wifimgr-demo", Password: "demo-pass", RSSI: -45, Channel: 6, Encryption: wifi.EncryptionWPA2},
			sim.Network{SSID: "open-cafe", RSSI: -70, Channel: 1},
		), nil
	default:
		d, err := wpa.Open(wpa.Config{Interface: cfg.Interface})
		if err != nil {
			return nil, fmt.Errorf("failed to open radio on %s: %w", cfg.Interface, err)
		}
		return d, nil
	}
}

// instanceName is the mDNS instance: the configured hostname, else the OS one.
func (rt *runtime) instanceName() string {
	if h := rt.manager.Config().Hostname; h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil {
		return portal.SanitizeHostname(h)
	}
	return "wifimgr"
}

// startAnnouncing publishes the device over mDNS and keeps its mode TXT
// record in step with the portal. Failure is logged, not fatal.
func (rt *runtime) startAnnouncing() {
	mode := discovery.ModeStation
	if rt.manager.IsConfigPortalActive() {
		mode = discovery.ModePortal
	}

	a, err := discovery.Announce(discovery.Info{
		Instance: rt.instanceName(),
		Port:     rt.port,
		MAC:      rt.driver.MAC(),
		Mode:     mode,
		Version:  version.Version,
	})
	if err != nil {
		logging.Warn("mDNS announcement unavailable", zap.Error(err))
		return
	}
	rt.announce = a

	rt.manager.OnStateChange(func(from, to portal.State) {
		switch {
		case to == portal.StatePortalActive:
			a.SetMode(discovery.ModePortal)
		case to == portal.StateIdle:
			a.SetMode(discovery.ModeStation)
		}
	})
}

// Close releases the radio and the store.
func (rt *runtime) Close() {
	if rt.announce != nil {
		rt.announce.Shutdown()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		logging.Warn("Cleanup failed", zap.Error(err))
	}
}

// loadRuntime loads settings from --config and builds a runtime.
func loadRuntime(opts runtimeOptions) (*runtime, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return newRuntime(settings, opts)
}

// portalLoop ticks a modeless portal until ctx ends.
func portalLoop(ctx context.Context, m *portal.Manager) {
	ticker := time.NewTicker(portal.DefaultTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.StopConfigPortal()
			m.Loop(context.Background())
			return
		case <-ticker.C:
			m.Loop(ctx)
		}
	}
}
