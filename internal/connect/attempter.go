// Package connect drives station-mode join attempts against the stored
// credential slots.
package connect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
	"github.com/muurk/wifimgr/internal/radio"
	"github.com/muurk/wifimgr/internal/wifi"
)

// DefaultPollInterval is how often the radio status is polled while waiting.
const DefaultPollInterval = 100 * time.Millisecond

// Attempter joins networks through a radio driver.
type Attempter struct {
	Driver radio.Driver

	// Timeout bounds each attempt. Zero waits until the radio settles or
	// the context is cancelled.
	Timeout      time.Duration
	PollInterval time.Duration

	// StationIP is applied before joining when it holds a static address.
	StationIP wifi.StationIPConfig
	Hostname  string
}

// Result is the outcome of ConnectSlots.
type Result struct {
	// Slot is the index that connected, or -1.
	Slot   int
	Status wifi.Status
}

// Connected reports whether a slot connected.
func (r Result) Connected() bool {
	return r.Slot >= 0 && r.Status == wifi.StatusConnected
}

// Connect joins ssid, or rejoins the radio's stored network when ssid is
// empty, and waits for the attempt to resolve.
func (a *Attempter) Connect(ctx context.Context, ssid, password string) wifi.Status {
	a.prepare()

	var err error
	if ssid != "" {
		err = a.Driver.Begin(ssid, password)
	} else {
		err = a.Driver.Reconnect()
	}
	if err != nil {
		logging.Warn("Join request rejected by radio", zap.String("ssid", ssid), zap.Error(err))
		return wifi.StatusConnectFailed
	}

	return a.wait(ctx)
}

func (a *Attempter) prepare() {
	if a.Hostname != "" {
		if err := a.Driver.SetHostname(a.Hostname); err != nil {
			logging.Warn("Could not set hostname", zap.String("hostname", a.Hostname), zap.Error(err))
		}
	}
	if a.StationIP.IsStatic() {
		if err := a.Driver.ConfigureStation(a.StationIP); err != nil {
			logging.Warn("Could not apply static station address", zap.Error(err))
		}
	}
}

func (a *Attempter) wait(ctx context.Context) wifi.Status {
	interval := a.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var deadline <-chan time.Time
	if a.Timeout > 0 {
		timer := time.NewTimer(a.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if status := a.Driver.Status(); status.Terminal() {
			return status
		}

		select {
		case <-ctx.Done():
			return wifi.StatusDisconnected
		case <-deadline:
			// One last look; the radio may have settled on the boundary.
			if s := a.Driver.Status(); s == wifi.StatusConnected {
				return s
			}
			return wifi.StatusTimedOut
		case <-ticker.C:
		}
	}
}

// ConnectSlots tries slot 0 and then slot 1. Empty slots are skipped. On
// overall failure the radio is returned to the mode it had on entry.
func (a *Attempter) ConnectSlots(ctx context.Context, slots [wifi.SlotCount]wifi.Credential) Result {
	prior := a.Driver.Mode()
	last := wifi.StatusDisconnected
	tried := false

	for i, c := range slots {
		if c.Empty() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		tried = true

		start := time.Now()
		status := a.Connect(ctx, c.SSID, c.Password)
		logging.LogConnectAttempt(i, c.SSID, status.String(), time.Since(start))

		if status == wifi.StatusConnected {
			return Result{Slot: i, Status: status}
		}
		last = status
	}

	if !tried {
		last = wifi.StatusNoSSIDAvailable
	}

	if a.Driver.Mode() != prior {
		if err := a.Driver.SetMode(prior); err != nil {
			logging.Warn("Could not restore radio mode",
				zap.String("mode", prior.String()), zap.Error(err))
		}
	}
	return Result{Slot: -1, Status: last}
}
