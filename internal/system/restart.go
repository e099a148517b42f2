// Package system restarts the host after a credential reset.
package system

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/muurk/wifimgr/internal/logging"
)

// Restarter reboots the device.
type Restarter interface {
	Restart() error
}

const (
	login1Dest   = "org.freedesktop.login1"
	login1Path   = "/org/freedesktop/login1"
	login1Reboot = "org.freedesktop.login1.Manager.Reboot"
)

// LogindRestarter reboots through systemd-logind on the system bus.
type LogindRestarter struct {
	// Connect opens the bus; defaults to dbus.ConnectSystemBus.
	Connect func(opts ...dbus.ConnOption) (*dbus.Conn, error)
}

func (l LogindRestarter) Restart() error {
	connect := l.Connect
	if connect == nil {
		connect = dbus.ConnectSystemBus
	}

	conn, err := connect()
	if err != nil {
		return fmt.Errorf("could not connect to system bus: %w", err)
	}
	defer conn.Close()

	logging.Warn("Rebooting device")

	// interactive=false: fail rather than prompt for authorization.
	call := conn.Object(login1Dest, login1Path).Call(login1Reboot, 0, false)
	if call.Err != nil {
		return fmt.Errorf("reboot request failed: %w", call.Err)
	}
	return nil
}

// RecordingRestarter counts restarts instead of performing them. The
// simulated radio backend and tests use it.
type RecordingRestarter struct {
	mu    sync.Mutex
	count int
	Err   error
}

func (r *RecordingRestarter) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	logging.Info("Restart requested (not performed)")
	return r.Err
}

// Count is the number of Restart calls.
func (r *RecordingRestarter) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
