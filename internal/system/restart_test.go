package system

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestRecordingRestarter(t *testing.T) {
	r := &RecordingRestarter{}
	for i := 0; i < 2; i++ {
		if err := r.Restart(); err != nil {
			t.Fatalf("Restart() error = %v", err)
		}
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}

	r.Err = errors.New("busy")
	if err := r.Restart(); err == nil {
		t.Error("Restart() should return the configured error")
	}
}

func TestLogindRestarterBusError(t *testing.T) {
	want := errors.New("no bus")
	l := LogindRestarter{Connect: func(...dbus.ConnOption) (*dbus.Conn, error) { return nil, want }}

	if err := l.Restart(); !errors.Is(err, want) {
		t.Errorf("Restart() = %v, want wrapped %v", err, want)
	}
}

var _ Restarter = LogindRestarter{}
var _ Restarter = (*RecordingRestarter)(nil)
