package wifi

import "fmt"

// Status is the station connection state reported by a radio driver.
type Status int

const (
	StatusIdle Status = iota
	StatusNoSSIDAvailable
	StatusScanCompleted
	StatusConnected
	StatusConnectFailed
	StatusConnectionLost
	StatusDisconnected
	StatusTimedOut
)

// String returns the WL_* name used on the state endpoint.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "WL_IDLE_STATUS"
	case StatusNoSSIDAvailable:
		return "WL_NO_SSID_AVAIL"
	case StatusScanCompleted:
		return "WL_SCAN_COMPLETED"
	case StatusConnected:
		return "WL_CONNECTED"
	case StatusConnectFailed:
		return "WL_CONNECT_FAILED"
	case StatusConnectionLost:
		return "WL_CONNECTION_LOST"
	case StatusDisconnected:
		return "WL_DISCONNECTED"
	case StatusTimedOut:
		return "WL_TIMED_OUT"
	default:
		return fmt.Sprintf("WL_STATUS(%d)", int(s))
	}
}

// Terminal reports whether a connection attempt can stop waiting on s.
func (s Status) Terminal() bool {
	switch s {
	case StatusConnected, StatusConnectFailed, StatusNoSSIDAvailable:
		return true
	}
	return false
}
