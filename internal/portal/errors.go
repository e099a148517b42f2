package portal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPortalActive is returned when a portal is started on a Manager that
// is not idle.
var ErrPortalActive = errors.New("config portal already active")

// ErrorType represents the category of portal failure
type ErrorType int

const (
	// ErrTypeInvalidConfig indicates a rejected AP channel, password or address
	ErrTypeInvalidConfig ErrorType = iota
	// ErrTypeAPStart indicates the radio refused to raise the access point
	ErrTypeAPStart
	// ErrTypeDNS indicates the captive DNS responder could not start
	ErrTypeDNS
	// ErrTypeWebServer indicates the portal HTTP server could not start
	ErrTypeWebServer
	// ErrTypePersist indicates submitted settings could not be stored
	ErrTypePersist
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeInvalidConfig:
		return "Invalid Portal Config"
	case ErrTypeAPStart:
		return "Access Point Start Failed"
	case ErrTypeDNS:
		return "DNS Redirect Failed"
	case ErrTypeWebServer:
		return "Web Server Failed"
	case ErrTypePersist:
		return "Persistence Failed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// PortalError is returned by portal start and save operations.
type PortalError struct {
	Type      ErrorType
	Message   string
	Err       error
	Retryable bool
}

func (e *PortalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PortalError) Unwrap() error {
	return e.Err
}

// NewInvalidConfigError creates an error for rejected portal settings
func NewInvalidConfigError(message string) *PortalError {
	return &PortalError{Type: ErrTypeInvalidConfig, Message: message}
}

// NewAPStartError creates an error for a failed access point start.
// AP start is never retried by the portal; callers decide.
func NewAPStartError(ssid string, err error) *PortalError {
	return &PortalError{
		Type:      ErrTypeAPStart,
		Message:   fmt.Sprintf("could not start access point %q", ssid),
		Err:       err,
		Retryable: true,
	}
}

// NewDNSError creates an error for a DNS responder failure
func NewDNSError(err error) *PortalError {
	return &PortalError{Type: ErrTypeDNS, Message: "could not start captive DNS", Err: err, Retryable: true}
}

// NewWebServerError creates an error for an HTTP server failure
func NewWebServerError(err error) *PortalError {
	return &PortalError{Type: ErrTypeWebServer, Message: "could not start portal web server", Err: err, Retryable: true}
}

// NewPersistError creates an error for a store write failure
func NewPersistError(err error) *PortalError {
	return &PortalError{Type: ErrTypePersist, Message: "could not save settings", Err: err}
}

func isType(err error, t ErrorType) bool {
	var pe *PortalError
	return errors.As(err, &pe) && pe.Type == t
}

// IsInvalidConfigError checks if err is a rejected-settings error
func IsInvalidConfigError(err error) bool { return isType(err, ErrTypeInvalidConfig) }

// IsAPStartError checks if err is an access point start failure
func IsAPStartError(err error) bool { return isType(err, ErrTypeAPStart) }

// IsPersistError checks if err is a persistence failure
func IsPersistError(err error) bool { return isType(err, ErrTypePersist) }

// IsRetryable checks if starting the portal again may succeed
func IsRetryable(err error) bool {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetTroubleshootingHint returns advice for a portal error
func GetTroubleshootingHint(err error) string {
	var pe *PortalError
	if !errors.As(err, &pe) {
		return "An unexpected error occurred. Please try again."
	}

	var hint []string
	switch pe.Type {
	case ErrTypeInvalidConfig:
		hint = append(hint,
			"Troubleshooting:",
			"  • The AP channel must be 0 (auto) or between 1 and 11",
			"  • An AP password must be empty or 8 to 63 characters")
	case ErrTypeAPStart:
		hint = append(hint,
			"Troubleshooting:",
			"  • Check that the wireless interface supports AP mode",
			"  • Make sure no other hostapd or NetworkManager hotspot owns the interface",
			"  • Try a fixed channel instead of auto")
	case ErrTypeDNS:
		hint = append(hint,
			"Troubleshooting:",
			"  • Port 53 may already be in use (dnsmasq, systemd-resolved)",
			"  • Binding port 53 requires root or CAP_NET_BIND_SERVICE")
	case ErrTypeWebServer:
		hint = append(hint,
			"Troubleshooting:",
			"  • Port 80 may already be in use",
			"  • Binding port 80 requires root or CAP_NET_BIND_SERVICE")
	case ErrTypePersist:
		hint = append(hint,
			"Troubleshooting:",
			"  • Check free space and permissions of the credential store path")
	}
	return strings.Join(hint, "\n")
}
