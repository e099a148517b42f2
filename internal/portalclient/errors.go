package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred.
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error.
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates an unexpected HTTP status.
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body.
	ErrTypeParse
	// ErrTypeValidation indicates input the portal would reject.
	ErrTypeValidation
	// ErrTypeRejected indicates the portal re-rendered the form with an error.
	ErrTypeRejected
	ErrTypeTimeout
	ErrTypeConnectionRefused
	ErrTypeDNS
)

// String returns a human-readable name for the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeRejected:
		return "Rejected"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ClientError is returned by every Client operation.
type ClientError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps transport failures to an ErrorType.
func classifyNetworkError(message string, err error) *ClientError {
	ce := &ClientError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}
	var dnsErr *net.DNSError
	switch {
	case os.IsTimeout(err):
		ce.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		ce.Type = ErrTypeDNS
		ce.Retryable = false
	case errors.Is(err, syscall.ECONNREFUSED):
		ce.Type = ErrTypeConnectionRefused
	}
	return ce
}

func newHTTPError(status int, message string) *ClientError {
	return &ClientError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: status,
		Retryable:  status >= http.StatusInternalServerError,
	}
}

func newParseError(message string, err error) *ClientError {
	return &ClientError{Type: ErrTypeParse, Message: message, Err: err}
}

// NewValidationError reports input that should not be sent.
func NewValidationError(message string) *ClientError {
	return &ClientError{Type: ErrTypeValidation, Message: message}
}

func isType(err error, t ErrorType) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Type == t
}

// IsNetworkError reports transport-level failures of any kind.
func IsNetworkError(err error) bool {
	return isType(err, ErrTypeNetwork) || isType(err, ErrTypeTimeout) ||
		isType(err, ErrTypeConnectionRefused) || isType(err, ErrTypeDNS)
}

func IsHTTPError(err error) bool       { return isType(err, ErrTypeHTTP) }
func IsParseError(err error) bool      { return isType(err, ErrTypeParse) }
func IsValidationError(err error) bool { return isType(err, ErrTypeValidation) }
func IsRejected(err error) bool        { return isType(err, ErrTypeRejected) }

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetTroubleshootingHint returns user-facing advice for an error.
func GetTroubleshootingHint(err error) string {
	var ce *ClientError
	if !errors.As(err, &ce) {
		return "An unexpected error occurred. Please try again."
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The device did not respond in time.",
			"Troubleshooting:",
			"  • Check that you are still joined to the device's setup network",
			"  • The portal may have timed out; power-cycle the device to reopen it",
		}, "\n")
	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The device refused the connection.",
			"Troubleshooting:",
			"  • The portal is not running; it closes after a save or a timeout",
			"  • Verify the port number (default is 80)",
		}, "\n")
	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the device hostname.",
			"Troubleshooting:",
			"  • Use the portal IP instead (default 192.168.4.1)",
			"  • Run 'wifimgr-cfg discover' to find devices on this network",
		}, "\n")
	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Join the device's access point before provisioning",
			"  • Ensure the device is powered on",
		}, "\n")
	case ErrTypeHTTP:
		if ce.StatusCode >= 500 {
			return fmt.Sprintf("The device returned an error (HTTP %d). Check its log and try again.", ce.StatusCode)
		}
		return fmt.Sprintf("The device returned HTTP error %d. Check the request parameters.", ce.StatusCode)
	case ErrTypeRejected:
		return "The portal rejected the submission: " + ce.Message
	case ErrTypeParse:
		return "Failed to parse the device's response. Client and device versions may differ."
	case ErrTypeValidation:
		return "The values are invalid. Check the error message for details."
	default:
		return "An error occurred. Please check the error message for details."
	}
}
