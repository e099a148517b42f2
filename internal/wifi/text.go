package wifi

import "unicode/utf8"

const (
	// MaxSSIDLength is the 802.11 SSID limit in bytes
	MaxSSIDLength = 32

	// MaxPasswordLength is the WPA passphrase/PSK buffer size in bytes
	MaxPasswordLength = 64

	// SlotCount is the number of stored credential sets
	SlotCount = 2
)

// Truncate shortens s to at most max bytes without splitting a UTF-8
// sequence. A non-positive max returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
