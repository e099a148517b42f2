package portal

import (
	"fmt"
	"strings"

	"github.com/muurk/wifimgr/internal/scanner"
	"github.com/muurk/wifimgr/internal/wifi"
)

const (
	// MinAPChannel and MaxAPChannel bound a fixed AP channel.
	MinAPChannel = 1
	MaxAPChannel = 11

	minAPPasswordLength = 8
	maxAPPasswordLength = 63

	// MaxHostnameLength bounds RFC952 hostnames.
	MaxHostnameLength = 24

	// DefaultAPName is used when neither an AP name nor a hostname is set.
	DefaultAPName = "no-net"
)

// chooseChannel returns the AP channel. A fixed channel must be within
// 1..11. Channel 0 picks one at random, avoiding the channel of the
// strongest network in cached.
func chooseChannel(fixed int, cached []wifi.ScanResult, intn func(int) int) (int, error) {
	if fixed != 0 {
		if fixed < MinAPChannel || fixed > MaxAPChannel {
			return 0, NewInvalidConfigError(fmt.Sprintf("AP channel %d out of range %d..%d", fixed, MinAPChannel, MaxAPChannel))
		}
		return fixed, nil
	}

	span := MaxAPChannel - MinAPChannel + 1
	channel := MinAPChannel + intn(span)
	if best, ok := scanner.Strongest(cached); ok && best.Channel == channel {
		channel = MinAPChannel + (channel-MinAPChannel+1)%span
	}
	return channel, nil
}

func validateAPPassword(pw string) error {
	if pw == "" {
		return nil
	}
	if n := len(pw); n < minAPPasswordLength || n > maxAPPasswordLength {
		return NewInvalidConfigError(fmt.Sprintf("AP password must be %d to %d characters, got %d",
			minAPPasswordLength, maxAPPasswordLength, n))
	}
	return nil
}

// SanitizeHostname reduces name to an RFC952 hostname: letters, digits and
// '-', no leading or trailing '-', at most MaxHostnameLength characters.
func SanitizeHostname(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), "-")
	if len(out) > MaxHostnameLength {
		out = out[:MaxHostnameLength]
	}
	return strings.TrimRight(out, "-")
}

// defaultAPName derives the AP SSID when none was configured.
func defaultAPName(hostname string) string {
	if hostname != "" {
		return hostname
	}
	return DefaultAPName
}
