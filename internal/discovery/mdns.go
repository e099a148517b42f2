package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/wifimgr/internal/logging"
)

const (
	// ServiceType is the mDNS service type wifimgr devices advertise.
	ServiceType = "_wifimgr._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	DefaultScanTimeout = 10 * time.Second

	// DefaultPort is assumed when an entry carries no port.
	DefaultPort = 80
)

// Scanner handles mDNS device discovery.
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery.
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// ScanForDevices discovers all wifimgr devices on the local network.
func (s *Scanner) ScanForDevices() ([]*Device, error) {
	return s.ScanForDevicesWithContext(context.Background())
}

// ScanForDevicesWithContext browses until the timeout or ctx ends and
// returns every device seen, one entry per instance.
func (s *Scanner) ScanForDevicesWithContext(ctx context.Context) ([]*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	var (
		mu      sync.Mutex
		devices []*Device
		seen    = make(map[string]bool)
	)
	err := s.browse(ctx, func(d *Device) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[d.Instance] {
			seen[d.Instance] = true
			devices = append(devices, d)
		}
		return false
	})
	if err != nil {
		return nil, err
	}

	<-ctx.Done()

	mu.Lock()
	defer mu.Unlock()
	return append([]*Device(nil), devices...), nil
}

// WaitForDevice waits for a device whose instance name or hostname matches name.
func (s *Scanner) WaitForDevice(name string) (*Device, error) {
	return s.WaitForDeviceWithContext(context.Background(), name)
}

// WaitForDeviceWithContext waits for a matching device with a custom context.
func (s *Scanner) WaitForDeviceWithContext(ctx context.Context, name string) (*Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	found := make(chan *Device, 1)
	err := s.browse(ctx, func(d *Device) bool {
		if !matches(d, name) {
			return false
		}
		select {
		case found <- d:
		default:
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	select {
	case d := <-found:
		return d, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("device %s not found within timeout", name)
	}
}

// browse feeds parsed devices to visit until it returns true or ctx ends.
func (s *Scanner) browse(ctx context.Context, visit func(*Device) bool) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-entries:
				if !ok {
					return
				}
				d := parseServiceEntry(entry)
				if d == nil {
					continue
				}
				logging.Debug("mDNS device found",
					zap.String("instance", d.Instance),
					zap.String("ip", d.IP),
					zap.Int("port", d.Port))
				if visit(d) {
					return
				}
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}
	return nil
}

func matches(d *Device, name string) bool {
	name = strings.TrimSuffix(strings.ToLower(name), ".")
	host := strings.TrimSuffix(strings.ToLower(d.Hostname), ".")
	return strings.EqualFold(d.Instance, name) || host == name || host == name+".local"
}

// parseServiceEntry converts a zeroconf entry to a Device, or nil when
// the entry has no usable address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}

	return &Device{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// ScanForDevices scans with a custom timeout.
func ScanForDevices(timeout time.Duration) ([]*Device, error) {
	scanner := NewScanner()
	scanner.Timeout = timeout
	return scanner.ScanForDevices()
}

// FindDevice searches for a device by instance or hostname with the default timeout.
func FindDevice(name string) (*Device, error) {
	return NewScanner().WaitForDevice(name)
}
