package credentials

import (
	"net"
	"sync"

	"github.com/muurk/wifimgr/internal/wifi"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	slots     [wifi.SlotCount]wifi.Credential
	station   wifi.StationIPConfig
	hasStatic bool
	params    map[string]string
}

var (
	_ Store      = (*MemoryStore)(nil)
	_ ParamStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{params: make(map[string]string)}
}

func (m *MemoryStore) LoadSlot(index int) (wifi.Credential, error) {
	if err := checkSlot(index); err != nil {
		return wifi.Credential{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.slots[index], nil
}

func (m *MemoryStore) SaveSlot(index int, c wifi.Credential) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[index] = wifi.NewCredential(c.SSID, c.Password)
	return nil
}

func (m *MemoryStore) LoadStaticIPConfig() (wifi.StationIPConfig, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyStation(m.station), m.hasStatic, nil
}

func (m *MemoryStore) SaveStaticIPConfig(cfg wifi.StationIPConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.station = copyStation(cfg)
	m.hasStatic = true
	return nil
}

func (m *MemoryStore) LoadParams() (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.params))
	for k, v := range m.params {
		out[k] = v
	}
	return out, nil
}

func (m *MemoryStore) SaveParams(values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.params[k] = v
	}
	return nil
}

func (m *MemoryStore) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots = [wifi.SlotCount]wifi.Credential{}
	m.station = wifi.StationIPConfig{}
	m.hasStatic = false
	m.params = make(map[string]string)
	return nil
}

func copyStation(c wifi.StationIPConfig) wifi.StationIPConfig {
	return wifi.StationIPConfig{
		IP:      cloneIP(c.IP),
		Gateway: cloneIP(c.Gateway),
		Subnet:  cloneIP(c.Subnet),
		DNS1:    cloneIP(c.DNS1),
		DNS2:    cloneIP(c.DNS2),
	}
}

func cloneIP(ip net.IP) net.IP {
	if ip == nil {
		return nil
	}
	out := make(net.IP, len(ip))
	copy(out, ip)
	return out
}
