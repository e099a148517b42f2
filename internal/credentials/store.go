package credentials

import (
	"fmt"

	"github.com/muurk/wifimgr/internal/wifi"
)

// Store is the durable home of the credential slots.
type Store interface {
	// LoadSlot returns slot index (0 or 1). An unused slot is a zero Credential.
	LoadSlot(index int) (wifi.Credential, error)
	// SaveSlot overwrites slot index.
	SaveSlot(index int, c wifi.Credential) error
	// LoadStaticIPConfig returns the station config and whether one was saved.
	LoadStaticIPConfig() (wifi.StationIPConfig, bool, error)
	SaveStaticIPConfig(cfg wifi.StationIPConfig) error
	// Reset clears every slot, the static IP config and saved parameters.
	Reset() error
}

// ParamStore is implemented by stores that also keep custom parameter values.
type ParamStore interface {
	LoadParams() (map[string]string, error)
	SaveParams(values map[string]string) error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Open returns the store for a backend name. path is ignored for memory.
func Open(backend, path string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(path), nil
	case BackendBolt:
		return OpenBoltStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential store backend %q", backend)
	}
}

// LoadSlots reads both slots. The first failing read aborts.
func LoadSlots(s Store) ([wifi.SlotCount]wifi.Credential, error) {
	var slots [wifi.SlotCount]wifi.Credential
	for i := range slots {
		c, err := s.LoadSlot(i)
		if err != nil {
			return slots, err
		}
		slots[i] = c
	}
	return slots, nil
}

func checkSlot(index int) error {
	if index < 0 || index >= wifi.SlotCount {
		return NewInvalidSlotError(index)
	}
	return nil
}

// Close releases resources held by stores that have them.
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
