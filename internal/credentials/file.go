package credentials

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/wifimgr/internal/wifi"
)

const fileFormatVersion = 1

// FileStore keeps the slots in a YAML file.
// Writes go to a temporary file that is renamed over the target.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var (
	_ Store      = (*FileStore)(nil)
	_ ParamStore = (*FileStore)(nil)
)

type fileDocument struct {
	Version int                             `yaml:"version"`
	Slots   [wifi.SlotCount]wifi.Credential `yaml:"slots"`
	Station *stationDocument                `yaml:"station,omitempty"`
	Params  map[string]string               `yaml:"params,omitempty"`
}

// IPs are stored as dotted strings so the file stays hand-editable.
type stationDocument struct {
	IP      string `yaml:"ip"`
	Gateway string `yaml:"gateway,omitempty"`
	Subnet  string `yaml:"subnet,omitempty"`
	DNS1    string `yaml:"dns1,omitempty"`
	DNS2    string `yaml:"dns2,omitempty"`
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) LoadSlot(index int) (wifi.Credential, error) {
	if err := checkSlot(index); err != nil {
		return wifi.Credential{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return wifi.Credential{}, err
	}
	c := doc.Slots[index]
	return wifi.NewCredential(c.SSID, c.Password), nil
}

func (f *FileStore) SaveSlot(index int, c wifi.Credential) error {
	if err := checkSlot(index); err != nil {
		return err
	}
	return f.update(func(doc *fileDocument) {
		doc.Slots[index] = wifi.NewCredential(c.SSID, c.Password)
	})
}

func (f *FileStore) LoadStaticIPConfig() (wifi.StationIPConfig, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil || doc.Station == nil {
		return wifi.StationIPConfig{}, false, err
	}
	return wifi.StationIPConfig{
		IP:      net.ParseIP(doc.Station.IP),
		Gateway: net.ParseIP(doc.Station.Gateway),
		Subnet:  net.ParseIP(doc.Station.Subnet),
		DNS1:    net.ParseIP(doc.Station.DNS1),
		DNS2:    net.ParseIP(doc.Station.DNS2),
	}, true, nil
}

func (f *FileStore) SaveStaticIPConfig(cfg wifi.StationIPConfig) error {
	return f.update(func(doc *fileDocument) {
		doc.Station = &stationDocument{
			IP:      ipString(cfg.IP),
			Gateway: ipString(cfg.Gateway),
			Subnet:  ipString(cfg.Subnet),
			DNS1:    ipString(cfg.DNS1),
			DNS2:    ipString(cfg.DNS2),
		}
	})
}

func (f *FileStore) LoadParams() (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(doc.Params))
	for k, v := range doc.Params {
		out[k] = v
	}
	return out, nil
}

func (f *FileStore) SaveParams(values map[string]string) error {
	return f.update(func(doc *fileDocument) {
		if doc.Params == nil {
			doc.Params = make(map[string]string, len(values))
		}
		for k, v := range values {
			doc.Params[k] = v
		}
	})
}

// Reset removes the file. A missing file reads as an empty store.
func (f *FileStore) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return NewIOError("failed to remove credential file", f.path, err)
	}
	return nil
}

func (f *FileStore) update(mutate func(doc *fileDocument)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return err
	}
	mutate(doc)
	return f.write(doc)
}

// read must be called with f.mu held.
func (f *FileStore) read() (*fileDocument, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return &fileDocument{Version: fileFormatVersion}, nil
	}
	if err != nil {
		return nil, NewIOError("failed to read credential file", f.path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, NewCorruptError("failed to parse credential file", f.path, err)
	}
	if doc.Version != fileFormatVersion {
		return nil, NewCorruptError(fmt.Sprintf("unsupported credential file version: %d (expected %d)", doc.Version, fileFormatVersion), f.path, nil)
	}
	return &doc, nil
}

// write must be called with f.mu held.
func (f *FileStore) write(doc *fileDocument) error {
	doc.Version = fileFormatVersion

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return NewIOError("failed to create credential directory", f.path, err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return NewIOError("failed to marshal credentials", f.path, err)
	}
	header := []byte("# wifimgr credential store\n# Contains WiFi passwords in clear text. Keep this file private.\n\n")
	data = append(header, data...)

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return NewIOError("failed to write temporary credential file", tmpPath, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return NewIOError("failed to save credential file", f.path, err)
	}
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
