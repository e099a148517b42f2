package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/muurk/wifimgr/internal/credentials"
)

const (
	appName         = "wifimgr"
	configFile      = "config.yaml"
	credentialsFile = "credentials.yaml"
	envPrefix       = "WIFIMGR"
)

// fileMutex serialises writers within this process.
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/wifimgr or $HOME/.config/wifimgr
//   - macOS: $HOME/.config/wifimgr
//   - Windows: %LOCALAPPDATA%\wifimgr
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the default settings file path.
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// Load reads settings from path, or from GetConfigPath when path is empty.
// Environment overrides and defaults are applied, then the result is
// validated. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	v := newViper()
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if s.Store.Path == "" && s.Store.Backend != credentials.BackendMemory {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		s.Store.Path = filepath.Join(dir, credentialsFile)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &s, nil
}

// newViper returns a viper instance that knows every settings key, so
// AutomaticEnv can resolve WIFIMGR_* overrides for all of them.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	defaults := map[string]any{
		"version":                   d.Version,
		"portal.ap_name":            d.Portal.APName,
		"portal.ap_password":        d.Portal.APPassword,
		"portal.ap_channel":         d.Portal.APChannel,
		"portal.ap_ip":              d.Portal.APIP,
		"portal.ap_gateway":         d.Portal.APGateway,
		"portal.ap_subnet":          d.Portal.APSubnet,
		"portal.portal_timeout":     d.Portal.PortalTimeout,
		"portal.connect_timeout":    d.Portal.ConnectTimeout,
		"portal.min_quality":        d.Portal.MinQuality,
		"portal.remove_duplicates":  d.Portal.RemoveDuplicates,
		"portal.custom_head":        d.Portal.CustomHead,
		"portal.break_after_config": d.Portal.BreakAfterConfig,
		"portal.cors_header":        d.Portal.CORSHeader,
		"portal.http_addr":          d.Portal.HTTPAddr,
		"portal.dns_addr":           d.Portal.DNSAddr,
		"portal.hostname":           d.Portal.Hostname,
		"station.ip":                d.Station.IP,
		"station.gateway":           d.Station.Gateway,
		"station.subnet":            d.Station.Subnet,
		"station.dns1":              d.Station.DNS1,
		"station.dns2":              d.Station.DNS2,
		"store.backend":             d.Store.Backend,
		"store.path":                d.Store.Path,
		"radio.backend":             d.Radio.Backend,
		"radio.interface":           d.Radio.Interface,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// Save writes s to path, creating the directory if needed. The write goes
// through a temporary file and a rename.
func (s *Settings) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# wifimgr configuration
# Every key can be overridden from the environment, e.g.
# WIFIMGR_PORTAL_AP_NAME=garage-sensor
#
# WiFi credentials are kept in the credential store, not in this file.
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
