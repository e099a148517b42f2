// Package config loads and saves the settings file for wifimgr.
//
// Settings live in a version 1 YAML document with four sections:
//
//	portal   access point, timeouts, scan filtering and listener addresses
//	station  optional static addressing for station mode
//	store    credential store backend and path
//	radio    radio backend and interface
//
// Load reads the file through viper, so every key can be overridden from
// the environment with the WIFIMGR_ prefix, dots replaced by underscores:
//
//	WIFIMGR_PORTAL_AP_NAME=garage-sensor
//	WIFIMGR_RADIO_INTERFACE=wlan1
//
// A missing file is not an error; defaults apply. Save writes atomically
// through a temporary file and rename.
//
// # File Location
//
//   - Linux: $XDG_CONFIG_HOME/wifimgr/config.yaml or $HOME/.config/wifimgr/config.yaml
//   - macOS: $HOME/.config/wifimgr/config.yaml
//   - Windows: %LOCALAPPDATA%\wifimgr\config.yaml
package config
