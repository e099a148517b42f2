// Package wifi holds the data model shared by the provisioning packages:
// credential slots with bounded SSID and password buffers, static IP
// configuration, scan result entries and radio connection status codes.
//
// # Bounded text
//
// Credentials mirror the limits of 802.11 and WPA2:
//   - SSID: at most MaxSSIDLength (32) bytes
//   - Password: at most MaxPasswordLength (64) bytes
//
// Values longer than the limit are truncated on assignment, never
// rejected. Truncation never splits a UTF-8 sequence.
//
// # Signal quality
//
// RSSIToQuality maps dBm readings onto a 0-100 scale:
//
//	RSSI <= -100  ->   0%
//	RSSI >=  -50  -> 100%
//	otherwise     -> 2 * (RSSI + 100)
package wifi
