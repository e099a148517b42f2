// Package radio defines the WiFi radio driver consumed by the connection
// attempter, the scanner and the config portal.
//
// A Driver exposes station joins, soft access point control, asynchronous
// scanning and addressing. Two implementations live in subpackages:
//
//   - radio/wpa: wpa_supplicant over the system D-Bus
//   - radio/sim: an in-memory radio with scripted networks, used by tests
//     and by `wifimgr run --radio sim`
//
// The portal owns the driver exclusively while a session is active; nothing
// else should switch modes underneath it.
package radio
