// Package wpa drives a Linux WiFi interface through wpa_supplicant's D-Bus
// API (fi.w1.wpa_supplicant1).
//
// Station joins add a network object and select it. The soft access point
// is a network in mode 2 ("AP"), which wpa_supplicant supports on most
// nl80211 drivers; a single interface runs either the AP or the station, so
// joining a network from the portal drops the AP until the portal raises it
// again. Interface addresses are set with iproute2 and the transient
// hostname through systemd-hostnamed.
package wpa
