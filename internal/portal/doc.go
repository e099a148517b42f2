// Package portal implements the WiFi config portal: a soft access point
// with captive DNS and a small web UI where a user picks a network and
// submits its credentials.
//
// A Manager owns the radio while a portal session runs. HTTP handlers only
// record what was asked for (save, close, reset); Loop applies those
// requests, checks the inactivity timeout and tears the access point down
// when the session ends. StartConfigPortal blocks and ticks Loop itself;
// StartConfigPortalModeless returns at once and leaves the ticking to the
// caller.
//
// # Usage Example
//
//	m := portal.New(portal.DefaultConfig(), portal.Deps{
//	    Driver:    driver,
//	    Store:     store,
//	    Web:       server.New(&server.Config{Host: "0.0.0.0", Port: 80}),
//	    DNS:       dnsredirect.New(dnsredirect.DefaultAddr),
//	    Restarter: system.LogindRestarter{},
//	})
//	connected, err := m.AutoConnect(ctx)
//
// Routes: / (menu), /wifi, /wifisave, /close, /i, /state, /scan, /r and
// the /ws live feed. Any other path on a foreign host is redirected to the
// portal root so phones show their captive-portal sheet.
package portal
