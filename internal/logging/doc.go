// Package logging provides structured logging for wifimgr.
//
// This package wraps a zap logger with package-level convenience functions.
// It is silent unless a level is passed to Initialize or set through the
// WIFIMGR_LOG_LEVEL environment variable, so library users embedding the
// portal get no output they did not ask for.
//
// # Log Levels
//
//   - Debug: HTTP requests, DNS answers, scan details, websocket frames
//   - Info: portal state changes, connection attempts, saves
//   - Warn: persistence problems, rejected form values
//   - Error: AP or server start failures
//
// # Domain Helpers
//
//	logging.LogPortalTransition("PORTAL_ACTIVE", "PORTAL_SAVED")
//	logging.LogConnectAttempt(0, "HomeNet", "WL_CONNECTED", 2*time.Second)
//	logging.LogDNSQuery("192.168.4.2:5353", "captive.apple.com.", "A", "192.168.4.1")
//
// Every helper takes plain values so callers do not import zap unless they
// need custom fields.
package logging
