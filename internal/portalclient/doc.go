// Package portalclient talks to a running wifimgr portal over HTTP.
//
// It is the laptop side of provisioning: read the device state, list the
// networks the device can see, submit credentials, and close or reset the
// portal. Watch follows the portal's live WebSocket feed.
//
// # Usage Example
//
//	client := portalclient.NewClient("192.168.4.1", 80)
//	networks, err := client.Scan(ctx)
//	if err != nil {
//	    fmt.Println(portalclient.GetTroubleshootingHint(err))
//	    return err
//	}
//	err = client.SaveWiFi(ctx, &portalclient.Provision{SSID: networks[0].SSID, Password: "secret123"})
//
// # Error Handling
//
// Every failure is a *ClientError classified by ErrorType. Network errors
// and HTTP 5xx responses are retried with exponential backoff; validation
// and parse errors are returned immediately.
package portalclient
