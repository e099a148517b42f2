// Package discovery finds and advertises wifimgr devices over mDNS.
//
// A device announces itself as a "_wifimgr._tcp" service once its web
// server is listening, either in portal mode on the soft AP or in station
// mode on the joined network. TXT records carry the device MAC, its mode
// and the build version.
//
// # Usage Example
//
//	devices, err := discovery.ScanForDevices(5 * time.Second)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Instance, d.BaseURL())
//	}
//
// Discovery needs multicast on the local segment (UDP 5353).
package discovery
