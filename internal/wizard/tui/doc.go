// Package tui implements the interactive setup wizard of wifimgr-cfg.
//
// The wizard is a Bubble Tea program with four screens:
//
//  1. Discovery: browse mDNS for wifimgr devices, or enter a portal IP
//     by hand (press m; the default is 192.168.4.1).
//  2. Networks: the chosen device's /state and /scan results. Enter picks
//     a network, h enters a hidden SSID, r refreshes.
//  3. Password entry, then submission to the portal's /wifisave.
//  4. Success or Failure, with retry and troubleshooting.
//
// Each screen renders through RenderApplicationContainer for a common
// header and help footer. Network access is behind the Portal interface
// and DiscoverFunc so screens can be driven by plain messages in tests.
//
//	app := tui.NewAppModel(tui.ScreenDiscovery, nil, tui.Deps{})
//	if _, err := tea.NewProgram(app, tea.WithAltScreen()).Run(); err != nil {
//		return err
//	}
package tui
