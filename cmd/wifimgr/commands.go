package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/wifimgr/internal/portal"
	"github.com/muurk/wifimgr/internal/ui"
	"github.com/muurk/wifimgr/internal/wifi"
)

var (
	modeless      bool
	portalTimeout time.Duration
	scanForce     bool
	resetYes      bool
	noRestart     bool
)

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(portalCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)

	runCmd.Flags().BoolVar(&modeless, "modeless", false, "Keep the portal up alongside the station connection")
	portalCmd.Flags().DurationVar(&portalTimeout, "timeout", 0, "Close the portal after this much inactivity (0 uses the config value)")
	scanCmd.Flags().BoolVar(&scanForce, "force", false, "Always start a fresh hardware scan")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Skip the confirmation prompt")
	resetCmd.Flags().BoolVar(&noRestart, "no-restart", false, "Do not restart the device after erasing")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect, falling back to the config portal",
	Long: `Try each stored network in turn. If none can be joined, raise the
config portal and block until it is saved, closed or times out.

With --modeless the portal is started immediately and kept up while the
stored network is rejoined in the background; it runs until interrupted.`,
	Example: `  # Normal boot-time use
  wifimgr run

  # Keep the portal reachable at all times
  wifimgr run --modeless`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("wifimgr", "wifimgr run",
		ui.D("Interface", rt.settings.Radio.Interface),
		ui.D("Portal AP", rt.manager.GetConfigPortalSSID()),
		ui.D("Mode", runMode()),
	)

	if modeless {
		if err := rt.manager.StartConfigPortalModeless(ctx, true); err != nil {
			p.PrintError("Portal failed to start", err, ui.TroubleshootingLines(portal.GetTroubleshootingHint(err))...)
			return err
		}
		rt.startAnnouncing()
		p.Println(ui.StepRunningStyle.Render("  Portal running; press Ctrl+C to stop."))
		portalLoop(ctx, rt.manager)
		return nil
	}

	connected, err := rt.manager.AutoConnect(ctx)
	if err != nil && ctx.Err() == nil {
		p.PrintError("Portal failed", err, ui.TroubleshootingLines(portal.GetTroubleshootingHint(err))...)
		return err
	}
	printOutcome(p, rt, connected)
	if connected {
		rt.startAnnouncing()
	}
	return nil
}

func runMode() string {
	if modeless {
		return "modeless"
	}
	return "autoconnect"
}

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "Start the config portal now",
	Long: `Raise the config portal without trying stored networks first, and
block until it is saved, closed from the web page or times out.`,
	Example: `  # Open the portal until someone uses it
  wifimgr portal

  # Give up after five idle minutes
  wifimgr portal --timeout 5m`,
	RunE: runPortal,
}

func runPortal(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	if portalTimeout > 0 {
		rt.manager.SetConfigPortalTimeout(portalTimeout)
	}

	ctx, stop := signalContext()
	defer stop()

	p := ui.NewPrinter(cmd.OutOrStdout())
	p.PrintHeader("config portal", "wifimgr portal",
		ui.D("Access point", rt.manager.GetConfigPortalSSID()),
		ui.D("Portal", rt.settings.Portal.APIP),
		ui.D("Timeout", timeoutLabel(rt.manager.Config().PortalTimeout)),
	)

	connected, err := rt.manager.StartConfigPortal(ctx)
	if err != nil && ctx.Err() == nil {
		p.PrintError("Portal failed", err, ui.TroubleshootingLines(portal.GetTroubleshootingHint(err))...)
		return err
	}
	printOutcome(p, rt, connected)
	return nil
}

func timeoutLabel(d time.Duration) string {
	if d <= 0 {
		return "none"
	}
	return d.String()
}

func printOutcome(p *ui.Printer, rt *runtime, connected bool) {
	outcome := rt.manager.Outcome()
	details := []ui.Detail{ui.D("Portal outcome", outcome.String())}

	if connected {
		details = append(details,
			ui.D("SSID", rt.driver.ConnectedSSID()),
			ui.D("IP", ipString(rt.driver.StationIP())),
		)
		p.PrintSuccess("Connected", details...)
		return
	}

	details = append(details, ui.D("Last status", portal.GetStatus(rt.manager.LastStatus())))
	if outcome == portal.StatePortalTimedOut || outcome == portal.StatePortalClosedByUser {
		p.PrintWarning("Not connected", details...)
		return
	}
	p.PrintWarning("Stopped", details...)
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby networks",
	Long: `Scan for access points with the same filtering the portal applies:
strongest first, duplicates merged and weak networks hidden according to
portal.min_quality and portal.remove_duplicates.`,
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	results, err := rt.manager.Scanner().Scan(ctx, scanForce)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No networks found.")
		return nil
	}

	width := len("SSID")
	for _, r := range results {
		width = max(width, len(r.SSID))
	}
	fmt.Fprintf(out, "%-*s  %7s  %4s  %s\n", width, "SSID", "QUALITY", "CH", "SECURITY")
	for _, r := range results {
		ssid := r.SSID
		if ssid == "" {
			ssid = "(hidden)"
		}
		fmt.Fprintf(out, "%-*s  %6d%%  %4d  %s\n", width, ssid, r.Quality(), r.Channel, r.Encryption)
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show radio and stored credential status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(runtimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	m := rt.manager
	details := []ui.Detail{
		ui.D("Status", portal.GetStatus(rt.driver.Status())),
		ui.D("Mode", rt.driver.Mode().String()),
		ui.D("SSID", orNone(rt.driver.ConnectedSSID())),
		ui.D("Station IP", ipString(rt.driver.StationIP())),
		ui.D("MAC", rt.driver.MAC()),
		ui.D("Hostname", orNone(m.Config().Hostname)),
	}
	for i := range wifi.SlotCount {
		details = append(details, ui.D("Slot "+strconv.Itoa(i), orNone(m.GetSSID(i))))
	}
	if tz := m.GetTimezoneName(); tz != "" {
		details = append(details, ui.D("Timezone", tz))
	}
	details = append(details, ui.D("Store", rt.settings.Store.Backend+" "+rt.settings.Store.Path))

	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("wifimgr status", details...)
	return nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return "(none)"
	}
	return ip.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase stored WiFi credentials and restart",
	Long: `Erase both credential slots, the static IP configuration and saved
portal parameters, clear the radio's own stored network and restart the
device so it comes back up in setup mode.`,
	Example: `  # Interactive
  wifimgr reset

  # From a script, without restarting
  wifimgr reset --yes --no-restart`,
	RunE: runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		if !ui.IsTerminal() {
			return fmt.Errorf("refusing to reset without a terminal; pass --yes")
		}
		host, _ := os.Hostname()
		if !ui.ResetConfirmation(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), strings.TrimSpace(host)) {
			return nil
		}
	}

	rt, err := loadRuntime(runtimeOptions{noRestart: noRestart})
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, stop := signalContext()
	defer stop()

	if err := rt.manager.Reset(ctx); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Credentials erased", ui.D("Restart", restartLabel()))
	return nil
}

func restartLabel() string {
	if noRestart {
		return "skipped"
	}
	return "requested"
}
