package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/wifimgr/internal/discovery"
	"github.com/muurk/wifimgr/internal/portalclient"
	"github.com/muurk/wifimgr/internal/ui"
	"github.com/muurk/wifimgr/internal/wizard/tui"
)

var (
	deviceIP     string
	devicePort   int
	scanTimeout  time.Duration
	outputFormat string

	refresh  bool
	watchFor time.Duration
	resetYes bool

	provision portalclient.Provision
)

func init() {
	rootCmd.PersistentFlags().StringVar(&deviceIP, "device", "", "Portal IP address (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", discovery.DefaultPort, "Portal HTTP port")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
	rootCmd.PersistentFlags().DurationVar(&scanTimeout, "timeout", 5*time.Second, "mDNS discovery timeout")

	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(networksCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(wizardCmd)

	networksCmd.Flags().BoolVar(&refresh, "refresh", false, "Ask the device for a fresh hardware scan")

	f := provisionCmd.Flags()
	f.StringVar(&provision.SSID, "ssid", "", "Network name (required)")
	f.StringVar(&provision.Password, "password", "", "Network password (prompted for when omitted on a terminal)")
	f.StringVar(&provision.SSID1, "ssid1", "", "Fallback network name")
	f.StringVar(&provision.Password1, "password1", "", "Fallback network password")
	f.StringVar(&provision.IP, "ip", "", "Static station IP (default DHCP)")
	f.StringVar(&provision.Gateway, "gateway", "", "Static gateway")
	f.StringVar(&provision.Subnet, "subnet", "", "Static subnet mask")
	f.StringVar(&provision.DNS1, "dns1", "", "Primary DNS server")
	f.StringVar(&provision.DNS2, "dns2", "", "Secondary DNS server")
	f.StringVar(&provision.Timezone, "timezone", "", "Timezone name, e.g. Europe/London")
	f.StringToStringVar(&provision.Params, "param", nil, "Custom portal parameter id=value (repeatable)")
	_ = provisionCmd.MarkFlagRequired("ssid")

	watchCmd.Flags().DurationVar(&watchFor, "for", 0, "Stop after this long (0 runs until interrupted)")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Skip the confirmation prompt")
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find wifimgr devices on the network",
	Long: `Browse mDNS for wifimgr devices and list each one with its address and
whether its setup portal is running.`,
	Example: `  # Browse for five seconds (default)
  wifimgr-cfg discover

  # Longer browse on a busy network
  wifimgr-cfg discover --timeout 15s`,
	RunE: runDiscover,
}

func runDiscover(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if outputFormat != "json" {
		fmt.Fprintf(out, "Browsing for wifimgr devices (timeout: %s)...\n\n", scanTimeout)
	}

	devices, err := discovery.ScanForDevices(scanTimeout)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	if outputFormat == "json" {
		return writeJSON(out, devices)
	}

	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found.")
		fmt.Fprintln(out, "\nTroubleshooting:")
		fmt.Fprintln(out, "  - Devices in setup mode are reachable at "+portalclient.DefaultPortalIP+" once you join their access point")
		fmt.Fprintln(out, "  - mDNS is often blocked on guest and corporate networks")
		fmt.Fprintln(out, "  - Try increasing --timeout")
		return nil
	}

	fmt.Fprintf(out, "Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(out, "%d. %s\n", i+1, d.Instance)
		fmt.Fprintf(out, "   Address: %s\n", d.BaseURL())
		if mac := d.MAC(); mac != "" {
			fmt.Fprintf(out, "   MAC:     %s\n", mac)
		}
		if mode := d.Mode(); mode != "" {
			fmt.Fprintf(out, "   Mode:    %s\n", mode)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintln(out, "Use 'wifimgr-cfg state --device <ip>' to inspect a device")
	return nil
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the device's connection and portal state",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		state, err := client.GetState(cmd.Context())
		if err != nil {
			return describe(err)
		}
		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), state)
		}
		fmt.Fprint(cmd.OutOrStdout(), state.FormatDetailed())
		return nil
	},
}

var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "List the networks the device can see",
	Long: `List the networks from the device's last scan. With --refresh the device
runs a new hardware scan over its live feed first.`,
	RunE: runNetworks,
}

func runNetworks(cmd *cobra.Command, args []string) error {
	client, err := newClient(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var networks []portalclient.Network
	if refresh {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		err = client.RequestScan(ctx, true, func(n []portalclient.Network) bool {
			networks = n
			return false
		})
	} else {
		networks, err = client.Scan(cmd.Context())
	}
	if err != nil {
		return describe(err)
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), networks)
	}
	fmt.Fprint(cmd.OutOrStdout(), portalclient.FormatNetworks(networks))
	return nil
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Send WiFi credentials to the device",
	Long: `Submit credentials to the portal's save endpoint. The device stores them,
closes its portal and joins the network; if the join fails the portal
comes back.`,
	Example: `  # WPA network, password prompted
  wifimgr-cfg provision --ssid HomeNet --device 192.168.4.1

  # With a fallback network and a static address
  wifimgr-cfg provision --ssid HomeNet --password s3cret99 \
    --ssid1 Backup --password1 backup123 \
    --ip 192.168.1.50 --gateway 192.168.1.1 --subnet 255.255.255.0`,
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	if provision.Password == "" && !cmd.Flags().Changed("password") && ui.IsTerminal() {
		pw, err := readPassword(cmd.ErrOrStderr(), provision.SSID)
		if err != nil {
			return err
		}
		provision.Password = pw
	}
	if err := provision.Validate(); err != nil {
		return err
	}

	client, err := newClient(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	header := ui.NewHeader("provision device", "wifimgr-cfg provision",
		ui.D("Device", client.BaseURL),
		ui.D("SSID", provision.SSID),
	)
	runner := ui.NewRunner(cmd.OutOrStdout(), header, "Check portal", "Send credentials")
	runner.Hint = func(err error) []string {
		return ui.TroubleshootingLines(portalclient.GetTroubleshootingHint(err))
	}

	ctx := cmd.Context()
	err = runner.Run("Provision "+provision.SSID, func(step ui.StepFunc) ([]ui.Detail, error) {
		step(1, ui.StepRunning, "")
		state, err := client.GetState(ctx)
		if err != nil {
			step(1, ui.StepFailed, "unreachable")
			return nil, err
		}
		step(1, ui.StepComplete, state.Portal)

		step(2, ui.StepRunning, "")
		if err := client.SaveWiFi(ctx, &provision); err != nil {
			step(2, ui.StepFailed, "")
			return nil, err
		}
		step(2, ui.StepComplete, provision.SSID)

		return []ui.Detail{
			ui.D("Device", state.Hostname),
			ui.D("Next", "the device joins "+provision.SSID+" and its portal closes"),
		}, nil
	})
	if err != nil {
		return errors.New("provisioning failed")
	}
	return nil
}

func readPassword(w io.Writer, ssid string) (string, error) {
	fmt.Fprintf(w, "Password for %s (empty for an open network): ", ssid)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live state and scan updates from the portal",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		if watchFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, watchFor)
			defer cancel()
		}

		out := cmd.OutOrStdout()
		err = client.Watch(ctx, func(msg portalclient.LiveMessage) bool {
			if outputFormat == "json" {
				_ = json.NewEncoder(out).Encode(msg)
				return true
			}
			stamp := time.Now().Format("15:04:05")
			switch {
			case msg.State != nil:
				fmt.Fprintf(out, "[%s] %s\n", stamp, msg.State.Summary())
			case msg.Type == "scan":
				fmt.Fprintf(out, "[%s] %d networks\n", stamp, len(msg.Networks))
			}
			return true
		})
		if err != nil && ctx.Err() == nil {
			return describe(err)
		}
		return nil
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close the portal without saving",
	Long: `Ask the portal to shut down. The device stops its access point and
carries on with whatever connection it has.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if err := client.Close(cmd.Context()); err != nil {
			return describe(err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Portal closing", ui.D("Device", client.BaseURL))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the device's stored credentials and restart it",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		if !resetYes && !ui.ResetConfirmation(cmd.InOrStdin(), cmd.OutOrStdout(), client.BaseURL) {
			return nil
		}
		if err := client.Reset(cmd.Context()); err != nil {
			return describe(err)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintSuccess("Device resetting", ui.D("Device", client.BaseURL))
		return nil
	},
}

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Launch the interactive setup wizard",
	Long: `Launch a full-screen wizard that finds a device, lists the networks
it can see and sends the one you pick.`,
	Example: `  # Discover devices first
  wifimgr-cfg wizard

  # Go straight to a known portal
  wifimgr-cfg wizard --device 192.168.4.1`,
	RunE: runWizard,
}

func runWizard(cmd *cobra.Command, args []string) error {
	var model tea.Model
	if deviceIP != "" {
		device := &discovery.Device{
			Instance:     tui.ManualInstance,
			Hostname:     deviceIP,
			IP:           deviceIP,
			Port:         devicePort,
			DiscoveredAt: time.Now(),
		}
		model = tui.NewAppModel(tui.ScreenNetworks, device, tui.Deps{})
	} else {
		model = tui.NewAppModel(tui.ScreenDiscovery, nil, tui.Deps{})
	}

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("wizard error: %w", err)
	}
	return nil
}

// newClient targets --device, or the single device found over mDNS.
func newClient(w io.Writer) (*portalclient.Client, error) {
	if deviceIP != "" {
		return portalclient.NewClient(deviceIP, devicePort), nil
	}

	fmt.Fprintln(w, "No device specified, browsing mDNS...")
	devices, err := discovery.ScanForDevices(scanTimeout)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	switch len(devices) {
	case 0:
		return nil, fmt.Errorf("no devices found; use --device %s when joined to a setup access point", portalclient.DefaultPortalIP)
	case 1:
		d := devices[0]
		fmt.Fprintf(w, "Found %s at %s\n\n", d.Instance, d.BaseURL())
		return portalclient.NewClientWithURL(d.BaseURL()), nil
	default:
		names := make([]string, len(devices))
		for i, d := range devices {
			names[i] = fmt.Sprintf("%s (%s)", d.Instance, d.IP)
		}
		return nil, fmt.Errorf("multiple devices found: %s; use --device to pick one", strings.Join(names, ", "))
	}
}

// describe adds the troubleshooting headline to a client error.
func describe(err error) error {
	hint := portalclient.GetTroubleshootingHint(err)
	headline, _, _ := strings.Cut(hint, "\n")
	return fmt.Errorf("%w\n%s", err, headline)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
