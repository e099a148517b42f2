package tui

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifimgr/internal/discovery"
	"github.com/muurk/wifimgr/internal/portalclient"
)

// ManualInstance marks a device entered by address rather than found by mDNS.
const ManualInstance = "manual"

type scanStartMsg struct{}
type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

type discoveryKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Rescan key.Binding
	Manual key.Binding
	Quit   key.Binding
}

func (k discoveryKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Rescan, k.Manual, k.Quit}
}

func (k discoveryKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Rescan, k.Manual, k.Quit},
	}
}

type manualModeKeyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

func (m manualModeKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{m.Confirm, m.Cancel}
}

func (m manualModeKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{m.Confirm, m.Cancel}}
}

// deviceItem adapts a Device to bubbles/list.
type deviceItem struct {
	device *discovery.Device
}

func (d deviceItem) FilterValue() string {
	return d.device.Instance + " " + d.device.IP + " " + d.device.Hostname
}

func (d deviceItem) Title() string {
	if d.device.Instance == ManualInstance {
		return "Manual: " + d.device.IP
	}
	return d.device.Instance
}

func (d deviceItem) Description() string {
	return fmt.Sprintf("%s:%d • %s", d.device.IP, d.device.Port, modeLabel(d.device.Mode()))
}

func modeLabel(mode string) string {
	switch mode {
	case discovery.ModePortal:
		return "Awaiting setup"
	case discovery.ModeStation:
		return "Connected"
	default:
		return "Unknown"
	}
}

// deviceDelegate renders devices as cards.
type deviceDelegate struct {
	width int
}

func (d deviceDelegate) Height() int                               { return 8 }
func (d deviceDelegate) Spacing() int                              { return 1 }
func (d deviceDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d deviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(deviceItem)
	if !ok {
		return
	}
	device := it.device
	selected := index == m.Index()

	var content strings.Builder
	if selected {
		content.WriteString(SelectedMenuItemStyle.Render("→ " + it.Title()))
	} else {
		content.WriteString("  " + it.Title())
	}
	content.WriteString("\n\n")

	mac := device.MAC()
	if mac == "" {
		mac = "Unknown"
	}
	fmt.Fprintf(&content, "  Address: %s:%d\n", device.IP, device.Port)
	fmt.Fprintf(&content, "  MAC:     %s\n", mac)

	statusColor := SecondaryColor
	if device.Mode() != discovery.ModePortal {
		statusColor = SubtleColor
	}
	content.WriteString("  Status:  " + lipgloss.NewStyle().Foreground(statusColor).Bold(true).Render(modeLabel(device.Mode())))

	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(1, 2).
		MarginLeft(2).
		Width(CardWidth(d.width))
	if selected {
		card = card.BorderForeground(HighlightColor)
	}

	fmt.Fprint(w, card.Render(content.String()))
}

// DiscoveryModel is the device discovery screen.
type DiscoveryModel struct {
	Scanning   bool
	DeviceList list.Model
	Selected   bool
	Err        error

	ManualMode bool
	ManualErr  string
	IPInput    textinput.Model

	Width         int
	Height        int
	Spinner       spinner.Model
	ProgressBar   progress.Model
	ScanStartTime time.Time
	ScanTimeout   time.Duration
	Help          help.Model
	Keys          discoveryKeyMap
	ManualKeys    manualModeKeyMap

	discover DiscoverFunc
}

// NewDiscoveryModel creates the discovery screen. A nil discover uses mDNS.
func NewDiscoveryModel(discover DiscoverFunc) DiscoveryModel {
	if discover == nil {
		discover = mdnsDiscover
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ipInput := textinput.New()
	ipInput.Placeholder = portalclient.DefaultPortalIP
	ipInput.CharLimit = 15
	ipInput.Width = 30

	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.Width = 40

	deviceList := list.New([]list.Item{}, deviceDelegate{width: MinTerminalWidth}, 0, 0)
	deviceList.Title = "Discovered Devices"
	deviceList.SetShowStatusBar(false)
	deviceList.SetFilteringEnabled(true)
	deviceList.Styles.Title = TitleStyle

	keys := discoveryKeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
		Enter:  key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "set up")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Manual: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "manual IP")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
	}
	manualKeys := manualModeKeyMap{
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}

	return DiscoveryModel{
		DeviceList:  deviceList,
		IPInput:     ipInput,
		Spinner:     s,
		ProgressBar: progressBar,
		ScanTimeout: discovery.DefaultScanTimeout,
		Help:        help.New(),
		Keys:        keys,
		ManualKeys:  manualKeys,
		discover:    discover,
	}
}

func (m DiscoveryModel) Init() tea.Cmd {
	return m.startScan()
}

func (m DiscoveryModel) startScan() tea.Cmd {
	discover, timeout := m.discover, m.ScanTimeout
	return tea.Batch(
		func() tea.Msg { return scanStartMsg{} },
		func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), timeout+2*time.Second)
			defer cancel()
			devices, err := discover(ctx)
			return scanCompleteMsg{devices: devices, err: err}
		},
		m.Spinner.Tick,
	)
}

func (m DiscoveryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.DeviceList.SetDelegate(deviceDelegate{width: msg.Width})
		m.DeviceList.SetSize(msg.Width-4, max(msg.Height-10, 10))

	case scanStartMsg:
		m.Scanning = true
		m.ScanStartTime = time.Now()

	case scanCompleteMsg:
		m.Scanning = false
		m.Err = msg.err
		items := make([]list.Item, 0, len(msg.devices))
		// Manually entered devices survive a rescan.
		for _, it := range m.DeviceList.Items() {
			if d, ok := it.(deviceItem); ok && d.device.Instance == ManualInstance {
				items = append(items, it)
			}
		}
		for _, dev := range msg.devices {
			items = append(items, deviceItem{device: dev})
		}
		m.DeviceList.SetItems(items)

	case spinner.TickMsg:
		if !m.Scanning {
			return m, nil
		}
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m DiscoveryModel) updateNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.DeviceList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.DeviceList, cmd = m.DeviceList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "enter", " ":
		if m.DeviceList.SelectedItem() != nil {
			m.Selected = true
		}
		return m, nil

	case "r":
		if m.Scanning {
			return m, nil
		}
		m.Err = nil
		return m, m.startScan()

	case "m":
		m.ManualMode = true
		m.ManualErr = ""
		m.IPInput.SetValue("")
		cmd := m.IPInput.Focus()
		return m, cmd
	}

	var cmd tea.Cmd
	m.DeviceList, cmd = m.DeviceList.Update(msg)
	return m, cmd
}

func (m DiscoveryModel) updateManualMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.ManualMode = false
		m.IPInput.SetValue("")
		m.IPInput.Blur()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.IPInput.Value())
		if value == "" {
			value = portalclient.DefaultPortalIP
		}
		if ip := net.ParseIP(value); ip == nil || ip.To4() == nil {
			m.ManualErr = fmt.Sprintf("%q is not an IPv4 address", value)
			return m, nil
		}

		device := &discovery.Device{
			Instance:     ManualInstance,
			Hostname:     value,
			IP:           value,
			Port:         discovery.DefaultPort,
			DiscoveredAt: time.Now(),
		}
		items := append([]list.Item{deviceItem{device: device}}, m.DeviceList.Items()...)
		m.DeviceList.SetItems(items)
		m.DeviceList.Select(0)
		m.ManualMode = false
		m.ManualErr = ""
		m.IPInput.SetValue("")
		m.IPInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.IPInput, cmd = m.IPInput.Update(msg)
	return m, cmd
}

func (m DiscoveryModel) View() string {
	width := m.Width
	if width == 0 {
		width = DefaultWidth
	}

	var content, helpText string
	switch {
	case m.ManualMode:
		content = m.renderManualEntry()
		helpText = m.Help.View(m.ManualKeys)
	case m.Scanning:
		content = m.renderScanning(width)
		helpText = m.Help.View(m.Keys)
	default:
		content = m.renderDeviceResults()
		helpText = m.Help.View(m.Keys)
	}

	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m DiscoveryModel) renderScanning(width int) string {
	elapsed := time.Since(m.ScanStartTime)
	percent := 1.0
	if m.ScanTimeout > 0 {
		percent = min(1, float64(elapsed)/float64(m.ScanTimeout))
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		"",
		TitleStyle.Render(m.Spinner.View()+" SEARCHING FOR DEVICES"),
		SubtitleStyle.Render("Looking for wifimgr devices on this network..."),
		"",
		m.ProgressBar.ViewAs(percent),
		"",
		SubtitleStyle.Render(fmt.Sprintf("Elapsed: %ds", int(elapsed.Seconds()))),
		"",
	)
	return lipgloss.Place(width, 0, lipgloss.Center, lipgloss.Top, content)
}

var discoveryTips = []string{
	"Join the device's setup network (its name usually starts with the device name)",
	"Devices in setup mode answer at " + portalclient.DefaultPortalIP + " (press m)",
	"mDNS is often blocked on guest networks",
	"Press r to scan again",
}

func (m DiscoveryModel) renderDeviceResults() string {
	var b strings.Builder
	b.WriteString("\n")

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(fmt.Sprintf("Scan failed: %v", m.Err)))
		b.WriteString("\n\n")
		b.WriteString(RenderTroubleshooting(discoveryTips...))

	case len(m.DeviceList.Items()) == 0:
		b.WriteString("  " + WarningTextStyle.Render("⚠ No devices found on your network"))
		b.WriteString("\n\n")
		b.WriteString(RenderTroubleshooting(discoveryTips...))

	default:
		b.WriteString(m.DeviceList.View())
	}

	return b.String()
}

func (m DiscoveryModel) renderManualEntry() string {
	var b strings.Builder
	b.WriteString(RenderSubtitle("Enter the device IP address"))
	b.WriteString("\n\n")
	b.WriteString("  IP Address: ")
	b.WriteString(m.IPInput.View())
	b.WriteString("\n")
	if m.ManualErr != "" {
		b.WriteString("\n  " + WarningTextStyle.Render(m.ManualErr) + "\n")
	}
	return b.String()
}

// GetSelectedDevice returns the chosen device, or nil before a selection.
func (m DiscoveryModel) GetSelectedDevice() *discovery.Device {
	if !m.Selected {
		return nil
	}
	if item, ok := m.DeviceList.SelectedItem().(deviceItem); ok {
		return item.device
	}
	return nil
}

func mdnsDiscover(ctx context.Context) ([]*discovery.Device, error) {
	return discovery.NewScanner().ScanForDevicesWithContext(ctx)
}
