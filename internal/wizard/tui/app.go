package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifimgr/internal/discovery"
	"github.com/muurk/wifimgr/internal/portalclient"
	"github.com/muurk/wifimgr/internal/ui"
)

// Screen is the active wizard screen.
type Screen string

const (
	ScreenDiscovery Screen = "discovery"
	ScreenNetworks  Screen = "networks"
	ScreenSuccess   Screen = "success"
	ScreenFailure   Screen = "failure"
)

// Portal is the part of the portal client the wizard drives.
type Portal interface {
	GetState(ctx context.Context) (*portalclient.State, error)
	Scan(ctx context.Context) ([]portalclient.Network, error)
	SaveWiFi(ctx context.Context, p *portalclient.Provision) error
}

// DiscoverFunc finds devices until ctx ends.
type DiscoverFunc func(ctx context.Context) ([]*discovery.Device, error)

// Deps are the wizard's collaborators. Zero values use mDNS and HTTP.
type Deps struct {
	Discover DiscoverFunc
	Connect  func(d *discovery.Device) Portal
}

func (d Deps) connect(dev *discovery.Device) Portal {
	if d.Connect != nil {
		return d.Connect(dev)
	}
	return portalclient.NewClient(dev.IP, dev.Port)
}

type resultKeyMap struct {
	Retry    key.Binding
	Discover key.Binding
	Quit     key.Binding
}

func (k resultKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Retry, k.Discover, k.Quit}
}

func (k resultKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Retry, k.Discover, k.Quit}}
}

// AppModel coordinates the wizard screens.
type AppModel struct {
	CurrentScreen  Screen
	PreviousScreen Screen

	DiscoveryModel DiscoveryModel
	NetworksModel  NetworksModel

	SelectedDevice  *discovery.Device
	ProvisionedSSID string
	LastError       error

	Width  int
	Height int

	Help        help.Model
	SuccessKeys resultKeyMap
	FailureKeys resultKeyMap

	deps Deps
}

// NewAppModel creates the wizard. Starting on ScreenNetworks requires a
// device.
func NewAppModel(startScreen Screen, device *discovery.Device, deps Deps) AppModel {
	m := AppModel{
		SelectedDevice: device,
		Help:           help.New(),
		SuccessKeys: resultKeyMap{
			Retry:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "another network")),
			Discover: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "another device")),
			Quit:     key.NewBinding(key.WithKeys("q", "enter"), key.WithHelp("q", "quit")),
		},
		FailureKeys: resultKeyMap{
			Retry:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
			Discover: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "another device")),
			Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		},
		deps: deps,
	}

	if startScreen == ScreenNetworks && device != nil {
		m.CurrentScreen = ScreenNetworks
		m.NetworksModel = NewNetworksModel(deps.connect(device), describeDevice(device))
	} else {
		m.CurrentScreen = ScreenDiscovery
		m.DiscoveryModel = NewDiscoveryModel(deps.Discover)
	}
	return m
}

func (m AppModel) Init() tea.Cmd {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.Init()
	case ScreenNetworks:
		return m.NetworksModel.Init()
	default:
		return nil
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		var cmd tea.Cmd
		updated, c1 := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		if m.NetworksModel.Portal != nil {
			updated, cmd = m.NetworksModel.Update(msg)
			m.NetworksModel = updated.(NetworksModel)
		}
		return m, tea.Batch(c1, cmd)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m.updateCurrentScreen(msg)
}

func (m AppModel) updateCurrentScreen(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		// Quit only from the list, not while typing.
		if keyMsg, ok := msg.(tea.KeyMsg); ok && !m.DiscoveryModel.ManualMode {
			if s := keyMsg.String(); (s == "q" || s == "esc") && m.DiscoveryModel.DeviceList.FilterState() == list.Unfiltered {
				return m, tea.Quit
			}
		}

		updated, cmd := m.DiscoveryModel.Update(msg)
		m.DiscoveryModel = updated.(DiscoveryModel)
		if dev := m.DiscoveryModel.GetSelectedDevice(); dev != nil {
			m.SelectedDevice = dev
			return m.transitionTo(ScreenNetworks)
		}
		return m, cmd

	case ScreenNetworks:
		updated, cmd := m.NetworksModel.Update(msg)
		m.NetworksModel = updated.(NetworksModel)

		if m.NetworksModel.IsBackRequested() {
			return m.transitionTo(ScreenDiscovery)
		}
		if done, err := m.NetworksModel.Done(); done {
			m.LastError = err
			if err != nil {
				return m.transitionTo(ScreenFailure)
			}
			m.ProvisionedSSID = m.NetworksModel.Chosen.SSID
			return m.transitionTo(ScreenSuccess)
		}
		return m, cmd

	case ScreenSuccess:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "n":
				return m.transitionTo(ScreenNetworks)
			case "d":
				return m.transitionTo(ScreenDiscovery)
			case "q", "enter":
				return m, tea.Quit
			}
		}

	case ScreenFailure:
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "r":
				return m.transitionTo(ScreenNetworks)
			case "d":
				return m.transitionTo(ScreenDiscovery)
			case "q":
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m AppModel) transitionTo(screen Screen) (tea.Model, tea.Cmd) {
	m.PreviousScreen = m.CurrentScreen
	m.CurrentScreen = screen
	size := tea.WindowSizeMsg{Width: m.Width, Height: m.Height}

	switch screen {
	case ScreenDiscovery:
		m.SelectedDevice = nil
		m.DiscoveryModel = NewDiscoveryModel(m.deps.Discover)
		if m.Width > 0 {
			updated, _ := m.DiscoveryModel.Update(size)
			m.DiscoveryModel = updated.(DiscoveryModel)
		}
		return m, m.DiscoveryModel.Init()

	case ScreenNetworks:
		m.LastError = nil
		m.NetworksModel = NewNetworksModel(m.deps.connect(m.SelectedDevice), describeDevice(m.SelectedDevice))
		if m.Width > 0 {
			updated, _ := m.NetworksModel.Update(size)
			m.NetworksModel = updated.(NetworksModel)
		}
		return m, m.NetworksModel.Init()
	}
	return m, nil
}

func (m AppModel) View() string {
	switch m.CurrentScreen {
	case ScreenDiscovery:
		return m.DiscoveryModel.View()
	case ScreenNetworks:
		return m.NetworksModel.View()
	case ScreenSuccess:
		return RenderApplicationContainer(m.buildSuccessContent(), m.Help.View(m.SuccessKeys), m.Width, m.Height)
	case ScreenFailure:
		return RenderApplicationContainer(m.buildFailureContent(), m.Help.View(m.FailureKeys), m.Width, m.Height)
	default:
		return "Unknown screen"
	}
}

func (m AppModel) buildSuccessContent() string {
	var b strings.Builder
	b.WriteString(RenderTitle("✓ Settings Sent"))
	b.WriteString("\n")
	b.WriteString(RenderSuccess(fmt.Sprintf("%s will now join %s", m.deviceName(), m.ProvisionedSSID)))
	b.WriteString("\n\n")
	b.WriteString("  The setup network disappears once the device connects.\n")
	b.WriteString("  Rejoin your usual network; the device announces itself there over mDNS.\n")
	b.WriteString("  If it cannot connect, the setup network comes back.\n")
	return b.String()
}

func (m AppModel) buildFailureContent() string {
	var b strings.Builder
	b.WriteString(RenderTitle("✗ Setup Failed"))
	b.WriteString("\n")
	if m.LastError != nil {
		b.WriteString(RenderError(m.LastError.Error()))
		b.WriteString("\n\n")
		b.WriteString(RenderTroubleshooting(ui.TroubleshootingLines(portalclient.GetTroubleshootingHint(m.LastError))...))
	}
	return b.String()
}

func (m AppModel) deviceName() string {
	if m.SelectedDevice == nil {
		return "The device"
	}
	if m.SelectedDevice.Instance != "" && m.SelectedDevice.Instance != ManualInstance {
		return m.SelectedDevice.Instance
	}
	return m.SelectedDevice.IP
}

func describeDevice(d *discovery.Device) string {
	if d.Instance == ManualInstance {
		return d.BaseURL()
	}
	return d.String()
}
