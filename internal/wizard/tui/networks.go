package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifimgr/internal/portalclient"
	"github.com/muurk/wifimgr/internal/ui"
	"github.com/muurk/wifimgr/internal/wifi"
)

// requestTimeout bounds each portal call made from the wizard.
const requestTimeout = 30 * time.Second

type networksLoadedMsg struct {
	state    *portalclient.State
	networks []portalclient.Network
	err      error
}

type provisionDoneMsg struct {
	ssid string
	err  error
}

// NetworkStage is where the user is on the networks screen.
type NetworkStage int

const (
	StageLoading NetworkStage = iota
	StageChoosing
	StageHiddenSSID
	StagePassword
	StageSubmitting
	StageDone
)

type networksKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Enter   key.Binding
	Refresh key.Binding
	Hidden  key.Binding
	Back    key.Binding
}

func (k networksKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Refresh, k.Hidden, k.Back}
}

func (k networksKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter},
		{k.Refresh, k.Hidden, k.Back},
	}
}

type networkItem struct {
	network portalclient.Network
}

func (n networkItem) FilterValue() string { return n.network.SSID }
func (n networkItem) Title() string       { return n.network.SSID }

func (n networkItem) Description() string {
	return fmt.Sprintf("%s • %s", signalBars(n.network.QualityPercent()), wifi.Encryption(n.network.Encryption))
}

func signalBars(quality int) string {
	bars := (quality + 24) / 25
	bars = max(0, min(bars, 4))
	return strings.Repeat("▮", bars) + strings.Repeat("▯", 4-bars) + fmt.Sprintf(" %d%%", quality)
}

// NetworksModel lists the networks a device can see and submits the
// user's choice to its portal.
type NetworksModel struct {
	Portal Portal
	Target string

	Stage    NetworkStage
	State    *portalclient.State
	List     list.Model
	Chosen   *portalclient.Network
	Err      error
	InputErr string
	Result   error

	SSIDInput     textinput.Model
	PasswordInput textinput.Model

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    networksKeyMap
	Form    manualModeKeyMap

	back bool
}

// NewNetworksModel creates the screen for one device; target is shown
// in headings.
func NewNetworksModel(portal Portal, target string) NetworksModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ssid := textinput.New()
	ssid.Placeholder = "Network name"
	ssid.CharLimit = 32
	ssid.Width = 32

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 64
	password.Width = 40
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	networks := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	networks.Title = "Available Networks"
	networks.SetShowStatusBar(false)
	networks.SetFilteringEnabled(true)
	networks.Styles.Title = TitleStyle

	return NetworksModel{
		Portal:        portal,
		Target:        target,
		Stage:         StageLoading,
		List:          networks,
		SSIDInput:     ssid,
		PasswordInput: password,
		Spinner:       s,
		Help:          help.New(),
		Keys: networksKeyMap{
			Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "move up")),
			Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "move down")),
			Enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "connect")),
			Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
			Hidden:  key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "hidden network")),
			Back:    key.NewBinding(key.WithKeys("esc", "b"), key.WithHelp("esc", "back")),
		},
		Form: manualModeKeyMap{
			Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
			Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		},
	}
}

func (m NetworksModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.Spinner.Tick)
}

// load fetches the device state and its scan list.
func (m NetworksModel) load() tea.Cmd {
	portal := m.Portal
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		state, err := portal.GetState(ctx)
		if err != nil {
			return networksLoadedMsg{err: err}
		}
		networks, err := portal.Scan(ctx)
		return networksLoadedMsg{state: state, networks: networks, err: err}
	}
}

func (m NetworksModel) submit(ssid, password string) tea.Cmd {
	portal := m.Portal
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return provisionDoneMsg{ssid: ssid, err: portal.SaveWiFi(ctx, &portalclient.Provision{SSID: ssid, Password: password})}
	}
}

func (m NetworksModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.List.SetSize(msg.Width-4, max(msg.Height-12, 10))
		return m, nil

	case networksLoadedMsg:
		m.Stage = StageChoosing
		m.Err = msg.err
		if msg.state != nil {
			m.State = msg.state
		}
		items := make([]list.Item, 0, len(msg.networks))
		for _, n := range msg.networks {
			if n.SSID != "" {
				items = append(items, networkItem{network: n})
			}
		}
		cmd := m.List.SetItems(items)
		return m, cmd

	case provisionDoneMsg:
		m.Stage = StageDone
		m.Result = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.Stage != StageLoading && m.Stage != StageSubmitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.Stage {
		case StageLoading:
			if msg.String() == "esc" {
				m.back = true
			}
		case StageChoosing:
			return m.updateChoosing(msg)
		case StageHiddenSSID:
			return m.updateHiddenSSID(msg)
		case StagePassword:
			return m.updatePassword(msg)
		}
	}
	return m, nil
}

func (m NetworksModel) updateChoosing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.List.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.List, cmd = m.List.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "esc", "b":
		if m.List.FilterState() == list.FilterApplied {
			m.List.ResetFilter()
			return m, nil
		}
		m.back = true
		return m, nil

	case "r":
		m.Stage = StageLoading
		m.Err = nil
		return m, tea.Batch(m.load(), m.Spinner.Tick)

	case "h":
		m.Stage = StageHiddenSSID
		m.InputErr = ""
		m.Chosen = nil
		m.SSIDInput.SetValue("")
		cmd := m.SSIDInput.Focus()
		return m, cmd

	case "enter":
		item, ok := m.List.SelectedItem().(networkItem)
		if !ok {
			return m, nil
		}
		n := item.network
		m.Chosen = &n
		if !n.Secured() {
			m.Stage = StageSubmitting
			return m, tea.Batch(m.submit(n.SSID, ""), m.Spinner.Tick)
		}
		return m.askPassword()
	}

	var cmd tea.Cmd
	m.List, cmd = m.List.Update(msg)
	return m, cmd
}

func (m NetworksModel) askPassword() (tea.Model, tea.Cmd) {
	m.Stage = StagePassword
	m.InputErr = ""
	m.PasswordInput.SetValue("")
	cmd := m.PasswordInput.Focus()
	return m, cmd
}

func (m NetworksModel) updateHiddenSSID(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.SSIDInput.Blur()
		m.Stage = StageChoosing
		return m, nil
	case "enter":
		ssid := strings.TrimSpace(m.SSIDInput.Value())
		if ssid == "" {
			m.InputErr = "Please enter a network name."
			return m, nil
		}
		m.SSIDInput.Blur()
		// Security is unknown; an empty password is allowed.
		m.Chosen = &portalclient.Network{SSID: ssid, Encryption: int(wifi.EncryptionOpen)}
		return m.askPassword()
	}

	var cmd tea.Cmd
	m.SSIDInput, cmd = m.SSIDInput.Update(msg)
	return m, cmd
}

func (m NetworksModel) updatePassword(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.PasswordInput.Blur()
		m.PasswordInput.SetValue("")
		m.Stage = StageChoosing
		return m, nil
	case "enter":
		password := m.PasswordInput.Value()
		if problem := checkPassword(*m.Chosen, password); problem != "" {
			m.InputErr = problem
			return m, nil
		}
		m.PasswordInput.Blur()
		m.Stage = StageSubmitting
		return m, tea.Batch(m.submit(m.Chosen.SSID, password), m.Spinner.Tick)
	}

	var cmd tea.Cmd
	m.PasswordInput, cmd = m.PasswordInput.Update(msg)
	return m, cmd
}

// minWPAPassword is the shortest WPA passphrase.
const minWPAPassword = 8

func checkPassword(n portalclient.Network, password string) string {
	switch {
	case password == "" && n.Secured():
		return "This network needs a password."
	case password != "" && len(password) < minWPAPassword:
		return fmt.Sprintf("WiFi passwords are at least %d characters.", minWPAPassword)
	}
	p := &portalclient.Provision{SSID: n.SSID, Password: password}
	if err := p.Validate(); err != nil {
		return err.Error()
	}
	return ""
}

// IsBackRequested reports whether the user left the screen.
func (m NetworksModel) IsBackRequested() bool {
	return m.back
}

// Done reports whether a submission has completed, and its outcome.
func (m NetworksModel) Done() (bool, error) {
	return m.Stage == StageDone, m.Result
}

func (m NetworksModel) View() string {
	var content, helpText string
	switch m.Stage {
	case StageLoading:
		content = "\n  " + m.Spinner.View() + " Asking " + m.Target + " for nearby networks..."
		helpText = m.Help.View(m.Form)
	case StageSubmitting:
		content = "\n  " + m.Spinner.View() + " Sending settings for " + FocusedInputStyle.Render(m.Chosen.SSID) + "..."
		helpText = ""
	case StageHiddenSSID:
		content = m.renderInput("Hidden network name", m.SSIDInput)
		helpText = m.Help.View(m.Form)
	case StagePassword:
		content = m.renderInput("Password for "+m.Chosen.SSID, m.PasswordInput)
		helpText = m.Help.View(m.Form)
	default:
		content = m.renderChoosing()
		helpText = m.Help.View(m.Keys)
	}
	return RenderApplicationContainer(content, helpText, m.Width, m.Height)
}

func (m NetworksModel) renderChoosing() string {
	var b strings.Builder
	b.WriteString("\n")
	if m.State != nil {
		b.WriteString(RenderInfo(m.Target + "\n" + m.State.Summary()))
		b.WriteString("\n")
	}

	switch {
	case m.Err != nil:
		b.WriteString(RenderError(m.Err.Error()))
		b.WriteString("\n\n")
		b.WriteString(RenderTroubleshooting(ui.TroubleshootingLines(portalclient.GetTroubleshootingHint(m.Err))...))
	case len(m.List.Items()) == 0:
		b.WriteString("  " + WarningTextStyle.Render("⚠ The device cannot see any networks"))
		b.WriteString("\n\n  Press r to scan again or h to enter a hidden network.\n")
	default:
		b.WriteString(m.List.View())
	}
	return b.String()
}

func (m NetworksModel) renderInput(label string, input textinput.Model) string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(RenderSubtitle(label))
	b.WriteString("\n\n  ")
	b.WriteString(input.View())
	b.WriteString("\n")
	if m.InputErr != "" {
		b.WriteString("\n  " + WarningTextStyle.Render(m.InputErr) + "\n")
	}
	return b.String()
}
