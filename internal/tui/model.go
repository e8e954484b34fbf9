package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cognipilot/dendrite/internal/tuiclient"
)

const pollInterval = 3 * time.Second

// View is the currently active screen.
type View int

const (
	ViewDevices View = iota
	ViewInterfaces
	ViewSubnetForm
)

// Model is the dendrite-status application state.
type Model struct {
	backend Backend

	active View
	err    error

	devices    DevicesModel
	interfaces InterfacesModel
	subnetForm SubnetFormModel

	heartbeat tuiclient.Heartbeat
}

// NewModel builds the top-level Model against backend.
func NewModel(backend Backend, defaultIface string) Model {
	return Model{
		backend:    backend,
		active:     ViewDevices,
		devices:    newDevicesModel(),
		interfaces: newInterfacesModel(),
		subnetForm: newSubnetFormModel(defaultIface),
	}
}

type devicesMsg struct {
	devices []tuiclient.Device
	err     error
}

type interfacesMsg struct {
	interfaces []tuiclient.Interface
	err        error
}

type heartbeatMsg struct {
	heartbeat tuiclient.Heartbeat
	err       error
}

type tickMsg time.Time

func (m Model) pollCmd() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			devices, err := m.backend.Devices()
			return devicesMsg{devices, err}
		},
		func() tea.Msg {
			ifaces, err := m.backend.Interfaces()
			return interfacesMsg{ifaces, err}
		},
		func() tea.Msg {
			hb, err := m.backend.HeartbeatStatus()
			return heartbeatMsg{hb, err}
		},
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.pollCmd(), tickCmd(), m.subnetForm.Init())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case devicesMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.devices.SetDevices(msg.devices)
		}
		return m, nil

	case interfacesMsg:
		if msg.err == nil {
			m.interfaces.SetInterfaces(msg.interfaces)
		}
		return m, nil

	case heartbeatMsg:
		if msg.err == nil {
			m.heartbeat = msg.heartbeat
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.pollCmd(), tickCmd())

	case tea.KeyMsg:
		if m.active == ViewSubnetForm && !m.subnetForm.Done() {
			var cmd tea.Cmd
			m.subnetForm, cmd = m.subnetForm.Update(msg)
			if m.subnetForm.Done() {
				iface, subnet, prefix := m.subnetForm.Result()
				return m, func() tea.Msg {
					err := m.backend.SetSubnet(iface, subnet, prefix)
					return subnetAppliedMsg{err}
				}
			}
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.active = (m.active + 1) % 3
			return m, nil
		case "1":
			m.active = ViewDevices
			return m, nil
		case "2":
			m.active = ViewInterfaces
			return m, nil
		case "3":
			m.active = ViewSubnetForm
			m.subnetForm = newSubnetFormModel("")
			return m, m.subnetForm.Init()
		case "s":
			return m, func() tea.Msg {
				return scanTriggeredMsg{m.backend.TriggerScan()}
			}
		case "h":
			enable := !m.heartbeat.Enabled
			return m, func() tea.Msg {
				return heartbeatToggledMsg{enable, m.backend.SetHeartbeat(enable)}
			}
		case "d":
			if m.active == ViewDevices {
				if dev, ok := m.devices.Selected(); ok {
					return m, func() tea.Msg {
						return deviceDeletedMsg{dev.ID, m.backend.DeleteDevice(dev.ID)}
					}
				}
			}
			return m, nil
		}

	case subnetAppliedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.active = ViewDevices
		}
		return m, m.pollCmd()

	case scanTriggeredMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case heartbeatToggledMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, m.pollCmd()

	case deviceDeletedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, m.pollCmd()
	}

	var cmd tea.Cmd
	switch m.active {
	case ViewDevices:
		m.devices, cmd = m.devices.Update(msg)
	case ViewInterfaces:
		m.interfaces, cmd = m.interfaces.Update(msg)
	case ViewSubnetForm:
		m.subnetForm, cmd = m.subnetForm.Update(msg)
	}
	return m, cmd
}

type subnetAppliedMsg struct{ err error }
type scanTriggeredMsg struct{ err error }
type heartbeatToggledMsg struct {
	enabled bool
	err     error
}
type deviceDeletedMsg struct {
	id  string
	err error
}

func (m Model) View() string {
	doc := m.viewTopBar() + "\n"

	switch m.active {
	case ViewDevices:
		doc += m.devices.View()
	case ViewInterfaces:
		doc += m.interfaces.View()
	case ViewSubnetForm:
		doc += m.subnetForm.View()
	}

	hbState := "disabled"
	if m.heartbeat.Enabled {
		hbState = fmt.Sprintf("every %ds", m.heartbeat.IntervalSecs)
	}
	doc += "\n" + styleSubtitle.Render(fmt.Sprintf("heartbeat: %s   [s] scan  [h] toggle heartbeat  [d] delete selected  [tab] next view  [q] quit", hbState))

	if m.err != nil {
		doc += "\n" + styleErrBanner.Render(m.err.Error())
	}

	return styleApp.Render(doc)
}

func (m Model) viewTopBar() string {
	menus := []struct {
		view  View
		label string
		key   string
	}{
		{ViewDevices, "Devices", "1"},
		{ViewInterfaces, "Interfaces", "2"},
		{ViewSubnetForm, "Set Subnet", "3"},
	}

	var items []string
	for _, menu := range menus {
		key := styleMenuKey.Render("[" + menu.key + "]")
		if m.active == menu.view {
			items = append(items, styleMenuItemActive.Render(key+" "+menu.label))
		} else {
			items = append(items, styleMenuItem.Render(key+" "+menu.label))
		}
	}

	brand := styleTitle.Render("DENDRITE ")
	bar := lipgloss.JoinHorizontal(lipgloss.Top, append([]string{brand}, items...)...)
	return styleTopBar.Render(bar)
}
