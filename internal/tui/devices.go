package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cognipilot/dendrite/internal/tuiclient"
)

// DevicesModel renders the current device snapshot as a table.
type DevicesModel struct {
	devices []tuiclient.Device
	table   table.Model
}

func newDevicesModel() DevicesModel {
	columns := []table.Column{
		{Title: "Board", Width: 12},
		{Title: "Vendor", Width: 14},
		{Title: "IP", Width: 16},
		{Title: "MAC", Width: 18},
		{Title: "Status", Width: 10},
		{Title: "Lifecycle", Width: 14},
		{Title: "HDD", Width: 10},
		{Title: "Last Seen", Width: 20},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(14),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorBark).BorderBottom(true).Bold(false)
	s.Selected = s.Selected.Foreground(colorBark).Background(colorLeaf).Bold(false)
	t.SetStyles(s)

	return DevicesModel{table: t}
}

// SetDevices replaces the table's backing data.
func (m *DevicesModel) SetDevices(devices []tuiclient.Device) {
	m.devices = devices
	rows := make([]table.Row, 0, len(devices))
	for _, d := range devices {
		hdd := "-"
		if d.HDD != nil {
			hdd = d.HDD.Sha
			if len(hdd) > 8 {
				hdd = hdd[:8]
			}
			if d.HDD.Stale {
				hdd += "*"
			}
		}
		vendor := d.Vendor
		if vendor == "" {
			vendor = "-"
		}
		rows = append(rows, table.Row{
			d.Board, vendor, d.IP, d.MAC, d.Status, d.Lifecycle, hdd, d.LastSeen,
		})
	}
	m.table.SetRows(rows)
}

// Selected returns the device under the cursor, if any.
func (m DevicesModel) Selected() (tuiclient.Device, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.devices) {
		return tuiclient.Device{}, false
	}
	return m.devices[idx], true
}

func (m DevicesModel) Init() tea.Cmd { return nil }

func (m DevicesModel) Update(msg tea.Msg) (DevicesModel, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m DevicesModel) View() string {
	body := m.table.View()
	if len(m.devices) == 0 {
		body += "\n" + styleSubtitle.Render("no devices discovered yet — press 's' to scan")
	}
	return styleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		styleTitle.Render(fmt.Sprintf("Devices (%d)", len(m.devices))),
		body,
	))
}
