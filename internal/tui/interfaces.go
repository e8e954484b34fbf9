package tui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cognipilot/dendrite/internal/tuiclient"
)

// InterfacesModel renders the host's network interfaces.
type InterfacesModel struct {
	interfaces []tuiclient.Interface
	table      table.Model
}

func newInterfacesModel() InterfacesModel {
	columns := []table.Column{
		{Title: "Name", Width: 12},
		{Title: "IPv4", Width: 16},
		{Title: "Prefix", Width: 8},
		{Title: "Up", Width: 6},
		{Title: "Link", Width: 6},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorBark).BorderBottom(true).Bold(false)
	s.Selected = s.Selected.Foreground(colorBark).Background(colorLeaf).Bold(false)
	t.SetStyles(s)

	return InterfacesModel{table: t}
}

// SetInterfaces replaces the table's backing data.
func (m *InterfacesModel) SetInterfaces(ifaces []tuiclient.Interface) {
	m.interfaces = ifaces
	rows := make([]table.Row, 0, len(ifaces))
	for _, i := range ifaces {
		up := "down"
		if i.Up {
			up = "up"
		}
		link := "down"
		if i.LinkUp {
			link = "up"
		}
		rows = append(rows, table.Row{i.Name, i.IPv4, strconv.Itoa(i.PrefixLen), up, link})
	}
	m.table.SetRows(rows)
}

// Selected returns the interface under the cursor, if any.
func (m InterfacesModel) Selected() (tuiclient.Interface, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.interfaces) {
		return tuiclient.Interface{}, false
	}
	return m.interfaces[idx], true
}

func (m InterfacesModel) Init() tea.Cmd { return nil }

func (m InterfacesModel) Update(msg tea.Msg) (InterfacesModel, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m InterfacesModel) View() string {
	return styleCard.Render(lipgloss.JoinVertical(lipgloss.Left,
		styleTitle.Render(fmt.Sprintf("Interfaces (%d)", len(m.interfaces))),
		m.table.View(),
	))
}
