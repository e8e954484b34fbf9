package tui

import (
	"fmt"
	"net"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// SubnetFormModel is a small huh.Form prompting for a new discovery
// target: interface name, network address, and prefix length.
type SubnetFormModel struct {
	form      *huh.Form
	iface     string
	subnet    string
	prefixStr string
	done      bool
}

func newSubnetFormModel(defaultIface string) SubnetFormModel {
	m := SubnetFormModel{iface: defaultIface, subnet: "192.168.1.0", prefixStr: "24"}

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Interface").
				Value(&m.iface).
				Validate(requiredValidator),
			huh.NewInput().
				Title("Network address").
				Description("e.g. 192.168.1.0").
				Value(&m.subnet).
				Validate(ipValidator),
			huh.NewInput().
				Title("Prefix length").
				Description("e.g. 24").
				Value(&m.prefixStr).
				Validate(prefixValidator),
		),
	).WithTheme(huh.ThemeBase16())

	return m
}

func requiredValidator(s string) error {
	if s == "" {
		return fmt.Errorf("required")
	}
	return nil
}

func ipValidator(s string) error {
	if net.ParseIP(s) == nil {
		return fmt.Errorf("not a valid IP address")
	}
	return nil
}

func prefixValidator(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 32 {
		return fmt.Errorf("must be between 1 and 32")
	}
	return nil
}

// Result returns the submitted fields once the form is complete.
func (m SubnetFormModel) Result() (iface, subnet string, prefixLen int) {
	prefixLen, _ = strconv.Atoi(m.prefixStr)
	return m.iface, m.subnet, prefixLen
}

// Done reports whether the form has been submitted.
func (m SubnetFormModel) Done() bool {
	return m.form.State == huh.StateCompleted
}

func (m SubnetFormModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m SubnetFormModel) Update(msg tea.Msg) (SubnetFormModel, tea.Cmd) {
	newForm, cmd := m.form.Update(msg)
	if f, ok := newForm.(*huh.Form); ok {
		m.form = f
	}
	return m, cmd
}

func (m SubnetFormModel) View() string {
	return styleCard.Render(m.form.View())
}
