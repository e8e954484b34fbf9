// Command dendrite-status is a terminal dashboard for a running
// dendrited instance. It speaks only the daemon's public HTTP API.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/cognipilot/dendrite/internal/tui"
	"github.com/cognipilot/dendrite/internal/tuiclient"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8420", "dendrited API base URL")
	iface := flag.String("iface", "eth0", "default interface offered in the subnet form")
	flag.Parse()

	client := tuiclient.New(*addr)
	model := tui.NewModel(client, *iface)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dendrite-status: %v\n", err)
		os.Exit(1)
	}
}
