package tui

import "github.com/cognipilot/dendrite/internal/tuiclient"

// Backend is the data source a Model renders against. It is satisfied
// by *tuiclient.Client against a live daemon, and by fakes in tests.
type Backend interface {
	Devices() ([]tuiclient.Device, error)
	Interfaces() ([]tuiclient.Interface, error)
	HeartbeatStatus() (tuiclient.Heartbeat, error)
	TriggerScan() error
	SetSubnet(iface, subnet string, prefixLen int) error
	SetHeartbeat(enabled bool) error
	DeleteDevice(id string) error
}
