// Package registry implements the authoritative device map: the
// lifecycle state machine, liveness loop, and non-blocking event
// fan-out that the HTTP/WebSocket surface and operator TUI read from.
package registry

import (
	"time"

	"github.com/cognipilot/dendrite/internal/hdd"
)

// Connectivity is a device's coarse online/offline/unknown status.
type Connectivity string

const (
	Unknown Connectivity = "unknown"
	Online  Connectivity = "online"
	Offline Connectivity = "offline"
)

// LifecycleKind is the device's position in the resolve pipeline.
type LifecycleKind string

const (
	Discovering LifecycleKind = "discovering"
	Resolving   LifecycleKind = "resolving"
	Bound       LifecycleKind = "bound"
)

// Lifecycle carries the resolving SHA when Kind is Resolving.
type Lifecycle struct {
	Kind LifecycleKind
	Sha  string
}

// Pose is the user-editable placement of a device in the visualization
// scene; it is never populated from the wire protocol and never
// persisted across restarts.
type Pose struct {
	X, Y, Z          float64
	Roll, Pitch, Yaw float64
}

// HDDBinding is the resolved asset state for a Bound device.
type HDDBinding struct {
	Sha        string
	Stale      bool
	Reachable  bool
	Doc        *hdd.HDD
	ModelPaths map[string]string
}

// Device is one row of the registry's authoritative map.
type Device struct {
	ID   string // normalized MAC address; authoritative identity once probed.
	IP   string
	MAC  string

	FirstSeen time.Time
	LastSeen  time.Time

	Board   string
	App     string
	Version string

	Connectivity Connectivity
	Lifecycle    Lifecycle
	OfflineSince time.Time

	HDD  *HDDBinding
	Pose Pose

	Hostname string
	Vendor   string
}

func (d Device) clone() Device {
	cp := d
	if d.HDD != nil {
		hddCopy := *d.HDD
		if d.HDD.ModelPaths != nil {
			hddCopy.ModelPaths = make(map[string]string, len(d.HDD.ModelPaths))
			for k, v := range d.HDD.ModelPaths {
				hddCopy.ModelPaths[k] = v
			}
		}
		cp.HDD = &hddCopy
	}
	return cp
}

// EventType identifies the kind of DeviceEvent.
type EventType string

const (
	EventDiscovered EventType = "discovered"
	EventUpdated    EventType = "updated"
	EventRebinding  EventType = "rebinding"
	EventStatus     EventType = "status"
	EventRemoved    EventType = "removed"
	// EventLagged is a best-effort marker delivered to a subscriber
	// whose channel was found full, in place of the event(s) that were
	// dropped.
	EventLagged EventType = "lagged"
)

// DeviceEvent is what subscribers receive. Device is a snapshot, never a
// handle into the registry's live state.
type DeviceEvent struct {
	Type      EventType
	Device    Device
	Lagged    int
	Timestamp time.Time
}

// FetchOutcome is what the daemon orchestrator reports back to
// OnFetchResult after driving the resolver for a device.
type FetchOutcome struct {
	Sha        string
	Stale      bool
	Reachable  bool
	Doc        *hdd.HDD
	ModelPaths map[string]string
	Err        error
}
