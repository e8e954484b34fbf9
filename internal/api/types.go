// Package api exposes the daemon's REST and WebSocket surface: the
// device list, interface inventory, and scan/heartbeat controls, plus a
// live event stream over /ws.
package api

import (
	"github.com/cognipilot/dendrite/internal/hdd"
	"github.com/cognipilot/dendrite/internal/registry"
)

// DeviceJSON is the wire shape of one device in API responses. The
// visuals/sensors/ports/frames arrays are flattened out of the bound
// HDD's comp tree; they stay empty until the device reaches Bound.
type DeviceJSON struct {
	ID        string       `json:"id"`
	IP        string       `json:"ip"`
	MAC       string       `json:"mac"`
	Board     string       `json:"board,omitempty"`
	App       string       `json:"app,omitempty"`
	Version   string       `json:"version,omitempty"`
	Status    string       `json:"status"`
	Lifecycle string       `json:"lifecycle"`
	Pose      PoseJSON     `json:"pose"`
	Visuals   []VisualJSON `json:"visuals"`
	Sensors   []SensorJSON `json:"sensors"`
	Ports     []PortJSON   `json:"ports"`
	Frames    []FrameJSON  `json:"frames"`
	FirstSeen string       `json:"first_seen"`
	LastSeen  string       `json:"last_seen"`
	HDD       *HDDJSON     `json:"hdd,omitempty"`
	Hostname  string       `json:"hostname,omitempty"`
	Vendor    string       `json:"vendor,omitempty"`
}

// HDDJSON is the wire shape of a device's resolved hardware description.
type HDDJSON struct {
	Sha       string `json:"sha"`
	Stale     bool   `json:"stale"`
	Reachable bool   `json:"reachable"`
}

// PoseJSON is the wire shape of a six-real pose.
type PoseJSON struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// ModelJSON is the wire shape of a 3D model reference.
type ModelJSON struct {
	Href string `json:"href"`
	Sha  string `json:"sha,omitempty"`
}

// VisualJSON is one renderable model attached to a comp.
type VisualJSON struct {
	Comp   string    `json:"comp"`
	Name   string    `json:"name"`
	Pose   PoseJSON  `json:"pose"`
	Toggle string    `json:"toggle,omitempty"`
	Model  ModelJSON `json:"model"`
}

// PortJSON is one physical connector attached to a comp.
type PortJSON struct {
	Comp       string   `json:"comp"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Pose       PoseJSON `json:"pose"`
	LinkedMesh string   `json:"linked_mesh,omitempty"`
	Geometry   string   `json:"geometry,omitempty"`
}

// FOVJSON is a sensor's field of view in degrees.
type FOVJSON struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

// SensorJSON is one onboard sensor attached to a comp.
type SensorJSON struct {
	Comp      string            `json:"comp"`
	Name      string            `json:"name"`
	Kind      string            `json:"kind"`
	Pose      PoseJSON          `json:"pose"`
	Driver    string            `json:"driver,omitempty"`
	AxisAlign map[string]string `json:"axis_align,omitempty"`
	FOV       *FOVJSON          `json:"fov,omitempty"`
}

// FrameJSON is one named reference frame attached to a comp.
type FrameJSON struct {
	Comp        string   `json:"comp"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Pose        PoseJSON `json:"pose"`
}

func poseJSON(p hdd.Pose) PoseJSON {
	return PoseJSON{X: p.X, Y: p.Y, Z: p.Z, Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw}
}

// flattenComps walks a comp forest depth-first and collects every
// visual/port/sensor/frame it finds, tagging each with the name of the
// comp that declared it.
func flattenComps(comps []hdd.Comp) ([]VisualJSON, []PortJSON, []SensorJSON, []FrameJSON) {
	var visuals []VisualJSON
	var ports []PortJSON
	var sensors []SensorJSON
	var frames []FrameJSON

	var walk func(cs []hdd.Comp)
	walk = func(cs []hdd.Comp) {
		for _, c := range cs {
			for _, v := range c.Visuals {
				visuals = append(visuals, VisualJSON{
					Comp:   c.Name,
					Name:   v.Name,
					Pose:   poseJSON(v.Pose),
					Toggle: v.Toggle,
					Model:  ModelJSON{Href: v.Model.Href, Sha: v.Model.Sha},
				})
			}
			for _, p := range c.Ports {
				ports = append(ports, PortJSON{
					Comp:       c.Name,
					Name:       p.Name,
					Type:       p.Type,
					Pose:       poseJSON(p.Pose),
					LinkedMesh: p.LinkedMesh,
					Geometry:   p.Geometry,
				})
			}
			for _, s := range c.Sensors {
				sj := SensorJSON{
					Comp:      c.Name,
					Name:      s.Name,
					Kind:      s.Kind,
					Pose:      poseJSON(s.Pose),
					Driver:    s.Driver,
					AxisAlign: s.AxisAlign,
				}
				if s.FOV != nil {
					sj.FOV = &FOVJSON{Horizontal: s.FOV.Horizontal, Vertical: s.FOV.Vertical}
				}
				sensors = append(sensors, sj)
			}
			for _, f := range c.Frames {
				frames = append(frames, FrameJSON{
					Comp:        c.Name,
					Name:        f.Name,
					Description: f.Description,
					Pose:        poseJSON(f.Pose),
				})
			}
			walk(c.Children)
		}
	}
	walk(comps)
	return visuals, ports, sensors, frames
}

func toDeviceJSON(d registry.Device) DeviceJSON {
	out := DeviceJSON{
		ID:        d.ID,
		IP:        d.IP,
		MAC:       d.MAC,
		Board:     d.Board,
		App:       d.App,
		Version:   d.Version,
		Status:    string(d.Connectivity),
		Lifecycle: string(d.Lifecycle.Kind),
		Pose: PoseJSON{
			X: d.Pose.X, Y: d.Pose.Y, Z: d.Pose.Z,
			Roll: d.Pose.Roll, Pitch: d.Pose.Pitch, Yaw: d.Pose.Yaw,
		},
		Visuals:   []VisualJSON{},
		Sensors:   []SensorJSON{},
		Ports:     []PortJSON{},
		Frames:    []FrameJSON{},
		FirstSeen: d.FirstSeen.Format(timeFormat),
		LastSeen:  d.LastSeen.Format(timeFormat),
		Hostname:  d.Hostname,
		Vendor:    d.Vendor,
	}
	if d.HDD != nil {
		out.HDD = &HDDJSON{Sha: d.HDD.Sha, Stale: d.HDD.Stale, Reachable: d.HDD.Reachable}
		if d.HDD.Doc != nil {
			visuals, ports, sensors, frames := flattenComps(d.HDD.Doc.Comps)
			if visuals != nil {
				out.Visuals = visuals
			}
			if ports != nil {
				out.Ports = ports
			}
			if sensors != nil {
				out.Sensors = sensors
			}
			if frames != nil {
				out.Frames = frames
			}
		}
	}
	return out
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// InterfaceJSON is the wire shape of one local network interface.
type InterfaceJSON struct {
	Name      string `json:"name"`
	IPv4      string `json:"ipv4,omitempty"`
	PrefixLen int    `json:"prefix_len,omitempty"`
	Up        bool   `json:"up"`
	LinkUp    bool   `json:"link_up"`
}

// HeartbeatJSON is the wire shape of the liveness loop's current config.
type HeartbeatJSON struct {
	Enabled          bool `json:"enabled"`
	IntervalSecs     int  `json:"interval_secs"`
	OfflineRetention int  `json:"offline_retention_secs"`
}

// SubnetRequest is the POST /api/subnet body.
type SubnetRequest struct {
	Interface string `json:"interface"`
	Subnet    string `json:"subnet"`
	PrefixLen int    `json:"prefix_len"`
}

// HeartbeatRequest is the POST /api/heartbeat body.
type HeartbeatRequest struct {
	Enabled bool `json:"enabled"`
}
