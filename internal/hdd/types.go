// Package hdd parses the hardware-descriptive document: an XML tree of
// comps describing a device's 3D geometry, visuals, ports, sensors, and
// reference frames.
package hdd

// Pose is a six-real pose: translation in metres, rotation in radians.
type Pose struct {
	X, Y, Z          float64
	Roll, Pitch, Yaw float64
}

// Model is a reference to a 3D model asset. Sha may be empty — the spec
// allows a model without a pre-declared hash; the resolver fetches it and
// records the computed hash instead.
type Model struct {
	Href string
	Sha  string
}

// Visual attaches one renderable model to a comp, with its own pose
// relative to the comp's origin and an optional toggle group name used to
// show/hide alternates (e.g. LED states).
type Visual struct {
	Name   string
	Pose   Pose
	Toggle string
	Model  Model
}

// Port describes a physical connector: a name, a type tag, a pose, and
// optionally the name of a mesh it's visually anchored to plus a
// free-form geometry descriptor (e.g. "circle:2mm").
type Port struct {
	Name       string
	Type       string
	Pose       Pose
	LinkedMesh string
	Geometry   string
}

// FOV describes a sensor's field of view in degrees.
type FOV struct {
	Horizontal float64
	Vertical   float64
}

// Sensor describes one onboard sensor: a kind tag, pose, driver name, an
// optional axis-remap table (sensor axis name -> device axis name), and
// an optional field of view.
type Sensor struct {
	Name      string
	Kind      string
	Pose      Pose
	Driver    string
	AxisAlign map[string]string
	FOV       *FOV
}

// Frame is a named coordinate system attached to a comp, used purely for
// visualization.
type Frame struct {
	Name        string
	Description string
	Pose        Pose
}

// Comp is one node of the hardware-descriptive tree.
type Comp struct {
	Name        string
	Role        string
	Description string
	Visuals     []Visual
	Ports       []Port
	Sensors     []Sensor
	Frames      []Frame
	Children    []Comp
}

// HDD is the parsed hardware-descriptive document: a forest of top-level
// comps.
type HDD struct {
	Comps []Comp
}

// Warning is a non-fatal diagnostic for an unrecognized element
// encountered while parsing (unrecognized attributes produce no
// warning). The document still parses to completion.
type Warning struct {
	Path    string
	Message string
}
