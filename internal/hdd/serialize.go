package hdd

import (
	"fmt"
	"strings"
)

// Serialize renders doc back to the XML subset Parse understands. It
// exists primarily to support round-trip testing of the parser; it is
// not used by the daemon, which only ever reads documents fetched from
// devices or the cache.
func Serialize(doc *HDD) string {
	var b strings.Builder
	b.WriteString("<hdd>")
	for _, c := range doc.Comps {
		writeComp(&b, c)
	}
	b.WriteString("</hdd>")
	return b.String()
}

func writePose(b *strings.Builder, p Pose) {
	fmt.Fprintf(b, "%g %g %g %g %g %g", p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw)
}

func writeComp(b *strings.Builder, c Comp) {
	fmt.Fprintf(b, `<comp name=%q role=%q description=%q>`, c.Name, c.Role, c.Description)
	for _, v := range c.Visuals {
		b.WriteString(`<visual name="`)
		b.WriteString(v.Name)
		b.WriteString(`" pose="`)
		writePose(b, v.Pose)
		b.WriteString(`" toggle="`)
		b.WriteString(v.Toggle)
		b.WriteString(`">`)
		fmt.Fprintf(b, `<model href=%q sha=%q/>`, v.Model.Href, v.Model.Sha)
		b.WriteString(`</visual>`)
	}
	for _, p := range c.Ports {
		b.WriteString(`<port name="`)
		b.WriteString(p.Name)
		fmt.Fprintf(b, `" type=%q linked_mesh=%q geometry=%q pose="`, p.Type, p.LinkedMesh, p.Geometry)
		writePose(b, p.Pose)
		b.WriteString(`"/>`)
	}
	for _, s := range c.Sensors {
		b.WriteString(`<sensor name="`)
		b.WriteString(s.Name)
		fmt.Fprintf(b, `" kind=%q driver=%q pose="`, s.Kind, s.Driver)
		writePose(b, s.Pose)
		b.WriteString(`">`)
		for axis, mapsTo := range s.AxisAlign {
			fmt.Fprintf(b, `<axis name=%q maps_to=%q/>`, axis, mapsTo)
		}
		if s.FOV != nil {
			fmt.Fprintf(b, `<fov horizontal="%g" vertical="%g"/>`, s.FOV.Horizontal, s.FOV.Vertical)
		}
		b.WriteString(`</sensor>`)
	}
	for _, f := range c.Frames {
		b.WriteString(`<frame name="`)
		b.WriteString(f.Name)
		fmt.Fprintf(b, `" description=%q pose="`, f.Description)
		writePose(b, f.Pose)
		b.WriteString(`"/>`)
	}
	for _, child := range c.Children {
		writeComp(b, child)
	}
	b.WriteString(`</comp>`)
}
