package hdd

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const rootElement = "hdd"

// Parse reads a hardware-descriptive document from r and produces a
// typed tree. It never performs I/O beyond reading r. Unknown elements
// are tolerated and reported as warnings; unknown attributes are ignored
// without a warning. The root element name, pose arity, and numeric
// parsing are strict and produce a *ParseError on violation.
func Parse(r io.Reader) (*HDD, []Warning, error) {
	p := &parser{dec: xml.NewDecoder(r)}

	tok, err := p.next()
	if err != nil {
		return nil, nil, parseErrorf(rootElement, "reading root element: %v", err)
	}
	root, ok := tok.(xml.StartElement)
	if !ok {
		return nil, nil, parseErrorf(rootElement, "expected root element <%s>, got %T", rootElement, tok)
	}
	if root.Name.Local != rootElement {
		return nil, nil, parseErrorf(rootElement, "unexpected root element <%s>, want <%s>", root.Name.Local, rootElement)
	}

	doc := &HDD{}
	for {
		tok, err := p.next()
		if err != nil {
			return nil, nil, parseErrorf(rootElement, "reading document body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "comp" {
				comp, err := p.parseComp(t, rootElement)
				if err != nil {
					return nil, nil, err
				}
				doc.Comps = append(doc.Comps, comp)
			} else {
				p.warnf(rootElement, "ignoring unknown element <%s>", t.Name.Local)
				if err := p.dec.Skip(); err != nil {
					return nil, nil, parseErrorf(rootElement, "skipping unknown element <%s>: %v", t.Name.Local, err)
				}
			}
		case xml.EndElement:
			return doc, p.warnings, nil
		}
	}
}

type parser struct {
	dec      *xml.Decoder
	warnings []Warning
}

func (p *parser) next() (xml.Token, error) {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, err
		}
		switch tok.(type) {
		case xml.CharData, xml.Comment, xml.ProcInst, xml.Directive:
			continue
		}
		return xml.CopyToken(tok), nil
	}
}

func (p *parser) warnf(path, format string, args ...any) {
	p.warnings = append(p.warnings, Warning{Path: path, Message: fmt.Sprintf(format, args...)})
}

func attrValue(se xml.StartElement, name string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func parsePose(path string, s string) (Pose, error) {
	fields := strings.Fields(s)
	if len(fields) != 6 {
		return Pose{}, parseErrorf(path+"/pose", "pose must have exactly six numbers, got %d", len(fields))
	}
	nums := make([]float64, 6)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Pose{}, parseErrorf(path+"/pose", "invalid number %q: %v", f, err)
		}
		nums[i] = v
	}
	return Pose{X: nums[0], Y: nums[1], Z: nums[2], Roll: nums[3], Pitch: nums[4], Yaw: nums[5]}, nil
}

func (p *parser) parseComp(se xml.StartElement, parentPath string) (Comp, error) {
	name, _ := attrValue(se, "name")
	path := parentPath + "/comp[" + name + "]"

	comp := Comp{
		Name: name,
	}
	comp.Role, _ = attrValue(se, "role")
	comp.Description, _ = attrValue(se, "description")

	for {
		tok, err := p.next()
		if err != nil {
			return Comp{}, parseErrorf(path, "reading comp body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "comp":
				child, err := p.parseComp(t, path)
				if err != nil {
					return Comp{}, err
				}
				comp.Children = append(comp.Children, child)
			case "visual":
				v, err := p.parseVisual(t, path)
				if err != nil {
					return Comp{}, err
				}
				comp.Visuals = append(comp.Visuals, v)
			case "port":
				port, err := p.parsePort(t, path)
				if err != nil {
					return Comp{}, err
				}
				comp.Ports = append(comp.Ports, port)
			case "sensor":
				sensor, err := p.parseSensor(t, path)
				if err != nil {
					return Comp{}, err
				}
				comp.Sensors = append(comp.Sensors, sensor)
			case "frame":
				frame, err := p.parseFrame(t, path)
				if err != nil {
					return Comp{}, err
				}
				comp.Frames = append(comp.Frames, frame)
			default:
				p.warnf(path, "ignoring unknown element <%s>", t.Name.Local)
				if err := p.dec.Skip(); err != nil {
					return Comp{}, parseErrorf(path, "skipping unknown element <%s>: %v", t.Name.Local, err)
				}
			}
		case xml.EndElement:
			return comp, nil
		}
	}
}

func (p *parser) parseVisual(se xml.StartElement, parentPath string) (Visual, error) {
	name, _ := attrValue(se, "name")
	path := parentPath + "/visual[" + name + "]"

	v := Visual{Name: name}
	v.Toggle, _ = attrValue(se, "toggle")
	if poseAttr, ok := attrValue(se, "pose"); ok {
		pose, err := parsePose(path, poseAttr)
		if err != nil {
			return Visual{}, err
		}
		v.Pose = pose
	}

	for {
		tok, err := p.next()
		if err != nil {
			return Visual{}, parseErrorf(path, "reading visual body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "model" {
				href, _ := attrValue(t, "href")
				sha, _ := attrValue(t, "sha")
				v.Model = Model{Href: href, Sha: sha}
				if err := p.dec.Skip(); err != nil {
					return Visual{}, parseErrorf(path+"/model", "skipping model body: %v", err)
				}
			} else {
				p.warnf(path, "ignoring unknown element <%s>", t.Name.Local)
				if err := p.dec.Skip(); err != nil {
					return Visual{}, parseErrorf(path, "skipping unknown element <%s>: %v", t.Name.Local, err)
				}
			}
		case xml.EndElement:
			return v, nil
		}
	}
}

func (p *parser) parsePort(se xml.StartElement, parentPath string) (Port, error) {
	name, _ := attrValue(se, "name")
	path := parentPath + "/port[" + name + "]"

	port := Port{Name: name}
	port.Type, _ = attrValue(se, "type")
	port.LinkedMesh, _ = attrValue(se, "linked_mesh")
	port.Geometry, _ = attrValue(se, "geometry")
	if poseAttr, ok := attrValue(se, "pose"); ok {
		pose, err := parsePose(path, poseAttr)
		if err != nil {
			return Port{}, err
		}
		port.Pose = pose
	}

	if err := p.skipKnownLeaf(se, path); err != nil {
		return Port{}, err
	}
	return port, nil
}

func (p *parser) parseSensor(se xml.StartElement, parentPath string) (Sensor, error) {
	name, _ := attrValue(se, "name")
	path := parentPath + "/sensor[" + name + "]"

	sensor := Sensor{Name: name}
	sensor.Kind, _ = attrValue(se, "kind")
	sensor.Driver, _ = attrValue(se, "driver")
	if poseAttr, ok := attrValue(se, "pose"); ok {
		pose, err := parsePose(path, poseAttr)
		if err != nil {
			return Sensor{}, err
		}
		sensor.Pose = pose
	}

	for {
		tok, err := p.next()
		if err != nil {
			return Sensor{}, parseErrorf(path, "reading sensor body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "axis":
				axisName, _ := attrValue(t, "name")
				mapsTo, _ := attrValue(t, "maps_to")
				if sensor.AxisAlign == nil {
					sensor.AxisAlign = make(map[string]string)
				}
				sensor.AxisAlign[axisName] = mapsTo
				if err := p.dec.Skip(); err != nil {
					return Sensor{}, parseErrorf(path+"/axis", "skipping axis body: %v", err)
				}
			case "fov":
				fov, err := parseFOV(path, t)
				if err != nil {
					return Sensor{}, err
				}
				sensor.FOV = fov
				if err := p.dec.Skip(); err != nil {
					return Sensor{}, parseErrorf(path+"/fov", "skipping fov body: %v", err)
				}
			default:
				p.warnf(path, "ignoring unknown element <%s>", t.Name.Local)
				if err := p.dec.Skip(); err != nil {
					return Sensor{}, parseErrorf(path, "skipping unknown element <%s>: %v", t.Name.Local, err)
				}
			}
		case xml.EndElement:
			return sensor, nil
		}
	}
}

func parseFOV(path string, se xml.StartElement) (*FOV, error) {
	fov := &FOV{}
	if h, ok := attrValue(se, "horizontal"); ok {
		v, err := strconv.ParseFloat(h, 64)
		if err != nil {
			return nil, parseErrorf(path+"/fov", "invalid horizontal %q: %v", h, err)
		}
		fov.Horizontal = v
	}
	if v, ok := attrValue(se, "vertical"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, parseErrorf(path+"/fov", "invalid vertical %q: %v", v, err)
		}
		fov.Vertical = f
	}
	return fov, nil
}

func (p *parser) parseFrame(se xml.StartElement, parentPath string) (Frame, error) {
	name, _ := attrValue(se, "name")
	path := parentPath + "/frame[" + name + "]"

	frame := Frame{Name: name}
	frame.Description, _ = attrValue(se, "description")
	if poseAttr, ok := attrValue(se, "pose"); ok {
		pose, err := parsePose(path, poseAttr)
		if err != nil {
			return Frame{}, err
		}
		frame.Pose = pose
	}

	if err := p.skipKnownLeaf(se, path); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// skipKnownLeaf consumes the remainder of a leaf element's body, warning
// on any unexpected child element rather than assuming the element is
// empty.
func (p *parser) skipKnownLeaf(_ xml.StartElement, path string) error {
	for {
		tok, err := p.next()
		if err != nil {
			return parseErrorf(path, "reading element body: %v", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			p.warnf(path, "ignoring unknown element <%s>", t.Name.Local)
			if err := p.dec.Skip(); err != nil {
				return parseErrorf(path, "skipping unknown element <%s>: %v", t.Name.Local, err)
			}
		case xml.EndElement:
			return nil
		}
	}
}
