package hdd

import (
	"strings"
	"testing"
)

const canonicalDoc = `<hdd>
  <comp name="imu" role="sensor-mount" description="imu carrier">
    <visual name="imu-body" pose="0.01 0.02 0.03 0 0 1.57" toggle="default">
      <model href="imu.glb" sha="deadbeef"/>
    </visual>
    <port name="i2c0" type="i2c" pose="0 0 0 0 0 0" linked_mesh="imu-body" geometry="circle:2mm"/>
    <sensor name="accel" kind="accelerometer" pose="0 0 0 0 0 0" driver="icm42688">
      <axis name="x" maps_to="-y"/>
      <axis name="y" maps_to="x"/>
      <fov horizontal="60" vertical="45"/>
    </sensor>
    <frame name="imu_frame" description="imu reference frame" pose="0 0 0 0 0 0"/>
    <comp name="nested" role="bracket">
      <frame name="bracket_frame" description="" pose="1 1 1 0 0 0"/>
    </comp>
  </comp>
</hdd>`

func TestParseCanonicalDocument(t *testing.T) {
	doc, warnings, err := Parse(strings.NewReader(canonicalDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %+v", warnings)
	}
	if len(doc.Comps) != 1 {
		t.Fatalf("got %d top-level comps, want 1", len(doc.Comps))
	}

	comp := doc.Comps[0]
	if comp.Name != "imu" || comp.Role != "sensor-mount" {
		t.Fatalf("comp mismatch: %+v", comp)
	}
	if len(comp.Visuals) != 1 || comp.Visuals[0].Model.Href != "imu.glb" || comp.Visuals[0].Model.Sha != "deadbeef" {
		t.Fatalf("visual mismatch: %+v", comp.Visuals)
	}
	if len(comp.Ports) != 1 || comp.Ports[0].Type != "i2c" {
		t.Fatalf("port mismatch: %+v", comp.Ports)
	}
	if len(comp.Sensors) != 1 {
		t.Fatalf("expected 1 sensor, got %d", len(comp.Sensors))
	}
	sensor := comp.Sensors[0]
	if sensor.AxisAlign["x"] != "-y" || sensor.AxisAlign["y"] != "x" {
		t.Fatalf("axis align mismatch: %+v", sensor.AxisAlign)
	}
	if sensor.FOV == nil || sensor.FOV.Horizontal != 60 || sensor.FOV.Vertical != 45 {
		t.Fatalf("fov mismatch: %+v", sensor.FOV)
	}
	if len(comp.Frames) != 1 || comp.Frames[0].Name != "imu_frame" {
		t.Fatalf("frame mismatch: %+v", comp.Frames)
	}
	if len(comp.Children) != 1 || comp.Children[0].Name != "nested" {
		t.Fatalf("children mismatch: %+v", comp.Children)
	}
}

func TestParseRoundTripSerialize(t *testing.T) {
	doc, _, err := Parse(strings.NewReader(canonicalDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	reparsed, warnings, err := Parse(strings.NewReader(Serialize(doc)))
	if err != nil {
		t.Fatalf("Parse(Serialize(doc)): %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings on reparse: %+v", warnings)
	}

	if len(reparsed.Comps) != len(doc.Comps) {
		t.Fatalf("comp count changed across round trip")
	}
	orig, again := doc.Comps[0], reparsed.Comps[0]
	if orig.Visuals[0].Pose != again.Visuals[0].Pose {
		t.Fatalf("visual pose not preserved: %+v vs %+v", orig.Visuals[0].Pose, again.Visuals[0].Pose)
	}
	if orig.Sensors[0].FOV.Horizontal != again.Sensors[0].FOV.Horizontal {
		t.Fatalf("fov not preserved")
	}
	if len(orig.Children) != len(again.Children) {
		t.Fatalf("nested comps not preserved")
	}
}

func TestParseRejectsWrongRootElement(t *testing.T) {
	_, _, err := Parse(strings.NewReader(`<notanhdd></notanhdd>`))
	if err == nil {
		t.Fatal("expected error for wrong root element")
	}
}

func TestParseRejectsBadPoseArity(t *testing.T) {
	doc := `<hdd><comp name="x"><frame name="f" pose="1 2 3"/></comp></hdd>`
	_, _, err := Parse(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected error for pose with wrong arity")
	}
}

func TestParseRejectsBadPoseNumber(t *testing.T) {
	doc := `<hdd><comp name="x"><frame name="f" pose="1 2 3 4 5 notanumber"/></comp></hdd>`
	_, _, err := Parse(strings.NewReader(doc))
	if err == nil {
		t.Fatal("expected error for non-numeric pose component")
	}
}

func TestParseToleratesUnknownElements(t *testing.T) {
	doc := `<hdd><future-top-level/><comp name="x"><unknown-child foo="bar"/><frame name="f" pose="0 0 0 0 0 0"/></comp></hdd>`
	parsed, warnings, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(warnings), warnings)
	}
	if len(parsed.Comps) != 1 || len(parsed.Comps[0].Frames) != 1 {
		t.Fatalf("unknown elements should not block parsing known ones: %+v", parsed)
	}
}

func TestParseAllowsMissingModelSha(t *testing.T) {
	doc := `<hdd><comp name="x"><visual name="v" pose="0 0 0 0 0 0"><model href="a.glb"/></visual></comp></hdd>`
	parsed, _, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Comps[0].Visuals[0].Model.Sha != "" {
		t.Fatalf("expected empty sha, got %q", parsed.Comps[0].Visuals[0].Model.Sha)
	}
}
