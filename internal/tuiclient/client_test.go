package tuiclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDevicesDecodesSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/devices" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"aa:bb:cc:dd:ee:ff","ip":"192.168.1.10","mac":"aa:bb:cc:dd:ee:ff","board":"esp32","status":"online","lifecycle":"bound","visuals":[{"comp":"chassis","name":"body","model":{"href":"body.glb"}}],"ports":[],"sensors":[],"frames":[]}]`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	devices, err := c.Devices()
	if err != nil {
		t.Fatalf("Devices: %v", err)
	}
	if len(devices) != 1 || devices[0].Board != "esp32" {
		t.Fatalf("unexpected devices: %+v", devices)
	}
	if len(devices[0].Visuals) != 1 || devices[0].Visuals[0].Model.Href != "body.glb" {
		t.Fatalf("expected decoded visuals, got %+v", devices[0].Visuals)
	}
}

func TestTriggerScanRequiresAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.TriggerScan(); err == nil {
		t.Fatal("expected error on non-202 response")
	}
}

func TestSetSubnetSendsExpectedBody(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		gotBody = string(buf[:n])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New(srv.URL)
	if err := c.SetSubnet("eth0", "192.168.1.0", 24); err != nil {
		t.Fatalf("SetSubnet: %v", err)
	}
	if gotBody == "" {
		t.Fatal("expected a request body")
	}
}
