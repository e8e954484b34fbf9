package enrich

import "testing"

func TestVendorForMACRecognizesKnownPrefix(t *testing.T) {
	vendor, ok := VendorForMAC("3c:61:05:aa:bb:cc")
	if !ok || vendor != "Espressif" {
		t.Fatalf("got %q, %v", vendor, ok)
	}
}

func TestVendorForMACUnknownPrefix(t *testing.T) {
	if _, ok := VendorForMAC("00:00:00:aa:bb:cc"); ok {
		t.Fatal("expected unknown prefix to report false")
	}
}

func TestVendorForMACMalformed(t *testing.T) {
	if _, ok := VendorForMAC("not-a-mac"); ok {
		t.Fatal("expected malformed MAC to report false")
	}
}
