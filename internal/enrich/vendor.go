package enrich

import "strings"

// ouiTable is a small built-in set of OUI prefixes for vendors common
// on embedded/IoT networks. It is deliberately not an embedded copy of
// the full IEEE registry: Dendrite only needs enough to label a
// dashboard, not to be an authoritative MAC vendor database.
var ouiTable = map[string]string{
	"3C:61:05": "Espressif",
	"24:6F:28": "Espressif",
	"84:CC:A8": "Espressif",
	"A4:CF:12": "Espressif",
	"B4:E6:2D": "Raspberry Pi Foundation",
	"DC:A6:32": "Raspberry Pi Foundation",
	"E4:5F:01": "Raspberry Pi Foundation",
	"D8:3A:DD": "Raspberry Pi Foundation",
	"00:80:E1": "STMicroelectronics",
	"00:1A:22": "Nordic Semiconductor",
	"F4:CE:36": "Nordic Semiconductor",
	"00:04:A3": "Microchip Technology",
	"FC:F5:C4": "Texas Instruments",
}

// VendorForMAC returns a vendor name for the first three octets of
// mac, or ("", false) if the prefix is unrecognized.
func VendorForMAC(mac string) (string, bool) {
	parts := strings.Split(mac, ":")
	if len(parts) < 3 {
		return "", false
	}
	prefix := strings.ToUpper(strings.Join(parts[:3], ":"))
	vendor, ok := ouiTable[prefix]
	return vendor, ok
}
