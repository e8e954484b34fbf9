package netif

import (
	"github.com/safchain/ethtool"
)

// LinkUp reports whether name is carrying link, preferring ethtool's
// driver-reported carrier state and falling back to the netlink-reported
// operational state when ethtool is unavailable (e.g. virtual
// interfaces, or no CAP_NET_ADMIN).
func LinkUp(nl Netlinker, name string) (bool, error) {
	if up, err := ethtoolLinkUp(name); err == nil {
		return up, nil
	}
	iface, err := byName(nl, name)
	if err != nil {
		return false, err
	}
	return iface.Up, nil
}

func ethtoolLinkUp(name string) (bool, error) {
	et, err := ethtool.NewEthtool()
	if err != nil {
		return false, err
	}
	defer et.Close()

	state, err := et.LinkState(name)
	if err != nil {
		return false, err
	}
	return state != 0, nil
}
