package netif

import "errors"

// ErrPermissionDenied is returned when opening a raw AF_PACKET socket
// fails because the process lacks CAP_NET_RAW (EPERM/EACCES).
var ErrPermissionDenied = errors.New("netif: permission denied opening raw socket")

// ErrInterfaceUnavailable is returned when the requested interface does
// not exist or its netlink operational state is not up.
var ErrInterfaceUnavailable = errors.New("netif: interface unavailable")

// ErrSubnetTooLarge is returned when an IPv6 subnet has too many host
// addresses to enumerate for an NDP sweep, and by hostsInV6 for a subnet
// that is not IPv6 at all.
var ErrSubnetTooLarge = errors.New("netif: subnet too large to enumerate for ndp sweep")
