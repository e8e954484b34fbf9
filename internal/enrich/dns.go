// Package enrich attaches best-effort, advisory metadata to a probed
// device: a reverse-DNS hostname and a vendor name derived from the
// MAC address's OUI prefix. Neither ever gates a lifecycle transition
// or cache decision — a failure here is silently swallowed by the
// caller.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const lookupTimeout = 500 * time.Millisecond

// ReverseDNS issues a direct PTR query against the system's configured
// resolver for ip, bypassing net.LookupAddr so a slow or unreachable
// resolver can't block a probe past its own deadline. It reports
// (hostname, true) on a successful, non-empty answer.
func ReverseDNS(ctx context.Context, ip string) (string, bool) {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return "", false
	}

	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", false
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	client := &dns.Client{Timeout: lookupTimeout}
	server := fmt.Sprintf("%s:%s", conf.Servers[0], conf.Port)

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	reply, _, err := client.ExchangeContext(ctx, msg, server)
	if err != nil || reply == nil || reply.Rcode != dns.RcodeSuccess {
		return "", false
	}

	for _, rr := range reply.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), true
		}
	}
	return "", false
}
