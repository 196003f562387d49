package main

import (
	"context"
	"fmt"
	"net"
	"os"
)

// localNetBlocks covers ranges the net.IP classifiers miss: CGNAT space,
// which some ISPs route internally.
var localNetBlocks = mustParseCIDRs(
	"100.64.0.0/10", // RFC6598
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	blocks := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, block, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		blocks = append(blocks, block)
	}
	return blocks
}

// isPrivateIP reports whether fetching from ip could reach a private or
// local network. Setting CLIPDOWN_TEST_ALLOW_LOCAL=1 disables the check
// so tests can run loopback HTTP servers.
func isPrivateIP(ip net.IP) bool {
	if os.Getenv("CLIPDOWN_TEST_ALLOW_LOCAL") == "1" {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, block := range localNetBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// safeDialContext returns a dial function that refuses private and local
// destinations. The hostname is resolved once and the chosen IP dialed
// directly, so a second resolution cannot swap in a different address.
func safeDialContext(dialer *net.Dialer) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ips, err := net.LookupIP(host)
		if err != nil {
			return nil, err
		}

		for _, ip := range ips {
			if isPrivateIP(ip) {
				continue
			}
			// SNI stays on the original hostname; only the dial target
			// is pinned.
			return dialer.DialContext(ctx, network, net.JoinHostPort(ip.String(), port))
		}
		return nil, fmt.Errorf("blocked connection to private/local IP for %s", host)
	}
}
