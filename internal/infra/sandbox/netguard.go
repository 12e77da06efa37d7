package sandbox

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// blockedIPNets contains the CIDR ranges outbound requests may never reach:
// loopback, link-local, multicast, RFC1918 private ranges, CGNAT shared
// space, and the IPv6 equivalents.
var blockedIPNets []*net.IPNet

// cloudMetadataIP is the well-known cloud metadata service IP.
var cloudMetadataIP = net.ParseIP("169.254.169.254")

func init() {
	cidrs := []string{
		"0.0.0.0/8",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"224.0.0.0/4",
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",
		"::1/128",
		"fe80::/10",
		"ff00::/8",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("failed to parse CIDR %q: %v", cidr, err))
		}
		blockedIPNets = append(blockedIPNets, ipNet)
	}
}

// lookupIP is swapped in tests to avoid real DNS.
var lookupIP = func(ctx context.Context, host string) ([]net.IPAddr, error) {
	return net.DefaultResolver.LookupIPAddr(ctx, host)
}

// ValidateURL parses and vets an outbound target before any request is
// issued. It rejects non-http(s) schemes, blocked hostnames, and any target
// whose resolved addresses fall in a blocked range. Every resolved address
// must be clean: a host that round-robins between a public and a private IP
// is rejected.
//
// This runs in the tool, not inside the HTTP client, so no code path can
// reach the client without passing it.
func (p *Policy) ValidateURL(ctx context.Context, raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, NewValidationError("url", "cannot parse %q: %v", raw, err)
	}

	switch parsed.Scheme {
	case "http", "https":
	default:
		return nil, NewViolation("network", "scheme %q is not allowed, only http and https", parsed.Scheme)
	}

	host := strings.ToLower(strings.TrimSuffix(parsed.Hostname(), "."))
	if host == "" {
		return nil, NewValidationError("url", "missing host in %q", raw)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return nil, NewViolation("network", "loopback host %q is blocked", host)
	}
	if _, blocked := p.blockedHosts[host]; blocked {
		return nil, NewViolation("network", "host %q is on the blocklist", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return nil, NewViolation("network", "address %s is in a blocked range", ip)
		}
		return parsed, nil
	}

	addrs, err := lookupIP(ctx, host)
	if err != nil {
		return nil, NewValidationError("url", "cannot resolve host %q: %v", host, err)
	}
	if len(addrs) == 0 {
		return nil, NewValidationError("url", "host %q resolves to no addresses", host)
	}
	for _, addr := range addrs {
		if isBlockedIP(addr.IP) {
			return nil, NewViolation("network", "host %q resolves to blocked address %s", host, addr.IP)
		}
	}

	return parsed, nil
}

// isBlockedIP checks if an IP is loopback, link-local, private, multicast,
// CGNAT, IPv6 ULA, or the cloud metadata address.
func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.Equal(cloudMetadataIP) {
		return true
	}
	for _, ipNet := range blockedIPNets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}
