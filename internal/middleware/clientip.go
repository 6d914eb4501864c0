package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// ClientIPResolver derives the client address of a request. Forwarding
// headers are honoured only when the direct peer is a trusted proxy.
type ClientIPResolver struct {
	addrs    []net.IP
	networks []*net.IPNet
}

// NewClientIPResolver accepts plain addresses and CIDR ranges. Entries that
// parse as neither are logged and skipped.
func NewClientIPResolver(trustedProxies []string) *ClientIPResolver {
	resolver := &ClientIPResolver{}

	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if ip := net.ParseIP(entry); ip != nil {
			resolver.addrs = append(resolver.addrs, ip)
			continue
		}

		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "entry", entry, "error", err)
			continue
		}
		resolver.networks = append(resolver.networks, network)
	}

	return resolver
}

func (c *ClientIPResolver) trusted(ip net.IP) bool {
	if c == nil || ip == nil {
		return false
	}

	for _, addr := range c.addrs {
		if addr.Equal(ip) {
			return true
		}
	}
	for _, network := range c.networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP walks X-Forwarded-For from the right and returns the first hop
// that is not a trusted proxy. Hops left of it are client controlled.
func (c *ClientIPResolver) ClientIP(r *http.Request) string {
	peer := peerAddress(r)
	if !c.trusted(net.ParseIP(peer)) {
		return peer
	}

	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := net.ParseIP(strings.TrimSpace(hops[i]))
			if hop == nil {
				break
			}
			if !c.trusted(hop) {
				return hop.String()
			}
		}
	}

	if realIP := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); realIP != nil {
		return realIP.String()
	}

	return peer
}

func peerAddress(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}

	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return host
	}

	return remote
}
