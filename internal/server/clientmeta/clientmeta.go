// Package clientmeta derives what the server records about a caller: the
// address, the user agent and what can be read from it, and a coarse
// location supplied by a trusted fronting proxy.
package clientmeta

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/dmitrijs2005/pinvault/internal/common"
	"github.com/dmitrijs2005/pinvault/internal/server/models"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
)

const maxUserAgentLen = 512

// TrustedProxies lists the peers allowed to speak for the client through
// the forwarded-for and location headers.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies accepts bare addresses and CIDR ranges.
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", e, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// Contains reports whether ip falls in one of the ranges.
func (t TrustedProxies) Contains(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range t {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// FromIncoming builds ClientMeta from gRPC metadata and the transport peer.
// The forwarded-for and location headers are only read when the peer is a
// trusted proxy; otherwise anyone could pick their own rate-limit key.
func FromIncoming(ctx context.Context, trusted TrustedProxies) models.ClientMeta {
	var ip, ua, loc string

	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		ip = hostOnly(p.Addr.String())
	}

	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ua = first(md, "user-agent")
		if trusted.Contains(ip) {
			if fwd := firstForwarded(first(md, common.ForwardedForHeaderName)); fwd != "" {
				ip = fwd
			}
			loc = first(md, common.GeoLocationHeaderName)
		}
	}

	return Build(ip, ua, loc)
}

// Build fills the derived fields from a raw user agent.
func Build(ip, userAgent, location string) models.ClientMeta {
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	device, browser, os := ParseUserAgent(userAgent)
	return models.ClientMeta{
		IPAddress:  ip,
		UserAgent:  userAgent,
		DeviceType: device,
		Browser:    browser,
		OS:         os,
		Location:   strings.TrimSpace(location),
	}
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func firstForwarded(v string) string {
	if v == "" {
		return ""
	}
	head, _, _ := strings.Cut(v, ",")
	return hostOnly(strings.TrimSpace(head))
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
