// Package ssrf refuses outbound requests to loopback, private and cloud
// metadata addresses. It guards downloads whose URL comes from a third-party
// response rather than from configuration.
package ssrf

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
)

type Config struct {
	Enabled                bool
	BlockPrivateIPs        bool
	BlockMetadataEndpoints bool
	BlockLocalhost         bool

	// AllowedHosts bypass every check. An entry also matches its subdomains.
	AllowedHosts []string
}

func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		BlockPrivateIPs:        true,
		BlockMetadataEndpoints: true,
		BlockLocalhost:         true,
	}
}

// BlockedError reports why a URL was refused.
type BlockedError struct {
	Reason string
	URL    string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked request to %s: %s", e.URL, e.Reason)
}

var metadataIPs = []net.IP{
	net.ParseIP("169.254.169.254"),
	net.ParseIP("fd00:ec2::254"),
}

type Guard struct {
	config Config
	lookup func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func NewGuard(config Config) *Guard {
	return &Guard{
		config: config,
		lookup: net.DefaultResolver.LookupIPAddr,
	}
}

// CheckURL returns a *BlockedError if rawURL must not be requested.
func (g *Guard) CheckURL(ctx context.Context, rawURL string) error {
	if g == nil || !g.config.Enabled {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &BlockedError{Reason: "invalid URL", URL: rawURL}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &BlockedError{Reason: fmt.Sprintf("scheme %q not allowed", u.Scheme), URL: rawURL}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return &BlockedError{Reason: "missing host", URL: rawURL}
	}
	if g.allowed(host) {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		return g.checkIP(ip, rawURL)
	}

	addrs, err := g.lookup(ctx, host)
	if err != nil {
		return &BlockedError{Reason: fmt.Sprintf("resolving host: %v", err), URL: rawURL}
	}
	if len(addrs) == 0 {
		return &BlockedError{Reason: "host has no addresses", URL: rawURL}
	}
	// every address must pass, a resolver may hand out any of them
	for _, addr := range addrs {
		if err := g.checkIP(addr.IP, rawURL); err != nil {
			return err
		}
	}
	return nil
}

func (g *Guard) allowed(host string) bool {
	for _, a := range g.config.AllowedHosts {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func (g *Guard) checkIP(ip net.IP, rawURL string) error {
	if g.config.BlockLocalhost && (ip.IsLoopback() || ip.IsUnspecified()) {
		return &BlockedError{Reason: "loopback address", URL: rawURL}
	}
	if g.config.BlockMetadataEndpoints {
		for _, m := range metadataIPs {
			if ip.Equal(m) {
				return &BlockedError{Reason: "cloud metadata endpoint", URL: rawURL}
			}
		}
	}
	if g.config.BlockPrivateIPs && (ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()) {
		return &BlockedError{Reason: "private address", URL: rawURL}
	}
	return nil
}
