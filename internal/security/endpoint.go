package security

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var errBlockedAddress = errors.New("address is not routable from this service")

// blockedHosts are names that always resolve to infrastructure we must
// never call, regardless of DNS.
var blockedHosts = map[string]bool{
	"localhost":                true,
	"metadata.google.internal": true,
	"metadata.google":          true,
}

// ValidateEndpointURL decides whether rawURL is acceptable as a
// server-side request target. It rejects non-HTTP schemes, well-known
// internal hostnames, and any host that is or resolves to a loopback,
// private, link-local, or unspecified address, closing off SSRF against
// the local network and cloud metadata services.
func ValidateEndpointURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("URL scheme must be http or https")
	}

	host := u.Hostname()
	if host == "" {
		return errors.New("URL must have a host")
	}
	if blockedHosts[strings.ToLower(host)] {
		return fmt.Errorf("URL host %q is not allowed", host)
	}

	// An IP literal is checked directly; anything else goes through DNS
	// so a hostname cannot smuggle in an internal address.
	if addr, err := netip.ParseAddr(host); err == nil {
		return vetAddr(addr)
	}

	resolved, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("cannot resolve URL host: %s", host)
	}
	for _, s := range resolved {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			continue
		}
		if err := vetAddr(addr); err != nil {
			return fmt.Errorf("URL host %q resolves to a blocked address", host)
		}
	}
	return nil
}

func vetAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified() {
		return errBlockedAddress
	}
	return nil
}
