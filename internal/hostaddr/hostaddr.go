// Package hostaddr discovers the local host's advertised IPv4/IPv6
// addresses and hostname from OS network interfaces. The core protocol
// treats this as an external collaborator (spec.md §1); this package is the
// concrete implementation the guest heartbeat loop (C9) depends on.
//
// No third-party alternative in the example corpus is both cross-platform
// and narrower than net.Interfaces for this job — vishvananda/netlink,
// seen elsewhere in the pack, is Linux-only — so this stays on the standard
// library.
package hostaddr

import (
	"net"
	"os"
	"strings"
)

// DefaultIPv4Prefixes are the private-range prefixes matched when no
// explicit list is configured.
var DefaultIPv4Prefixes = []string{"10.", "192.168.", "172."}

// DefaultIPv6Prefix is the link-local prefix matched when no explicit
// prefix is configured.
const DefaultIPv6Prefix = "fe80:"

// Discoverer finds addresses matching configured prefixes across all host
// network interfaces.
type Discoverer struct {
	IPv4Prefixes []string
	IPv6Prefix   string
}

// New returns a Discoverer using the default prefix lists.
func New() *Discoverer {
	return &Discoverer{
		IPv4Prefixes: DefaultIPv4Prefixes,
		IPv6Prefix:   DefaultIPv6Prefix,
	}
}

// Hostname returns the local hostname.
func (d *Discoverer) Hostname() (string, error) {
	return os.Hostname()
}

// IPv4 returns the first interface address matching one of IPv4Prefixes, or
// "" if none is found.
func (d *Discoverer) IPv4() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, _, err := net.ParseCIDR(a.String())
			if err != nil {
				continue
			}
			ip4 := ip.To4()
			if ip4 == nil {
				continue
			}
			s := ip4.String()
			if hasAnyPrefix(s, d.IPv4Prefixes) {
				return s, nil
			}
		}
	}
	return "", nil
}

// IPv6 returns the first interface address matching IPv6Prefix, with a
// "%<iface>" scope suffix appended when found on a scope-bearing interface.
// Returns "" if none is found.
func (d *Discoverer) IPv6() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ip, _, err := net.ParseCIDR(a.String())
			if err != nil {
				continue
			}
			if ip.To4() != nil {
				continue // not IPv6
			}
			s := ip.String()
			if d.IPv6Prefix != "" && !strings.HasPrefix(s, d.IPv6Prefix) {
				continue
			}
			if ip.IsLinkLocalUnicast() {
				s += "%" + iface.Name
			}
			return s, nil
		}
	}
	return "", nil
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
