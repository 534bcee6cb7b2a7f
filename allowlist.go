package gatewayip

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"go4.org/netipx"
)

// AllowList is a set of IPv4 address prefixes a resolved address must fall into.
//
// The zero value is empty. An empty AllowList contains nothing;
// WithAllowList treats it as disabling the check.
type AllowList struct {
	entries []string
	set     *netipx.IPSet
}

// ParseAllowList parses one entry per line.
// Lines are trimmed and blank lines are ignored.
//
// An entry is either leading octets of an IPv4 address such as "203.0" or "203.0.113",
// which match addresses starting with exactly those components,
// or a CIDR prefix such as "203.0.113.0/24".
func ParseAllowList(text string) (AllowList, error) {
	var b netipx.IPSetBuilder
	var entries []string
	for i, line := range strings.Split(text, "\n") {
		entry := strings.TrimSpace(line)
		if entry == "" {
			continue
		}
		p, err := parseAllowEntry(entry)
		if err != nil {
			return AllowList{}, fmt.Errorf("allow-list line %d: %w", i+1, err)
		}
		b.AddPrefix(p)
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return AllowList{}, nil
	}
	set, err := b.IPSet()
	if err != nil {
		return AllowList{}, fmt.Errorf("error building allow-list: %w", err)
	}
	return AllowList{entries: entries, set: set}, nil
}

// MustParseAllowList is like ParseAllowList but panics on error.
func MustParseAllowList(text string) AllowList {
	a, err := ParseAllowList(text)
	if err != nil {
		panic(err)
	}
	return a
}

func parseAllowEntry(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		p, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid prefix %q: %w", entry, err)
		}
		if !p.Addr().Is4() {
			return netip.Prefix{}, fmt.Errorf("invalid prefix %q: only IPv4 is supported", entry)
		}
		return p.Masked(), nil
	}

	parts := strings.Split(entry, ".")
	if len(parts) > 4 {
		return netip.Prefix{}, fmt.Errorf("invalid prefix %q: too many octets", entry)
	}
	var octets [4]byte
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid prefix %q: bad octet %q", entry, part)
		}
		octets[i] = byte(n)
	}
	return netip.PrefixFrom(netip.AddrFrom4(octets), 8*len(parts)), nil
}

// Allows reports whether addr falls within any entry.
func (a AllowList) Allows(addr netip.Addr) bool {
	if a.set == nil {
		return false
	}
	return a.set.Contains(addr.Unmap())
}

func (a AllowList) Empty() bool { return len(a.entries) == 0 }

// Entries returns the entries in the order they were given.
func (a AllowList) Entries() []string {
	return append([]string(nil), a.entries...)
}
