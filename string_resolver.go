package gatewayip

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns addr.
// Only IPv4 addresses are accepted; IPv4-mapped IPv6 addresses are unmapped.
// It is useful for pinning the location to a known address.
func FromString(addr string) (Resolver, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	a = a.Unmap()
	if !a.Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 address", addr)
	}
	return stringResolver(a.String()), nil
}

type stringResolver string

func (s stringResolver) Resolve(context.Context) (netip.Addr, error) {
	addr, err := netip.ParseAddr(string(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("unable to parse IP: %w", err)
	}
	return addr, nil
}
