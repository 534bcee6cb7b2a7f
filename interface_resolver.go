package gatewayip

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// InterfaceResolver constructs a resolver that returns the public IPv4 address assigned to the named interface.
// It suits hosts that terminate the WAN link themselves, where the interface address is the address the gateway sees.
func InterfaceResolver(name string) (Resolver, error) {
	if name == "" {
		return nil, errors.New("interface name cannot be empty")
	}
	return interfaceResolver{
		name:  name,
		addrs: interfaceAddrs,
	}, nil
}

type interfaceResolver struct {
	name  string
	addrs func(name string) ([]net.Addr, error)
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("error getting interface %s by name: %w", name, err)
	}
	a, err := iface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("error looking up addresses for interface %s: %w", name, err)
	}
	return a, nil
}

func (r interfaceResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	a, err := r.addrs(r.name)
	if err != nil {
		return netip.Addr{}, err
	}
	// addr: ip+net:192.168.86.253/24
	// addr: ip+net:fe80::2cc9:801b:3551:9a43/64
	var parseErrors []error
	for _, addr := range a {
		p, err := netip.ParsePrefix(addr.String())
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("error parsing local ip %s for interface %s: %w", addr.String(), r.name, err))
			continue
		}
		ip := p.Addr().Unmap()
		if !ip.Is4() || !ip.IsGlobalUnicast() || ip.IsPrivate() {
			continue
		}
		return ip, nil
	}
	if err := errors.Join(parseErrors...); err != nil {
		return netip.Addr{}, err
	}
	return netip.Addr{}, fmt.Errorf("no public IPv4 address on interface %s", r.name)
}
