package gatewayip

import (
	"context"
	"errors"
	"net"
	"testing"
)

func ipNet(t *testing.T, cidr string) net.Addr {
	t.Helper()
	ip, n, err := net.ParseCIDR(cidr)
	if err != nil {
		t.Fatal(err)
	}
	n.IP = ip
	return n
}

func TestInterfaceResolver(t *testing.T) {
	r := interfaceResolver{
		name: "wan0",
		addrs: func(string) ([]net.Addr, error) {
			return []net.Addr{
				ipNet(t, "127.0.0.1/8"),
				ipNet(t, "192.168.86.253/24"),
				ipNet(t, "fe80::2cc9:801b:3551:9a43/64"),
				ipNet(t, "203.0.113.42/30"),
			}, nil
		},
	}
	addr, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Expected no error; got %v", err)
	}
	if addr.String() != "203.0.113.42" {
		t.Fatalf("Expected %q; got %q", "203.0.113.42", addr)
	}
}

func TestInterfaceResolverNoPublicAddress(t *testing.T) {
	r := interfaceResolver{
		name: "lan0",
		addrs: func(string) ([]net.Addr, error) {
			return []net.Addr{ipNet(t, "10.0.0.2/8")}, nil
		},
	}
	if _, err := r.Resolve(context.Background()); err == nil {
		t.Fatalf("Expected an error when the interface has no public address")
	}

	lookupErr := errors.New("no such interface")
	r.addrs = func(string) ([]net.Addr, error) { return nil, lookupErr }
	if _, err := r.Resolve(context.Background()); !errors.Is(err, lookupErr) {
		t.Fatalf("Expected %v; got %v", lookupErr, err)
	}

	if _, err := InterfaceResolver(""); err == nil {
		t.Fatalf("Expected an error for an empty interface name")
	}
}
