package gatewayip_test

import (
	"net/netip"
	"reflect"
	"testing"

	"github.com/Travis-Britz/gatewayip"
)

func TestParseAllowList(t *testing.T) {
	a, err := gatewayip.ParseAllowList("  203.0 \n\n198.51.100\r\n\t\n192.0.2.0/24\n")
	if err != nil {
		t.Fatalf("ParseAllowList failed: %s", err)
	}
	if expected, got := []string{"203.0", "198.51.100", "192.0.2.0/24"}, a.Entries(); !reflect.DeepEqual(expected, got) {
		t.Fatalf("Expected %q; got %q", expected, got)
	}

	cases := []struct {
		addr  string
		allow bool
	}{
		{"203.0.113.7", true},
		{"203.0.0.1", true},
		{"203.1.113.7", false},
		{"198.51.100.4", true},
		{"198.51.101.4", false},
		{"192.0.2.200", true},
		{"192.0.3.1", false},
		{"::ffff:203.0.113.7", true},
		{"2001:db8::1", false},
	}
	for _, tc := range cases {
		if got := a.Allows(netip.MustParseAddr(tc.addr)); got != tc.allow {
			t.Errorf("Allows(%s) = %v, want %v", tc.addr, got, tc.allow)
		}
	}
}

func TestAllowListComponentBoundaries(t *testing.T) {
	// "20.3" must not match 203.x addresses as a plain string prefix would
	a := gatewayip.MustParseAllowList("20.3")
	if a.Allows(netip.MustParseAddr("203.0.113.7")) {
		t.Fatalf("Expected 203.0.113.7 to be rejected by 20.3")
	}
	if !a.Allows(netip.MustParseAddr("20.3.1.1")) {
		t.Fatalf("Expected 20.3.1.1 to be allowed by 20.3")
	}
}

func TestEmptyAllowList(t *testing.T) {
	for _, text := range []string{"", "\n \n\t"} {
		a, err := gatewayip.ParseAllowList(text)
		if err != nil {
			t.Fatalf("ParseAllowList(%q) failed: %s", text, err)
		}
		if !a.Empty() {
			t.Fatalf("Expected %q to produce an empty list", text)
		}
		if a.Allows(netip.MustParseAddr("203.0.113.7")) {
			t.Fatalf("Expected an empty list to contain nothing")
		}
	}
}

func TestInvalidAllowList(t *testing.T) {
	for _, text := range []string{"203.0.\n", "256.1", "1.2.3.4.5", "abc", "2001:db8::/32", "203.0.113.0/33"} {
		if _, err := gatewayip.ParseAllowList(text); err == nil {
			t.Errorf("ParseAllowList(%q): Expected an error; got err == nil", text)
		}
	}
}
