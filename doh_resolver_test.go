package gatewayip_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/Travis-Britz/gatewayip"
	"github.com/miekg/dns"
)

func TestJSONLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("name"); got != "home.example.net" {
			t.Errorf("Expected name %q; got %q", "home.example.net", got)
		}
		if got := r.URL.Query().Get("type"); got != "A" {
			t.Errorf("Expected type %q; got %q", "A", got)
		}
		if got := r.Header.Get("Accept"); got != "application/dns-json" {
			t.Errorf("Expected accept %q; got %q", "application/dns-json", got)
		}
		io.WriteString(w, `{"Status":0,"Answer":[
			{"name":"home.example.net","type":5,"TTL":60,"data":"edge.example.net."},
			{"name":"edge.example.net","type":1,"TTL":60,"data":"203.0.113.7"},
			{"name":"edge.example.net","type":1,"TTL":60,"data":"203.0.113.8"}]}`)
	}))
	defer srv.Close()

	r, err := gatewayip.DoHResolver("home.example.net", srv.URL)
	if err != nil {
		t.Fatalf("DoHResolver failed: %s", err)
	}
	addr, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if expected := netip.MustParseAddr("203.0.113.7"); addr != expected {
		t.Fatalf("Expected %q; got %q", expected, addr)
	}
}

func TestJSONLookupFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"no answer":    {200, `{"Status":0}`},
		"empty answer": {200, `{"Status":0,"Answer":[]}`},
		"nxdomain":     {200, `{"Status":3}`},
		"cname only":   {200, `{"Status":0,"Answer":[{"type":5,"data":"edge.example.net."}]}`},
		"bad data":     {200, `{"Status":0,"Answer":[{"type":1,"data":"not an ip"}]}`},
		"malformed":    {200, `<html>`},
		"server error": {500, `{"Status":2}`},
		"empty body":   {200, ``},
	}
	for name, tc := range cases {
		tc := tc
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			io.WriteString(w, tc.body)
		}))
		r, err := gatewayip.DoHResolver("home.example.net", srv.URL)
		if err != nil {
			t.Fatalf("DoHResolver failed: %s", err)
		}
		addr, err := r.Resolve(context.Background())
		srv.Close()
		if err == nil {
			t.Errorf("%s: Expected an error; got %s", name, addr)
		}
	}
}

func TestWireLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/dns-message" {
			t.Errorf("Expected content type %q; got %q", "application/dns-message", got)
		}
		b, _ := io.ReadAll(r.Body)
		q := new(dns.Msg)
		if err := q.Unpack(b); err != nil {
			t.Errorf("Unable to unpack query: %s", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(q.Question) != 1 || q.Question[0].Name != "home.example.net." || q.Question[0].Qtype != dns.TypeA {
			t.Errorf("Unexpected question %+v", q.Question)
		}
		resp := new(dns.Msg)
		resp.SetReply(q)
		rr, _ := dns.NewRR("home.example.net. 60 IN A 203.0.113.9")
		resp.Answer = append(resp.Answer, rr)
		packed, _ := resp.Pack()
		w.Header().Set("Content-Type", "application/dns-message")
		w.Write(packed)
	}))
	defer srv.Close()

	r, err := gatewayip.DoHWireResolver("home.example.net", srv.URL)
	if err != nil {
		t.Fatalf("DoHWireResolver failed: %s", err)
	}
	addr, err := r.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve failed: %s", err)
	}
	if expected := netip.MustParseAddr("203.0.113.9"); addr != expected {
		t.Fatalf("Expected %q; got %q", expected, addr)
	}
}

func TestWireLookupNXDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		q := new(dns.Msg)
		q.Unpack(b)
		resp := new(dns.Msg)
		resp.SetRcode(q, dns.RcodeNameError)
		packed, _ := resp.Pack()
		w.Write(packed)
	}))
	defer srv.Close()

	r, _ := gatewayip.DoHWireResolver("missing.example.net", srv.URL)
	if _, err := r.Resolve(context.Background()); err == nil {
		t.Fatalf("Expected error response; got err == nil")
	}
}

func TestDoHResolverURL(t *testing.T) {
	if _, err := gatewayip.DoHResolver("home.example.net", "ftp://example.net/dns-query"); err == nil {
		t.Fatalf("Expected an error for a non-http URL")
	}
	if _, err := gatewayip.DoHResolver("home.example.net", ""); err != nil {
		t.Fatalf("Expected the default URL to be accepted; got %s", err)
	}
}

func TestFromString(t *testing.T) {
	r, err := gatewayip.FromString("203.0.113.7")
	if err != nil {
		t.Fatalf("FromString failed: %s", err)
	}
	addr, err := r.Resolve(context.Background())
	if err != nil || addr != netip.MustParseAddr("203.0.113.7") {
		t.Fatalf("Expected 203.0.113.7; got %s (%v)", addr, err)
	}
	if _, err := gatewayip.FromString("not an ip"); err == nil {
		t.Fatalf("Expected an error for an invalid address")
	}

	r, err = gatewayip.FromString("::ffff:203.0.113.9")
	if err != nil {
		t.Fatalf("FromString failed: %s", err)
	}
	addr, err = r.Resolve(context.Background())
	if err != nil || addr != netip.MustParseAddr("203.0.113.9") {
		t.Fatalf("Expected the mapped address to be unmapped to 203.0.113.9; got %s (%v)", addr, err)
	}
	if _, err := gatewayip.FromString("2001:db8::1"); err == nil {
		t.Fatalf("Expected an error for an IPv6 address")
	}
}
