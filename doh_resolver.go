package gatewayip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/netip"
	"net/url"
	"time"

	"github.com/miekg/dns"
)

// DefaultDoHURL is Cloudflare's public DNS-over-HTTPS endpoint.
// It answers both the JSON and the RFC 8484 wire formats.
const DefaultDoHURL = "https://cloudflare-dns.com/dns-query"

// requestTimeout applies when the HTTP client has no timeout of its own.
var requestTimeout = 15 * time.Second

// boundContext makes sure a request through httpclient eventually completes.
// http.DefaultClient, used when httpclient is nil, has no timeout.
func boundContext(ctx context.Context, httpclient *http.Client) (context.Context, context.CancelFunc) {
	if httpclient != nil && httpclient.Timeout > 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, requestTimeout)
}

// maxDoHResponse caps how much of a DNS response body is read.
const maxDoHResponse = 64 << 10

// DoHResolver constructs a resolver which asks a DNS-over-HTTPS service for the A record of hostname
// using the JSON API (GET with name and type parameters, "accept: application/dns-json").
//
// The first A record in the answer section is returned.
// An answer without one is an error.
// An empty serviceURL means DefaultDoHURL.
func DoHResolver(hostname, serviceURL string) (Resolver, error) {
	u, err := parseServiceURL(serviceURL)
	if err != nil {
		return nil, err
	}
	return &dohResolver{hostname: hostname, serviceURL: u, logger: discard}, nil
}

// DoHWireResolver is like DoHResolver but speaks the RFC 8484 wire format,
// POSTing a packed DNS message with content type "application/dns-message".
func DoHWireResolver(hostname, serviceURL string) (Resolver, error) {
	u, err := parseServiceURL(serviceURL)
	if err != nil {
		return nil, err
	}
	return &dohResolver{hostname: hostname, serviceURL: u, wire: true, logger: discard}, nil
}

func parseServiceURL(serviceURL string) (*url.URL, error) {
	if serviceURL == "" {
		serviceURL = DefaultDoHURL
	}
	u, err := url.Parse(serviceURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("unsupported DNS-over-HTTPS URL %q", serviceURL)
	}
	return u, nil
}

type dohResolver struct {
	httpClient *http.Client
	logger     *log.Logger
	serviceURL *url.URL
	hostname   string
	wire       bool
}

func (r *dohResolver) SetHTTPClient(c *http.Client) { r.httpClient = c }
func (r *dohResolver) SetLogger(l *log.Logger)      { r.logger = l }

// Resolve implements gatewayip.Resolver.
func (r *dohResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if r.hostname == "" {
		return netip.Addr{}, errors.New("no hostname to resolve")
	}
	httpclient := r.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	ctx, cancel := boundContext(ctx, httpclient)
	defer cancel()

	if r.wire {
		return r.lookupWire(ctx, httpclient)
	}
	return r.lookupJSON(ctx, httpclient)
}

type dohJSONAnswer struct {
	Name string `json:"name"`
	Type uint16 `json:"type"`
	TTL  uint32 `json:"TTL"`
	Data string `json:"data"`
}

type dohJSONResponse struct {
	Status int             `json:"Status"`
	Answer []dohJSONAnswer `json:"Answer"`
}

func (r *dohResolver) lookupJSON(ctx context.Context, httpclient *http.Client) (netip.Addr, error) {
	u := *r.serviceURL
	q := u.Query()
	q.Set("name", r.hostname)
	q.Set("type", "A")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/dns-json")

	body, err := doDoH(httpclient, req)
	if err != nil {
		return netip.Addr{}, err
	}

	var answer dohJSONResponse
	if err := json.Unmarshal(body, &answer); err != nil {
		return netip.Addr{}, fmt.Errorf("error decoding DNS response: %w", err)
	}
	if answer.Status != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("DNS query failed with %s", rcodeName(answer.Status))
	}
	for _, a := range answer.Answer {
		if a.Type != dns.TypeA {
			continue
		}
		addr, err := netip.ParseAddr(a.Data)
		if err != nil || !addr.Is4() {
			return netip.Addr{}, fmt.Errorf("invalid A record data %q", a.Data)
		}
		r.logger.Printf("DNS answer for %s: %s (ttl %d)", r.hostname, addr, a.TTL)
		return addr, nil
	}
	return netip.Addr{}, errors.New("no IP returned for hostname")
}

func (r *dohResolver) lookupWire(ctx context.Context, httpclient *http.Client) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(r.hostname), dns.TypeA)
	// RFC 8484 4.1: use ID 0 so responses are cache friendly
	m.Id = 0
	packed, err := m.Pack()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error packing DNS query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.serviceURL.String(), bytes.NewReader(packed))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")

	body, err := doDoH(httpclient, req)
	if err != nil {
		return netip.Addr{}, err
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(body); err != nil {
		return netip.Addr{}, fmt.Errorf("error unpacking DNS response: %w", err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("DNS query failed with %s", rcodeName(resp.Rcode))
	}
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(a.A.To4())
		if !ok {
			return netip.Addr{}, fmt.Errorf("invalid A record %s", a)
		}
		r.logger.Printf("DNS answer for %s: %s (ttl %d)", r.hostname, addr, a.Hdr.Ttl)
		return addr, nil
	}
	return netip.Addr{}, errors.New("no IP returned for hostname")
}

func doDoH(httpclient *http.Client, req *http.Request) ([]byte, error) {
	resp, err := httpclient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http request returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDoHResponse))
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return body, nil
}

func rcodeName(rcode int) string {
	if name, ok := dns.RcodeToString[rcode]; ok {
		return name
	}
	return fmt.Sprintf("rcode %d", rcode)
}
