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
	"net/url"
	"strings"

	"github.com/cloudflare/cloudflare-go"
)

// CloudflareAPI is the base URL of the Cloudflare v4 API.
const CloudflareAPI = "https://api.cloudflare.com/client/v4"

// maxAPIResponse caps how much of a gateway API response is read.
const maxAPIResponse = 1 << 20

// CloudflareStore implements LocationStore against the Zero Trust gateway locations API.
//
// Reads go through cloudflare-go. Writes are sent directly:
// the API client cannot patch networks alone,
// and a rejected write's raw body is kept for diagnostics.
type CloudflareStore struct {
	AccountID string
	Token     string
	// BaseURL defaults to CloudflareAPI.
	BaseURL string

	httpClient *http.Client
	logger     *log.Logger
}

func (cf *CloudflareStore) SetHTTPClient(c *http.Client) { cf.httpClient = c }
func (cf *CloudflareStore) SetLogger(l *log.Logger)      { cf.logger = l }

type networkPayload struct {
	Network string `json:"network"`
}

// patchPayload carries only the fields being changed.
type patchPayload struct {
	Networks []networkPayload `json:"networks"`
}

// replacePayload carries every field the API requires on a full replace.
type replacePayload struct {
	Name          string           `json:"name"`
	Networks      []networkPayload `json:"networks"`
	ClientDefault bool             `json:"client_default"`
}

// Location fetches a single location by identifier.
func (cf *CloudflareStore) Location(ctx context.Context, id string) (Location, error) {
	api, err := cf.api()
	if err != nil {
		return Location{}, &RemoteFetchError{Err: err}
	}
	ctx, cancel := boundContext(ctx, cf.httpClient)
	defer cancel()
	l, err := api.TeamsLocation(ctx, cf.AccountID, id)
	if err != nil {
		return Location{}, fetchError(err)
	}
	cf.log("fetched location %s (%s)", l.ID, l.Name)
	return fromTeamsLocation(l), nil
}

// Locations fetches every location in the account.
func (cf *CloudflareStore) Locations(ctx context.Context) ([]Location, error) {
	api, err := cf.api()
	if err != nil {
		return nil, &RemoteFetchError{Err: err}
	}
	ctx, cancel := boundContext(ctx, cf.httpClient)
	defer cancel()
	result, _, err := api.TeamsLocations(ctx, cf.AccountID)
	if err != nil {
		return nil, fetchError(err)
	}
	cf.log("fetched %d locations", len(result))
	locations := make([]Location, 0, len(result))
	for _, l := range result {
		locations = append(locations, fromTeamsLocation(l))
	}
	return locations, nil
}

// PatchNetworks sends a partial update of the location's networks.
// Only the HTTP status decides success.
func (cf *CloudflareStore) PatchNetworks(ctx context.Context, id string, networks []string) error {
	status, body, err := cf.do(ctx, http.MethodPatch, cf.locationPath(id), patchPayload{Networks: toNetworkPayload(networks)})
	if err != nil {
		return &RemoteUpdateError{Err: err}
	}
	if !success(status) {
		return &RemoteUpdateError{StatusCode: status, Body: string(body)}
	}
	cf.log("patched networks of location %s to %v", id, networks)
	return nil
}

// ReplaceLocation replaces the full location record.
// Success requires both a 2xx status and "success": true in the body.
func (cf *CloudflareStore) ReplaceLocation(ctx context.Context, loc Location) error {
	if loc.ID == "" {
		return &RemoteUpdateError{Err: errors.New("location has no identifier")}
	}
	payload := replacePayload{
		Name:          loc.Name,
		Networks:      toNetworkPayload(loc.Networks),
		ClientDefault: loc.ClientDefault,
	}
	status, body, err := cf.do(ctx, http.MethodPut, cf.locationPath(loc.ID), payload)
	if err != nil {
		return &RemoteUpdateError{Err: err}
	}
	var resp cloudflare.Response
	if err := json.Unmarshal(body, &resp); err != nil || !success(status) || !resp.Success {
		return &RemoteUpdateError{StatusCode: status, Body: string(body)}
	}
	cf.log("replaced location %s (%s) with networks %v", loc.ID, loc.Name, loc.Networks)
	return nil
}

// api builds a client for the reads.
// The next trigger is the retry, so each call makes a single attempt.
func (cf *CloudflareStore) api() (*cloudflare.API, error) {
	if cf.AccountID == "" || cf.Token == "" {
		return nil, errors.New("cloudflare store requires an account ID and an API token")
	}
	opts := []cloudflare.Option{
		cloudflare.BaseURL(cf.baseURL()),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	if cf.httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(cf.httpClient))
	}
	if cf.logger != nil {
		opts = append(opts, cloudflare.UsingLogger(cf.logger))
	}
	return cloudflare.NewWithAPIToken(cf.Token, opts...)
}

func (cf *CloudflareStore) baseURL() string {
	if cf.BaseURL == "" {
		return CloudflareAPI
	}
	return strings.TrimSuffix(cf.BaseURL, "/")
}

func (cf *CloudflareStore) locationPath(id string) string {
	p := "/accounts/" + url.PathEscape(cf.AccountID) + "/gateway/locations"
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	return p
}

// do sends one request and returns the status and raw body.
// A non-2xx status is not an error here; callers decide.
func (cf *CloudflareStore) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	if cf.AccountID == "" || cf.Token == "" {
		return 0, nil, errors.New("cloudflare store requires an account ID and an API token")
	}
	ctx, cancel := boundContext(ctx, cf.httpClient)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("error encoding request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, cf.baseURL()+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cf.Token)
	req.Header.Set("Content-Type", "application/json")

	httpclient := cf.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	resp, err := httpclient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIResponse))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func (cf *CloudflareStore) log(format string, v ...any) {
	if cf.logger != nil {
		cf.logger.Printf(format, v...)
	}
}

// fetchError keeps the status of the API errors that imply one.
func fetchError(err error) *RemoteFetchError {
	fe := &RemoteFetchError{Err: err}
	var (
		authz    *cloudflare.AuthorizationError
		authn    *cloudflare.AuthenticationError
		notFound *cloudflare.NotFoundError
		limited  *cloudflare.RatelimitError
	)
	switch {
	case errors.As(err, &authz):
		fe.StatusCode = http.StatusUnauthorized
	case errors.As(err, &authn):
		fe.StatusCode = http.StatusForbidden
	case errors.As(err, &notFound):
		fe.StatusCode = http.StatusNotFound
	case errors.As(err, &limited):
		fe.StatusCode = http.StatusTooManyRequests
	}
	return fe
}

func success(status int) bool {
	return status >= 200 && status < 300
}

func fromTeamsLocation(l cloudflare.TeamsLocation) Location {
	loc := Location{
		ID:            l.ID,
		Name:          l.Name,
		ClientDefault: l.ClientDefault,
	}
	for _, n := range l.Networks {
		loc.Networks = append(loc.Networks, n.Network)
	}
	return loc
}

func toNetworkPayload(networks []string) []networkPayload {
	out := make([]networkPayload, 0, len(networks))
	for _, n := range networks {
		out = append(out, networkPayload{Network: n})
	}
	return out
}
