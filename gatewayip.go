package gatewayip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DefaultHostname is the dynamic DNS name followed when none is configured.
const DefaultHostname = "qcy.ddns.net"

var discard = log.New(io.Discard, "", log.LstdFlags)

// notifyTimeout bounds a notification sent after the invocation's context has ended.
const notifyTimeout = 10 * time.Second

// New returns a Client that follows hostname and keeps the location selected by lookup up to date.
//
// The resolver defaults to a DNS-over-HTTPS JSON query against DefaultDoHURL.
// A LocationStore must be registered, e.g. with UsingCloudflare.
// Notifications are discarded unless a Notifier is registered.
func New(hostname string, lookup Lookup, options ...Option) (*Client, error) {
	if hostname == "" {
		return nil, fmt.Errorf("gatewayip.New: hostname cannot be empty")
	}
	if err := lookup.validate(); err != nil {
		return nil, fmt.Errorf("gatewayip.New: %w", err)
	}
	c := &Client{
		hostname: hostname,
		lookup:   lookup,
		logger:   discard,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("gatewayip.New: option %d returned an error: %s", i, err)
		}
	}

	if c.LocationStore == nil {
		return nil, fmt.Errorf("gatewayip.New: no location store was registered and there is no default option - use gatewayip.UsingCloudflare or similar")
	}
	if c.Resolver == nil {
		r, err := DoHResolver(hostname, DefaultDoHURL)
		if err != nil {
			return nil, fmt.Errorf("gatewayip.New: %w", err)
		}
		c.Resolver = r
	}
	if c.Notifier == nil {
		c.Notifier = NotifierFunc(func(context.Context, string) error { return nil })
	}

	// dependencies registered after WithLogger or UsingHTTPClient still get them
	c.propagate()
	return c, nil
}

// Option configures a Client in New.
type Option func(*Client) error

// UsingCloudflare registers the Cloudflare Zero Trust API as the location store.
func UsingCloudflare(accountID, token string) Option {
	return func(c *Client) error {
		if accountID == "" {
			return errors.New("gatewayip.UsingCloudflare: account ID cannot be empty")
		}
		if token == "" {
			return errors.New("gatewayip.UsingCloudflare: API token cannot be empty")
		}
		c.LocationStore = &CloudflareStore{AccountID: accountID, Token: token}
		return nil
	}
}

// UsingStore registers store as the location store.
func UsingStore(store LocationStore) Option {
	return func(c *Client) error {
		if store == nil {
			return errors.New("gatewayip.UsingStore: store cannot be nil")
		}
		c.LocationStore = store
		return nil
	}
}

// UsingResolver replaces the default DNS-over-HTTPS resolver.
// A nil resolver restores the default.
func UsingResolver(resolver Resolver) Option {
	return func(c *Client) error {
		c.Resolver = resolver
		return nil
	}
}

// UsingTelegram sends notifications to a Telegram chat through a bot.
func UsingTelegram(token, chatID string) Option {
	return func(c *Client) error {
		if token == "" || chatID == "" {
			return errors.New("gatewayip.UsingTelegram: bot token and chat ID are both required")
		}
		c.Notifier = &Telegram{Token: token, ChatID: chatID}
		return nil
	}
}

// UsingNotifier registers n for notifications.
func UsingNotifier(n Notifier) Option {
	return func(c *Client) error {
		c.Notifier = n
		return nil
	}
}

// WithAllowList rejects resolved addresses that allow does not contain.
// An empty list disables the check.
func WithAllowList(allow AllowList) Option {
	return func(c *Client) error {
		if allow.Empty() {
			c.allow = nil
			return nil
		}
		c.allow = &allow
		return nil
	}
}

// NotifyOnNoop controls whether a run that finds the location already up to date sends a notification.
// The default is to stay silent.
func NotifyOnNoop(notify bool) Option {
	return func(c *Client) error {
		c.notifyOnNoop = notify
		return nil
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the client used by the built-in resolvers, stores and notifiers.
// Its Timeout applies to each request separately.
func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

func (c *Client) propagate() {
	type setLogger interface {
		SetLogger(*log.Logger)
	}
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}
	for _, dep := range []any{c.Resolver, c.LocationStore, c.Notifier} {
		if l, ok := dep.(setLogger); ok {
			l.SetLogger(c.logger)
		}
		if h, ok := dep.(setHTTPClient); ok && c.httpClient != nil {
			h.SetHTTPClient(c.httpClient)
		}
	}
}

// Client reconciles one gateway location with one hostname.
// A Client holds no state between calls to Reconcile.
type Client struct {
	Resolver
	LocationStore
	Notifier

	hostname     string
	lookup       Lookup
	allow        *AllowList
	notifyOnNoop bool
	httpClient   *http.Client
	logger       *log.Logger
}

// Reconcile resolves the hostname, compares it with the gateway location
// and updates the location when they differ.
//
// The returned Result is the primary outcome.
// When Result.Notify is set, exactly one notification was attempted;
// delivery failures are logged and otherwise ignored.
func (c *Client) Reconcile(ctx context.Context) Result {
	runID := uuid.NewString()
	c.logger.Printf("run %s: reconciling %s with location %s", runID, c.hostname, c.lookup)

	r := c.reconcile(ctx)
	r.RunID = runID
	c.logger.Printf("run %s: %s: %s", runID, r.Kind, r.Message)

	if r.Notify {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := c.Notify(nctx, r.Message); err != nil {
			r.NotifyErr = err
			c.logger.Printf("run %s: notification failed: %s", runID, err)
		}
	}
	return r
}

func (c *Client) reconcile(ctx context.Context) Result {
	addr, err := c.Resolve(ctx)
	addr = addr.Unmap()
	if err == nil && !addr.IsValid() {
		err = errors.New("resolver returned no address")
	}
	if err == nil && !addr.Is4() {
		// gateway networks are single IPv4 hosts
		err = fmt.Errorf("resolved address %s is not IPv4", addr)
	}
	if err != nil {
		return failed(&ResolutionError{Hostname: c.hostname, Err: err},
			fmt.Sprintf("Hostname error for %s: %s", c.hostname, err))
	}
	c.logger.Printf("resolved %s to %s", c.hostname, addr)

	if c.allow != nil && !c.allow.Allows(addr) {
		return Result{
			Kind:    Blocked,
			Message: fmt.Sprintf("DDNS IP %s is NOT in allowed prefixes.\nUpdate blocked.", addr),
			Notify:  true,
			Addr:    addr,
		}
	}

	loc, err := c.lookup.locate(ctx, c.LocationStore)
	if err != nil {
		var notFound *LocationNotFoundError
		if errors.As(err, &notFound) {
			return failed(err, fmt.Sprintf("Location '%s' not found", notFound.Name)).with(addr, "")
		}
		return failed(err, fmt.Sprintf("Error fetching Gateway location: %s", err)).with(addr, "")
	}
	current, err := loc.CurrentAddress()
	if err != nil {
		err = &RemoteFetchError{Err: err}
		return failed(err, fmt.Sprintf("Error fetching Gateway location: %s", err)).with(addr, "")
	}

	if current == addr.String() {
		return Result{
			Kind:     Unchanged,
			Message:  fmt.Sprintf("No update needed. DDNS IP (%s) matches Cloudflare Gateway IP.", addr),
			Notify:   c.notifyOnNoop,
			Addr:     addr,
			Previous: current,
		}
	}

	c.logger.Printf("updating location %s from %s to %s", loc.ID, current, addr)
	if err := c.lookup.update(ctx, c.LocationStore, loc, addr); err != nil {
		var rejected *RemoteUpdateError
		if errors.As(err, &rejected) && rejected.Rejected() {
			return failed(err, fmt.Sprintf("Failed to update Gateway IP!\n%s", rejected.Body)).with(addr, current)
		}
		return failed(err, fmt.Sprintf("Error updating Gateway IP: %s", err)).with(addr, current)
	}

	return Result{
		Kind:     Updated,
		Message:  fmt.Sprintf("Updated Gateway IP from %s → %s", current, addr),
		Notify:   true,
		Addr:     addr,
		Previous: current,
	}
}

type logf interface {
	Printf(string, ...any)
}

// minInterval is the shortest interval RunDaemon accepts.
var minInterval = 1 * time.Minute

// RunDaemon calls r.Reconcile immediately and then once per interval until ctx is done.
// Intervals shorter than one minute are raised to one minute.
//
// Each result is written to logger; a nil logger discards them.
// Runs never overlap: a slow run delays the next tick.
func RunDaemon(ctx context.Context, r Reconciler, interval time.Duration, logger logf) {
	if interval < minInterval {
		interval = minInterval
	}
	if logger == nil {
		logger = discard
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for ctx.Err() == nil {
		result := r.Reconcile(ctx)
		logger.Printf("gatewayip.RunDaemon: %s: %s", result.Kind, result.Message)
		if result.NotifyErr != nil {
			logger.Printf("gatewayip.RunDaemon: notification failed: %s", result.NotifyErr)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
