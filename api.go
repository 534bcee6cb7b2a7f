package gatewayip

import (
	"context"
	"net/netip"
)

// Resolver looks up the address the gateway location should point to.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// LocationStore reads and writes gateway location records.
type LocationStore interface {
	Location(ctx context.Context, id string) (Location, error)
	Locations(ctx context.Context) ([]Location, error)
	// PatchNetworks replaces only the networks of the location.
	PatchNetworks(ctx context.Context, id string, networks []string) error
	// ReplaceLocation submits the full record.
	ReplaceLocation(ctx context.Context, loc Location) error
}

// Notifier delivers a status message to a human.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifierFunc adapts an ordinary function to the Notifier interface.
type NotifierFunc func(ctx context.Context, text string) error

func (f NotifierFunc) Notify(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Reconciler is implemented by *Client.
type Reconciler interface {
	Reconcile(ctx context.Context) Result
}
