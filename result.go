package gatewayip

import "net/netip"

// Kind classifies the outcome of a reconciliation.
type Kind int

const (
	// Failed means a step returned an error; Result.Err holds it.
	Failed Kind = iota
	// Unchanged means the location already pointed at the resolved address.
	Unchanged
	// Updated means the location was changed to the resolved address.
	Updated
	// Blocked means the resolved address is outside the allow-list.
	// It is a deliberate halt rather than an error.
	Blocked
)

func (k Kind) String() string {
	switch k {
	case Failed:
		return "failed"
	case Unchanged:
		return "unchanged"
	case Updated:
		return "updated"
	case Blocked:
		return "blocked"
	}
	return "unknown"
}

// Result is the outcome of one call to Reconcile.
type Result struct {
	Kind    Kind
	Message string
	// Notify reports whether Message was sent to the notifier.
	Notify bool
	// NotifyErr is the delivery error, if any. It never changes Kind.
	NotifyErr error
	// Addr is the resolved address, if resolution succeeded.
	Addr netip.Addr
	// Previous is the location's address before the run, if it was read.
	Previous string
	Err      error
	RunID    string
}

func (r Result) String() string { return r.Message }

func failed(err error, msg string) Result {
	return Result{Kind: Failed, Message: msg, Notify: true, Err: err}
}

func (r Result) with(addr netip.Addr, previous string) Result {
	r.Addr, r.Previous = addr, previous
	return r
}
