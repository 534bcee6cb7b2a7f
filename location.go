package gatewayip

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Location is a gateway location record.
type Location struct {
	ID            string
	Name          string
	Networks      []string // CIDR notation, e.g. "203.0.113.7/32"
	ClientDefault bool
}

// CurrentAddress returns the address portion of the first network.
func (l Location) CurrentAddress() (string, error) {
	if len(l.Networks) == 0 || l.Networks[0] == "" {
		return "", fmt.Errorf("location %s has no networks", l.ID)
	}
	addr, _, _ := strings.Cut(l.Networks[0], "/")
	return addr, nil
}

// hostNetwork formats addr as a single-host network.
func hostNetwork(addr netip.Addr) string {
	return netip.PrefixFrom(addr, addr.BitLen()).String()
}

type lookupKind int

const (
	byID lookupKind = iota + 1
	byName
)

// Lookup selects how the gateway location is found and how it is updated.
// Construct one with ByID or ByName.
type Lookup struct {
	kind  lookupKind
	value string
}

// ByID fetches the location directly by its identifier
// and updates it with a partial patch of its networks.
func ByID(id string) Lookup {
	return Lookup{kind: byID, value: id}
}

// ByName searches all locations for the one named name
// and updates it by replacing the full record.
// Names are compared after trimming surrounding whitespace.
func ByName(name string) Lookup {
	return Lookup{kind: byName, value: strings.TrimSpace(name)}
}

func (l Lookup) String() string {
	switch l.kind {
	case byID:
		return "id " + l.value
	case byName:
		return "name " + l.value
	}
	return "invalid lookup"
}

func (l Lookup) validate() error {
	if l.kind != byID && l.kind != byName {
		return errors.New("lookup must be constructed with ByID or ByName")
	}
	if l.value == "" {
		return fmt.Errorf("lookup by %s cannot be empty", l)
	}
	return nil
}

func (l Lookup) locate(ctx context.Context, store LocationStore) (Location, error) {
	if l.kind == byID {
		return store.Location(ctx, l.value)
	}
	locations, err := store.Locations(ctx)
	if err != nil {
		return Location{}, err
	}
	for _, loc := range locations {
		if strings.TrimSpace(loc.Name) == l.value {
			return loc, nil
		}
	}
	return Location{}, &LocationNotFoundError{Name: l.value}
}

func (l Lookup) update(ctx context.Context, store LocationStore, loc Location, addr netip.Addr) error {
	network := hostNetwork(addr)
	if l.kind == byID {
		return store.PatchNetworks(ctx, l.value, []string{network})
	}
	return store.ReplaceLocation(ctx, Location{
		ID:            loc.ID,
		Name:          loc.Name,
		Networks:      []string{network},
		ClientDefault: loc.ClientDefault,
	})
}
