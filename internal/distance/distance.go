// Package distance resolves driving distances from the practice to an
// examination address. Results are cached on the address record by the
// caller, so each address hits the routing service at most once.
package distance

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the routing or geocoding service could not be
// reached or did not recognize the address. Callers fall back to a cached
// distance; without one the computation must fail rather than assume zero.
var ErrUnavailable = errors.New("distance service unavailable")

// Query is the destination address of a route lookup.
type Query struct {
	Street      string
	HouseNumber string
	PostalCode  string
	City        string
}

// Provider resolves the one-way driving distance in kilometers from the
// configured start address to the destination.
type Provider interface {
	RouteKm(ctx context.Context, q Query) (float64, error)
}

// Mock is a test implementation of Provider.
type Mock struct {
	RouteKmFunc func(ctx context.Context, q Query) (float64, error)
	Calls       int
}

func (m *Mock) RouteKm(ctx context.Context, q Query) (float64, error) {
	m.Calls++
	if m.RouteKmFunc != nil {
		return m.RouteKmFunc(ctx, q)
	}
	return 0, ErrUnavailable
}
