// Package address verifies postal addresses against Nominatim before they
// are stored on a case.
package address

import "context"

// Status is the tri-state outcome of a verification.
type Status string

const (
	// StatusValid means the address was found and all fields match.
	StatusValid Status = "valid"

	// StatusInvalid means the address does not exist at all. Saving is
	// blocked.
	StatusInvalid Status = "invalid"

	// StatusUnavailable covers both an unreachable service and field
	// deviations. Saving proceeds with a visible warning.
	StatusUnavailable Status = "unavailable"
)

// Result carries the verification outcome and a user-facing message for
// the invalid and unavailable cases.
type Result struct {
	Status  Status
	Message string
}

// Verifier checks whether an address exists and matches what the geocoder
// knows about it.
type Verifier interface {
	Verify(ctx context.Context, street, houseNumber, postalCode, city string) Result
}

// Mock is a test implementation of Verifier.
type Mock struct {
	VerifyFunc func(ctx context.Context, street, houseNumber, postalCode, city string) Result
}

func (m *Mock) Verify(ctx context.Context, street, houseNumber, postalCode, city string) Result {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, street, houseNumber, postalCode, city)
	}
	return Result{Status: StatusValid}
}
