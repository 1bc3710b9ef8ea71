package reconcile

import "errors"

var (
	// Mapping errors. A mapping failure aborts the operation before any write.
	ErrNoItems           = errors.New("reconcile: order items missing or malformed")
	ErrInvalidCompanyRef = errors.New("reconcile: company external id is not numeric")
	ErrNoShippingAddress = errors.New("reconcile: no shipping address on incoming company")

	// Lookup-miss. Treated as a soft no-op by callers, not a failure.
	ErrCompanyNotFound = errors.New("reconcile: company not found in CRM")
)
