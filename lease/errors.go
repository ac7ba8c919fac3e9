package lease

import "errors"

var (
	// ErrLeaseNotActive is returned when operating on a lease which has been deleted or released (or never existed)
	ErrLeaseNotActive = errors.New("lease is not active")
	// ErrLeaseCeiling is returned when a lease cannot be extended without exceeding the max lease
	ErrLeaseCeiling = errors.New("lease has reached the max lease duration")
)
