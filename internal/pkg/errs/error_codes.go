package errs

// 1xxx: request handling
const (
	ErrInvalidParams     = 1001
	ErrInvalidJSONFormat = 1003
	ErrRateLimitExceeded = 1007
	ErrUnsupportedType   = 1008
)

// 2xxx: cart and checkout
const (
	ErrGuestSessionNotFound  = 2101
	ErrMergeInProgress       = 2102
	ErrCheckoutStateNotFound = 2201
)

// 3xxx: identity
const (
	ErrUnauthorized  = 3001
	ErrDeviceMissing = 3002
)

// 5xxx: internal
const (
	ErrUnknown             = 5000
	ErrStorageUnavailable  = 5001
	ErrUpstreamUnavailable = 5002
)
