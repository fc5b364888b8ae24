package errs

import "net/http"

var errorMap = map[int]CustomError{
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnsupportedType:   {Code: ErrUnsupportedType, Message: "Unsupported message type %q."},

	ErrGuestSessionNotFound:  {Code: ErrGuestSessionNotFound, Message: "No guest session found.", Status: http.StatusNotFound},
	ErrMergeInProgress:       {Code: ErrMergeInProgress, Message: "A cart merge is already in progress.", Status: http.StatusConflict},
	ErrCheckoutStateNotFound: {Code: ErrCheckoutStateNotFound, Message: "No saved checkout progress.", Status: http.StatusNotFound},

	ErrUnauthorized:  {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrDeviceMissing: {Code: ErrDeviceMissing, Message: "Device not recognised."},

	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageUnavailable:  {Code: ErrStorageUnavailable, Message: "Storage is temporarily unavailable.", Status: http.StatusServiceUnavailable},
	ErrUpstreamUnavailable: {Code: ErrUpstreamUnavailable, Message: "The store is temporarily unavailable.", Status: http.StatusBadGateway},
}
