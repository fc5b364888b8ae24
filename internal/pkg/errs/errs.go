/*
Package errs defines the coded, user-facing errors the gateway sends to
storefront clients over HTTP and the websocket.
*/
package errs

import (
	"fmt"
	"net/http"
	"strings"

	"redbead/internal/pkg/logx"
)

// CustomError carries a business code, a client-safe message and the HTTP
// status to answer with.
type CustomError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e CustomError) Error() string {
	return fmt.Sprintf("error code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// NewError builds the error registered for code. Details are applied to the
// message template when it has printf verbs. Unknown codes fall back to
// ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]
	if !ok {
		logx.Warn("unknown error code requested", "requested_code", code)
		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr
	if customErr.Status == 0 {
		customErr.Status = http.StatusBadRequest
	}

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			logx.Error(originalErr, "handling ErrUnknown with underlying error")
		}
	} else if len(details) > 0 && strings.Contains(customErr.Message, "%") {
		customErr.Message = fmt.Sprintf(customErr.Message, details...)
	}

	return &customErr
}
