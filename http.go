package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the JSON body written for failed requests
type ErrorResponse struct {
	Error      string            `json:"error"`
	TextCode   string            `json:"text_code,omitempty"`
	Validation map[string]string `json:"validation,omitempty"`
}

// NewErrorResponse builds the public view of err. Internal failures never
// leak their message.
func NewErrorResponse(err error) (int, ErrorResponse) {
	status := HTTPStatus(err)
	body := ErrorResponse{Error: http.StatusText(status)}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return status, body
	}

	body.TextCode = richErr.TextCode
	if status < http.StatusInternalServerError {
		body.Error = richErr.Message
		body.Validation = richErr.ValidationMap()
	}

	return status, body
}

// JSONErrorHandler returns a router error handler that renders rich errors
// as ErrorResponse payloads.
func JSONErrorHandler(logger Logger, debug bool) func(router.Context, error) error {
	logger = normalizeLogger(logger)
	return func(c router.Context, err error) error {
		status, body := NewErrorResponse(err)

		if status >= http.StatusInternalServerError {
			logger.Error("request failed: %v", err)
		} else if debug {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				logger.Debug("request rejected: %s", print.MaybePrettyJSON(richErr))
			}
		}

		return c.JSON(status, body)
	}
}

// PermissionRequired rejects requests whose subject does not hold perm.
// The subject is read from the router locals set by the subject middleware.
func PermissionRequired(perm Permission, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = JSONErrorHandler(nil, false)
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			subject, _ := SubjectFromRouter(c, "")
			if err := Authorize(subject, perm); err != nil {
				return errorHandler(c, err)
			}
			return next(c)
		}
	}
}

// AuthenticationRequired rejects anonymous subjects
func AuthenticationRequired(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = JSONErrorHandler(nil, false)
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			subject, _ := SubjectFromRouter(c, "")
			if err := RequireAuthenticated(subject); err != nil {
				return errorHandler(c, err)
			}
			return next(c)
		}
	}
}

// ConfirmationRequired rejects anonymous subjects and accounts that have
// not been confirmed yet.
func ConfirmationRequired(errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = JSONErrorHandler(nil, false)
	}
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			subject, _ := SubjectFromRouter(c, "")
			if err := RequireAuthenticated(subject); err != nil {
				return errorHandler(c, err)
			}
			if err := RequireConfirmed(subject); err != nil {
				return errorHandler(c, err)
			}
			return next(c)
		}
	}
}
