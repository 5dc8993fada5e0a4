package errors

// Engine-level error taxonomy. Callers distinguish these with the Is*
// helpers rather than matching messages.
var (
	// ErrInvalidParameter indicates a structurally invalid submission
	// (e.g. a batch size of zero). Rejected synchronously; nothing is
	// persisted.
	ErrInvalidParameter = New("invalid parameter")

	// ErrBadRequest indicates a request that combines mutually exclusive
	// options (e.g. an id-scoped suspension with an explicit tenant
	// filter). Rejected synchronously.
	ErrBadRequest = New("bad request")

	// ErrConcurrentModification indicates an update against a stale
	// revision. The caller must re-read and retry.
	ErrConcurrentModification = New("concurrent modification")
)

// InvalidParameterf creates an invalid-parameter error with a formatted message.
func InvalidParameterf(format string, args ...interface{}) error {
	return Wrap(ErrInvalidParameter, Newf(format, args...).Error())
}

// BadRequestf creates a bad-request error with a formatted message.
func BadRequestf(format string, args ...interface{}) error {
	return Wrap(ErrBadRequest, Newf(format, args...).Error())
}

// IsInvalidParameterError checks if an error is or wraps ErrInvalidParameter.
func IsInvalidParameterError(err error) bool {
	return err != nil && Is(err, ErrInvalidParameter)
}

// IsBadRequestError checks if an error is or wraps ErrBadRequest.
func IsBadRequestError(err error) bool {
	return err != nil && Is(err, ErrBadRequest)
}

// IsConcurrentModificationError checks if an error is or wraps ErrConcurrentModification.
func IsConcurrentModificationError(err error) bool {
	return err != nil && Is(err, ErrConcurrentModification)
}
