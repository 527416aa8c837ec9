package report

import "errors"

// Kind names the failure classes surfaced in the response envelope.
type Kind string

const (
	KindConfiguration  Kind = "ConfigurationError"
	KindAuthentication Kind = "AuthenticationError"
	KindUpstreamAPI    Kind = "UpstreamAPIError"
	KindRender         Kind = "RenderError"
	KindDelivery       Kind = "DeliveryError"
	KindUnexpected     Kind = "UnexpectedError"
)

// Error is a run failure tagged with its class. Per-account cost-fetch
// failures never become an Error; they are absorbed upstream as
// zero-cost rows.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

func classify(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf extracts the failure class from err, defaulting to
// KindUnexpected for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}
