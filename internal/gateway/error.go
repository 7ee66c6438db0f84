package gateway

import "net/http"

// Kind classifies a failed action for the HTTP surface and logging.
type Kind int

const (
	// KindValidation: bad payload shape or range; surfaced verbatim.
	KindValidation Kind = iota
	// KindConflict: the action is not valid in the current session state.
	KindConflict
	// KindNotFound: no session, track or index to act on.
	KindNotFound
	// KindUnavailable: the bot process cannot be reached.
	KindUnavailable
	// KindInternal: anything else; logged, generic message returned.
	KindInternal
)

// ControlError is the gateway's only failure type. Apply never lets any
// other error escape its boundary.
type ControlError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ControlError) Error() string { return e.Message }
func (e *ControlError) Unwrap() error { return e.Err }

// HTTPStatus maps an error kind to the status code the control server
// responds with.
func (e *ControlError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation, KindConflict:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationErr(msg string) *ControlError {
	return &ControlError{Kind: KindValidation, Message: msg}
}

func conflictErr(msg string) *ControlError {
	return &ControlError{Kind: KindConflict, Message: msg}
}

func notFoundErr(msg string) *ControlError {
	return &ControlError{Kind: KindNotFound, Message: msg}
}

func internalErr(err error) *ControlError {
	return &ControlError{Kind: KindInternal, Message: "Failed to control player", Err: err}
}
