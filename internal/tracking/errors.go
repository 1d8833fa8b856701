package tracking

import "fmt"

type Kind int

const (
	PermissionDenied Kind = iota + 1
	ProviderUnavailable
	PersistenceFailure
	IndicatorFailure
	ChannelError
)

func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case ProviderUnavailable:
		return "provider_unavailable"
	case PersistenceFailure:
		return "persistence_failure"
	case IndicatorFailure:
		return "indicator_failure"
	case ChannelError:
		return "channel_error"
	default:
		return "unknown"
	}
}

// Error is a lifecycle failure. Message is free text meant for the
// embedding application; Kind is the only structured part.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any Error of the same Kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrPermissionDenied    = &Error{Kind: PermissionDenied, Message: "location permission not granted"}
	ErrProviderUnavailable = &Error{Kind: ProviderUnavailable, Message: "location provider unavailable"}
	ErrPersistence         = &Error{Kind: PersistenceFailure, Message: "tracking intent not persisted"}
	ErrIndicator           = &Error{Kind: IndicatorFailure, Message: "tracking notification not published"}
)

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}
