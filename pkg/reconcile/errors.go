package reconcile

import "errors"

// ErrBadSecret is returned by Ingest when the callback secret matches no
// known backend identity. The job store is never touched before this
// check passes.
var ErrBadSecret = errors.New("callback secret not recognized")

// ValidationError marks a malformed callback payload
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
