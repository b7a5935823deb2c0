package client

import "fmt"

// StateError reports an operation that is illegal in the client's
// current state. It is raised locally, before any I/O: the server would
// reject the call anyway, and catching it here costs no round trip.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("client: %s is not legal in state %s", e.Op, e.State)
}

// ServerError carries a rejection from the server, e.g. a config
// validation failure. The client's state is unchanged by the failed
// call.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server: %s", e.Message)
}

// RecordingError reports a persistence failure in the attached
// recorder. It is distinct from stream errors so callers can keep
// streaming without recording, or abort, as they prefer.
type RecordingError struct {
	Err error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording failed: %v", e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }
