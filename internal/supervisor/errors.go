package supervisor

import "fmt"

// configurationError signals settings that make a start impossible, e.g. an
// external provider without an API key. No process is spawned.
type configurationError struct {
	slot string
	msg  string
}

func (e configurationError) Error() string { return e.slot + ": configuration error: " + e.msg }

// ErrConfiguration constructs a configurationError.
func ErrConfiguration(slot, format string, args ...any) error {
	return configurationError{slot: slot, msg: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	_, ok := err.(configurationError)
	return ok
}

// spawnError signals that the server could not be brought to readiness:
// missing binary, failed launch, exit before ready, timeout or cancellation.
type spawnError struct {
	slot  string
	msg   string
	cause error
}

func (e spawnError) Error() string {
	if e.cause != nil {
		return e.slot + ": " + e.msg + ": " + e.cause.Error()
	}
	return e.slot + ": " + e.msg
}

func (e spawnError) Unwrap() error { return e.cause }

// IsSpawn reports whether err is a spawn error.
func IsSpawn(err error) bool {
	_, ok := err.(spawnError)
	return ok
}

// invalidRequestError signals a malformed start request (e.g. empty model path).
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

// IsInvalidRequest reports whether err is an invalid request error.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// unknownSlotError is returned by the registry for unregistered slot names.
type unknownSlotError struct{ name string }

func (e unknownSlotError) Error() string { return "unknown slot: " + e.name }

// ErrUnknownSlot constructs an unknownSlotError.
func ErrUnknownSlot(name string) error { return unknownSlotError{name: name} }

// IsUnknownSlot reports whether err names an unregistered slot.
func IsUnknownSlot(err error) bool {
	_, ok := err.(unknownSlotError)
	return ok
}
