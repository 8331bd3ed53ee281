package logsource

import "errors"

// ErrSourceUnavailable reports that the input stream could not be opened, is
// not authorized, or terminated. It is fatal to a session.
var ErrSourceUnavailable = errors.New("source unavailable")

// UnavailableError carries the source name and the underlying cause.
type UnavailableError struct {
	Source string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return "source unavailable: " + e.Source
	}
	return "source unavailable: " + e.Source + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSourceUnavailable) match any UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }

func unavailable(source string, err error) error {
	return &UnavailableError{Source: source, Err: err}
}

// IsSourceUnavailable reports whether err indicates an unusable input source.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}
