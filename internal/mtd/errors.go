package mtd

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnknownFileSize   = errors.New("mtd: remote file size is unknown")
	ErrMalformedTrailer  = errors.New("mtd: malformed meta trailer")
	ErrTrailerOverflow   = errors.New("mtd: meta does not fit the reserved trailer")
	ErrRangeNotSupported = errors.New("mtd: server does not support range requests")
	ErrSourceChanged     = errors.New("mtd: remote file changed since the download started")
	ErrIncomplete        = errors.New("mtd: all requests ended before the download completed")
)

// StatusError is returned by a Source when the remote answers with an
// unexpected status code.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.Code, http.StatusText(e.Code))
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests || e.Code == http.StatusRequestTimeout
}

// retryable decides whether the requester should try a failed thread again.
func retryable(err error) bool {
	if errors.Is(err, ErrRangeNotSupported) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
