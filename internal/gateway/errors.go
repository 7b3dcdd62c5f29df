package gateway

import "fmt"

// FetchError is returned for any non-2xx gateway response. It carries the
// status line and the raw body so the caller can decide whether the
// failure is fatal.
type FetchError struct {
	Status     int
	StatusText string
	Body       string
	URL        string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d %s", e.URL, e.Status, e.StatusText)
}

// IsFetchStatus reports whether err is a FetchError with the given status.
func IsFetchStatus(err error, status int) bool {
	fe, ok := err.(*FetchError)
	return ok && fe.Status == status
}
