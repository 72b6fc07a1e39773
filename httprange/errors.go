package httprange

import (
	"fmt"
)

// Error is returned by [Client.Fetch] once every attempt at a ranged GET has
// failed. It records the range that was requested, the total number of
// attempts made, the HTTP status of the last response (0 if the last attempt
// never produced one), and the underlying cause.
type Error struct {
	URL        string
	Spec       Spec
	Attempts   int
	StatusCode int
	Err        error
}

func (e Error) Unwrap() error {
	return e.Err
}

func (e Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("range request %s to %s failed after %d attempt(s), last status: %d, cause: %v", e.Spec.Header(), e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("range request %s to %s failed after %d attempt(s), cause: %v", e.Spec.Header(), e.URL, e.Attempts, e.Err)
}
