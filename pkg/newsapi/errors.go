package newsapi

import (
	"errors"
	"fmt"
)

// ErrFetchFailed is matched by every FetchError. Callers treat all failure kinds alike.
var ErrFetchFailed = errors.New("fetch failed")

// Kind classifies why a fetch failed.
type Kind string

const (
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// FetchError describes a failed API call.
type FetchError struct {
	Kind   Kind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetchFailed) true for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }
