package throttle

import (
	"time"

	"golang.org/x/time/rate"
)

// Option configures a throttled function.
type Option func(*settings)

type settings struct {
	now func() time.Time
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// Func wraps fn so it runs at most once per interval. Calls arriving inside the
// interval are dropped. The first call always runs. A non-positive interval disables throttling.
func Func[T any](interval time.Duration, fn func(T), opts ...Option) func(T) {
	if interval <= 0 {
		return fn
	}

	s := settings{now: time.Now}
	for _, opt := range opts {
		opt(&s)
	}

	limiter := rate.NewLimiter(rate.Every(interval), 1)
	return func(v T) {
		if limiter.AllowN(s.now(), 1) {
			fn(v)
		}
	}
}
