package rate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited matches every *LimitError.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter store failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)

// LimitError reports which counter tripped and how long its window has left.
type LimitError struct {
	Scope      Scope
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	if e.RetryAfter <= 0 {
		return fmt.Sprintf("rate limited by %s", e.Scope)
	}
	return fmt.Sprintf("rate limited by %s, retry in %s", e.Scope, e.RetryAfter.Round(time.Second))
}

func (e *LimitError) Is(target error) bool {
	return target == ErrRateLimited
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
