package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts time so rate limiting and throttle waits can be tested
// without real sleeps.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Limiter is the process-wide search request limiter. Requests are spaced
// evenly at 1/perSecond with no burst, so no rolling one-second window ever
// admits more than perSecond requests. The bucket starts empty: n requests
// take n/perSecond seconds, first one included.
type Limiter struct {
	lim   *rate.Limiter
	clock Clock
	mu    sync.Mutex
}

// NewLimiter creates a limiter admitting perSecond requests per second.
func NewLimiter(perSecond int, clock Clock) *Limiter {
	if perSecond <= 0 {
		perSecond = 1
	}
	if clock == nil {
		clock = RealClock()
	}
	lim := rate.NewLimiter(rate.Limit(perSecond), 1)
	lim.ReserveN(clock.Now(), 1)
	return &Limiter{lim: lim, clock: clock}
}

// Wait blocks until the caller may issue one request.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	now := l.clock.Now()
	r := l.lim.ReserveN(now, 1)
	delay := ceilMicro(r.DelayFrom(now))
	l.mu.Unlock()

	if err := l.clock.Sleep(ctx, delay); err != nil {
		r.CancelAt(l.clock.Now())
		return err
	}
	return nil
}

// ceilMicro rounds d up to a whole microsecond so float error in the token
// bucket never shortens the spacing below the configured rate.
func ceilMicro(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Microsecond - 1) / time.Microsecond) * time.Microsecond
}
