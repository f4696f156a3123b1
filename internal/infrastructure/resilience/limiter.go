package resilience

import "context"

// Limiter bounds the number of in-flight calls to an external service.
// One Limiter serves all evaluations of a stage cohort, so at no point
// do concurrent reasoning-service calls exceed the configured limit.
type Limiter struct {
	slots chan struct{}
}

func NewLimiter(maxConcurrent int) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Limiter{slots: make(chan struct{}, maxConcurrent)}
}

// Acquire blocks until a slot is free or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Release() {
	select {
	case <-l.slots:
	default:
	}
}

// InFlight reports the number of currently held slots.
func (l *Limiter) InFlight() int {
	return len(l.slots)
}
