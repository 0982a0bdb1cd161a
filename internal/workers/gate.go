package workers

import (
	"context"
	"errors"
	"sync"
)

// ErrGateClosed is returned by Acquire once the gate has been closed.
var ErrGateClosed = errors.New("workers: gate closed")

// Gate is a counting semaphore bounding how many callers may hold a permit
// at once. Permits are handed out as release functions so that a single
// deferred call returns them on every exit path.
type Gate struct {
	slots     chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewGate returns a gate admitting n concurrent holders. n below 1 is
// treated as 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{
		slots:  make(chan struct{}, n),
		closed: make(chan struct{}),
	}
}

// Acquire blocks until a permit is free, the context ends, or the gate is
// closed. The returned release function is idempotent.
//
//	release, err := gate.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer release()
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	select {
	case <-g.closed:
		return nil, ErrGateClosed
	default:
	}

	select {
	case g.slots <- struct{}{}:
		return g.releaser(), nil
	case <-g.closed:
		return nil, ErrGateClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryAcquire takes a permit only if one is free right now.
func (g *Gate) TryAcquire() (func(), bool) {
	select {
	case <-g.closed:
		return nil, false
	default:
	}
	select {
	case g.slots <- struct{}{}:
		return g.releaser(), true
	default:
		return nil, false
	}
}

func (g *Gate) releaser() func() {
	var once sync.Once
	return func() {
		once.Do(func() { <-g.slots })
	}
}

// InUse returns the number of permits currently held.
func (g *Gate) InUse() int {
	return len(g.slots)
}

// Capacity returns the maximum number of concurrent holders.
func (g *Gate) Capacity() int {
	return cap(g.slots)
}

// Close wakes every waiter with ErrGateClosed. Holders keep their permits
// until they release them.
func (g *Gate) Close() {
	g.closeOnce.Do(func() { close(g.closed) })
}
