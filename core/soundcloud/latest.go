package soundcloud

import (
	"context"
	"sync"
)

// Latest allows one in-flight request at a time. Starting a request cancels
// the previous one, and a request that finishes after being replaced reports
// ErrSuperseded instead of its result.
type Latest struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Do runs fn with a context that is cancelled when a newer Do starts or when
// Cancel is called.
func (l *Latest) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	seq := l.seq
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	err := fn(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	cancel()
	if seq != l.seq {
		return ErrSuperseded
	}
	l.cancel = nil
	return err
}

// Cancel aborts the in-flight request, if any.
func (l *Latest) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
}
