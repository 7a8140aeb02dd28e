package gateway

import (
	"context"
	"sync"
)

// Notifier fans out "the collection of this user changed" signals. Signals
// carry no payload; listeners refetch. Bursts may be coalesced into one
// signal, never dropped entirely.
type Notifier interface {
	Notify(ctx context.Context, userID string) error
	Listen(ctx context.Context, userID string) (<-chan struct{}, func(), error)
}

// LocalNotifier delivers signals between goroutines of one process.
type LocalNotifier struct {
	mu        sync.RWMutex
	listeners map[string]map[chan struct{}]struct{}
}

// NewLocalNotifier creates an empty in-process notifier.
func NewLocalNotifier() *LocalNotifier {
	return &LocalNotifier{
		listeners: make(map[string]map[chan struct{}]struct{}),
	}
}

// Notify signals every listener of userID without blocking.
func (n *LocalNotifier) Notify(_ context.Context, userID string) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners[userID] {
		signal(ch)
	}
	return nil
}

// Listen registers a listener for userID. The returned stop function
// unregisters it and closes the channel.
func (n *LocalNotifier) Listen(_ context.Context, userID string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	if n.listeners[userID] == nil {
		n.listeners[userID] = make(map[chan struct{}]struct{})
	}
	n.listeners[userID][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()

			delete(n.listeners[userID], ch)
			if len(n.listeners[userID]) == 0 {
				delete(n.listeners, userID)
			}
			close(ch)
		})
	}

	return ch, stop, nil
}

// ListenerCount returns how many listeners are registered for userID.
func (n *LocalNotifier) ListenerCount(userID string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners[userID])
}

// signal does a non-blocking send on a one-slot channel; a pending signal
// already covers the new one.
func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
