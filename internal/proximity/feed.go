package proximity

import (
	"context"
	"sync"
)

// FeedSource is a LocationSource driven by Push calls, for positions that
// arrive from outside the process such as a device posting over HTTP.
// Push delivers synchronously, so events are observable when it returns.
type FeedSource struct {
	mu       sync.Mutex
	nextID   int
	handlers map[int]func(Sample)
}

// NewFeedSource creates a feed with no subscribers.
func NewFeedSource() *FeedSource {
	return &FeedSource{handlers: make(map[int]func(Sample))}
}

// Subscribe registers onSample until the subscription is cancelled or ctx is done.
func (f *FeedSource) Subscribe(ctx context.Context, _ SubscribeOptions, onSample func(Sample)) (Subscription, error) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.handlers[id] = onSample
	f.mu.Unlock()

	sub := &feedSubscription{feed: f, id: id, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Push delivers s to every current subscriber and returns how many received it.
func (f *FeedSource) Push(s Sample) int {
	f.mu.Lock()
	handlers := make([]func(Sample), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(s)
	}
	return len(handlers)
}

// Subscribers returns the number of active subscriptions.
func (f *FeedSource) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type feedSubscription struct {
	feed *FeedSource
	id   int
	once sync.Once
	done chan struct{}
}

func (s *feedSubscription) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.handlers, s.id)
		s.feed.mu.Unlock()
		close(s.done)
	})
}
