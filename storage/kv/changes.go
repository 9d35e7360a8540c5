package kv

import (
	"context"
	"fmt"
	"sync"
)

// OpType is the kind of a change operation
type OpType int

const (
	// OpPut is a write of a key
	OpPut OpType = iota
	// OpDelete is a delete of a key
	OpDelete
)

func (t OpType) String() string {
	switch t {
	case OpPut:
		return "put"
	case OpDelete:
		return "del"
	}

	return fmt.Sprintf("OpType(%d)", int(t))
}

// Op is a single mutation of a store
type Op struct {
	Type  OpType
	Key   []byte
	Value []byte
}

// PutOp creates a put operation
func PutOp(key, value []byte) Op {
	return Op{Type: OpPut, Key: key, Value: value}
}

// DeleteOp creates a delete operation
func DeleteOp(key []byte) Op {
	return Op{Type: OpDelete, Key: key}
}

// Change is a group of operations applied to a store
// together. Non-batch changes always contain exactly
// one operation.
type Change struct {
	// Origin is copied from the context of the call
	// that caused the change. It is empty for untagged
	// calls.
	Origin string
	Batch  bool
	Ops    []Op
}

type originKey struct{}

// WithOrigin tags the context with an origin. Stores
// copy the origin into every change they publish for
// calls made with this context.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

// Origin extracts the origin from the context
func Origin(ctx context.Context) string {
	origin, _ := ctx.Value(originKey{}).(string)

	return origin
}

// Feed fans published changes out to its subscribers.
// Each subscriber has its own unbounded queue so a slow
// subscriber never blocks the writer or other subscribers.
type Feed struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	closed      bool
	err         error
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{subscribers: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. The subscription
// ends when ctx is done, when it is closed or when the
// feed is closed.
func (feed *Feed) Subscribe(ctx context.Context) *Subscription {
	subscription := &Subscription{
		feed:   feed,
		ctx:    ctx,
		notify: make(chan struct{}, 1),
	}

	feed.mu.Lock()
	defer feed.mu.Unlock()

	if feed.closed {
		subscription.closed = true
		subscription.err = feed.err

		return subscription
	}

	feed.subscribers[subscription] = struct{}{}

	return subscription
}

// Publish delivers the change to every current subscriber
func (feed *Feed) Publish(change Change) {
	feed.mu.Lock()
	defer feed.mu.Unlock()

	for subscription := range feed.subscribers {
		subscription.push(change)
	}
}

// Close ends every subscription. Subscribers still
// receive changes that were queued before Close.
func (feed *Feed) Close() {
	feed.CloseWithError(nil)
}

// CloseWithError is like Close except subscriptions
// report err from Error once their queue is drained.
func (feed *Feed) CloseWithError(err error) {
	feed.mu.Lock()
	defer feed.mu.Unlock()

	if feed.closed {
		return
	}

	feed.closed = true
	feed.err = err

	for subscription := range feed.subscribers {
		subscription.end(err)
		delete(feed.subscribers, subscription)
	}
}

func (feed *Feed) unsubscribe(subscription *Subscription) {
	feed.mu.Lock()
	defer feed.mu.Unlock()

	delete(feed.subscribers, subscription)
}

// Subscription is a stream of Change values
type Subscription struct {
	feed   *Feed
	ctx    context.Context
	notify chan struct{}

	mu     sync.Mutex
	queue  []Change
	closed bool
	value  interface{}
	err    error
}

func (subscription *Subscription) push(change Change) {
	subscription.mu.Lock()

	if subscription.closed {
		subscription.mu.Unlock()

		return
	}

	subscription.queue = append(subscription.queue, change)
	subscription.mu.Unlock()
	subscription.wake()
}

func (subscription *Subscription) end(err error) {
	subscription.mu.Lock()
	subscription.closed = true
	subscription.err = err
	subscription.mu.Unlock()
	subscription.wake()
}

func (subscription *Subscription) wake() {
	select {
	case subscription.notify <- struct{}{}:
	default:
	}
}

// Next blocks until the next change is available. It
// returns false once the subscription has ended.
func (subscription *Subscription) Next() bool {
	for {
		subscription.mu.Lock()

		if len(subscription.queue) > 0 {
			subscription.value = subscription.queue[0]
			subscription.queue[0] = Change{}
			subscription.queue = subscription.queue[1:]
			subscription.mu.Unlock()

			return true
		}

		if subscription.closed {
			subscription.value = nil
			subscription.mu.Unlock()

			return false
		}

		subscription.mu.Unlock()

		select {
		case <-subscription.notify:
		case <-subscription.ctx.Done():
			subscription.mu.Lock()
			subscription.err = subscription.ctx.Err()
			subscription.closed = true
			subscription.queue = nil
			subscription.value = nil
			subscription.mu.Unlock()
			subscription.feed.unsubscribe(subscription)

			return false
		}
	}
}

// Value returns the current Change or nil once
// the subscription has ended
func (subscription *Subscription) Value() interface{} {
	subscription.mu.Lock()
	defer subscription.mu.Unlock()

	return subscription.value
}

// Error returns the context error if the subscription
// ended because its context was done or the error the
// feed was closed with
func (subscription *Subscription) Error() error {
	subscription.mu.Lock()
	defer subscription.mu.Unlock()

	return subscription.err
}

// Close ends the subscription. Queued changes are
// discarded.
func (subscription *Subscription) Close() error {
	subscription.feed.unsubscribe(subscription)
	subscription.mu.Lock()
	subscription.closed = true
	subscription.queue = nil
	subscription.mu.Unlock()
	subscription.wake()

	return nil
}
