package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/btree"
)

type entry struct {
	message Message
	seq     uint64
}

// OrderedQueue hands out messages oldest timestamp first. Messages stamped
// with the same time leave in the order they were enqueued.
//
// Any number of goroutines may enqueue; Wait expects a single consumer.
type OrderedQueue struct {
	mu      sync.Mutex
	entries *btree.BTreeG[entry]
	seq     uint64
	signal  chan struct{}
}

func NewOrderedQueue() *OrderedQueue {
	less := func(a, b entry) bool {
		if !a.message.Timestamp.Equal(b.message.Timestamp) {
			return a.message.Timestamp.Before(b.message.Timestamp)
		}
		return a.seq < b.seq
	}
	return &OrderedQueue{
		entries: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
		signal:  make(chan struct{}, 1),
	}
}

func (q *OrderedQueue) Enqueue(message Message) error {
	if message.Header == "" {
		return fmt.Errorf("%w: empty header", ErrInvalidMessage)
	}

	q.mu.Lock()
	q.seq++
	q.entries.Set(entry{message: message, seq: q.seq})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the oldest message without blocking.
func (q *OrderedQueue) Dequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries.PopMin()
	return e.message, ok
}

// Wait blocks until a message is available or ctx is done.
func (q *OrderedQueue) Wait(ctx context.Context) (Message, error) {
	for {
		if message, ok := q.Dequeue(); ok {
			return message, nil
		}
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-q.signal:
		}
	}
}

func (q *OrderedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}
