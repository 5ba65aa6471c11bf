package sync

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/luxfi/statespace/amm"
)

// Notification reports a Registry mutation the Synchronizer just
// applied (or reverted), per spec.md §4.7 step 4.
type Notification struct {
	BlockNumber uint64
	BlockHash   common.Hash
	Touched     []amm.ID
	// Reverted is true for the notification covering a rewound block
	// during reorg handling (spec.md §8 scenario 3).
	Reverted bool
}

// broadcaster fans Notifications out to subscribers without letting a
// slow subscriber block the Synchronizer's apply loop (spec.md §5
// "Backpressure"): a full subscriber channel has its oldest pending
// notification dropped non-blockingly and a per-subscriber counter
// incremented, rather than go-ethereum's event.Feed, whose Send
// blocks until every subscriber has received — exactly the behavior
// the spec prohibits here.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	onDrop func()
}

func newBroadcaster(onDrop func()) *broadcaster {
	return &broadcaster{subs: make(map[*Subscription]struct{}), onDrop: onDrop}
}

// subscription is the Receiver<StateChangeNotification> handle from
// spec.md §6.2.
type Subscription struct {
	ch      chan Notification
	dropped uint64
	mu      sync.Mutex
	b       *broadcaster
	closed  bool
}

// Chan returns the channel notifications arrive on.
func (s *Subscription) Chan() <-chan Notification { return s.ch }

// Dropped returns the count of notifications dropped for this
// subscriber due to backpressure, observable on next receive
// (spec.md §5).
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Unsubscribe stops delivery and closes the channel.
func (s *Subscription) Unsubscribe() {
	s.b.mu.Lock()
	delete(s.b.subs, s)
	s.b.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (b *broadcaster) subscribe(capacity int) *Subscription {
	if capacity <= 0 {
		capacity = 64
	}
	sub := &Subscription{ch: make(chan Notification, capacity), b: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *broadcaster) send(n Notification) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}
		select {
		case s.ch <- n:
		default:
			select {
			case <-s.ch:
				s.dropped++
				if b.onDrop != nil {
					b.onDrop()
				}
			default:
			}
			select {
			case s.ch <- n:
			default:
			}
		}
		s.mu.Unlock()
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
		s.mu.Unlock()
	}
}
