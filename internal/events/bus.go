// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-process broadcast bus carrying span
// notifications from the ingestion path to WebSocket sessions, and the wire
// envelopes exchanged over those sessions.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// SubscriberCapacity is the bounded inbox size of each subscriber.
const SubscriberCapacity = 100

// ErrClosed is returned by Recv after the bus has been closed and the
// subscriber's inbox has drained. Every subsequent Recv keeps returning it.
var ErrClosed = errors.New("event bus closed")

// LagError signals that the subscriber's inbox overflowed and Missed
// messages were dropped. The next Recv resumes with the buffered messages.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("subscriber lagged behind by %d messages", e.Missed)
}

// Bus fans out ServerMessages to all current subscribers. Publishing never
// blocks: a subscriber whose inbox is full loses the message and is told so
// through a LagError. Delivery is at-most-once; the store holds the
// authoritative state.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new subscriber with an empty inbox. Messages
// published before the subscription are not observed.
func (b *Bus) Subscribe() *Subscriber {
	s := &Subscriber{
		bus: b,
		ch:  make(chan ServerMessage, SubscriberCapacity),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers msg to every subscriber that has room in its inbox and
// bumps the lag counter of every one that does not. Publishing to a bus
// with no subscribers is a no-op.
func (b *Bus) Publish(msg ServerMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- msg:
		default:
			s.missed.Add(1)
		}
	}
}

// Close signals ErrClosed to all subscribers once their inboxes drain.
// Further publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}

func (b *Bus) unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; !ok {
		return
	}
	delete(b.subs, s)
	close(s.ch)
}

// Subscriber receives broadcast messages through a bounded inbox.
type Subscriber struct {
	bus    *Bus
	ch     chan ServerMessage
	missed atomic.Uint64
}

// Recv returns the next message in publish order. When messages were dropped
// since the last call it returns a *LagError carrying the count instead, and
// the following call resumes with the oldest buffered message. After the bus
// closes it returns ErrClosed.
func (s *Subscriber) Recv(ctx context.Context) (ServerMessage, error) {
	if n := s.missed.Swap(0); n > 0 {
		return ServerMessage{}, &LagError{Missed: n}
	}
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return ServerMessage{}, ErrClosed
		}
		return msg, nil
	case <-ctx.Done():
		return ServerMessage{}, ctx.Err()
	}
}

// Close detaches the subscriber from the bus.
func (s *Subscriber) Close() {
	s.bus.unsubscribe(s)
}
