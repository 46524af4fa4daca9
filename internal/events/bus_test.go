// Copyright (c) 2024 The FPX Authors.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpx-io/fpx/internal/model"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func spanAdded(i int) ServerMessage {
	return NewSpanAddedMessage("0102030405060708090a0b0c0d0e0f10", model.SpanID(fmt.Sprintf("%016x", i)))
}

func TestPublishOrderPreserved(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	for i := 0; i < 10; i++ {
		bus.Publish(spanAdded(i))
	}
	for i := 0; i < 10; i++ {
		msg, err := sub.Recv(testCtx(t))
		require.NoError(t, err)
		assert.Equal(t, spanAdded(i), msg)
	}
}

func TestSubscribeAfterPublishMissesMessage(t *testing.T) {
	bus := NewBus()
	bus.Publish(spanAdded(0)) // no subscribers, must not fail

	sub := bus.Subscribe()
	defer sub.Close()
	bus.Publish(spanAdded(1))

	msg, err := sub.Recv(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, spanAdded(1), msg)
}

func TestSlowSubscriberLags(t *testing.T) {
	bus := NewBus()
	slow := bus.Subscribe()
	defer slow.Close()
	fast := bus.Subscribe()
	defer fast.Close()

	// The fast subscriber reads as messages come in and sees every one in
	// order; the slow subscriber does not read at all.
	for i := 0; i < SubscriberCapacity+1; i++ {
		bus.Publish(spanAdded(i))
		msg, err := fast.Recv(testCtx(t))
		require.NoError(t, err)
		require.Equal(t, spanAdded(i), msg)
	}

	// The slow subscriber's inbox held 100 messages when the 101st was
	// published: exactly one Lagged(1) on its next receive, then the
	// buffered backlog.
	_, err := slow.Recv(testCtx(t))
	var lagErr *LagError
	require.ErrorAs(t, err, &lagErr)
	assert.EqualValues(t, 1, lagErr.Missed)

	for i := 0; i < SubscriberCapacity; i++ {
		msg, err := slow.Recv(testCtx(t))
		require.NoError(t, err)
		require.Equal(t, spanAdded(i), msg)
	}
}

func TestCloseSignalsSubscribers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Publish(spanAdded(0))
	bus.Close()

	// Buffered message drains first, then Closed, repeatedly.
	msg, err := sub.Recv(testCtx(t))
	require.NoError(t, err)
	assert.Equal(t, spanAdded(0), msg)

	_, err = sub.Recv(testCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = sub.Recv(testCtx(t))
	assert.ErrorIs(t, err, ErrClosed)

	// Publishing and closing again are no-ops.
	bus.Publish(spanAdded(1))
	bus.Close()
}

func TestSubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()
	sub := bus.Subscribe()
	_, err := sub.Recv(testCtx(t))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecvHonorsContext(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sub.Recv(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
