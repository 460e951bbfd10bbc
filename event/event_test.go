// Copyright 2024 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/fennec/event"
)

const (
	blockTopic        = event.EventType("ledger.block")
	registrationTopic = event.EventType("ledger.registration")
	updateTopic       = event.EventType("ledger.update")

	recvTimeout = time.Second
)

// recv waits for one event on ch and fails the test on timeout or a closed
// channel.
func recv(t *testing.T, ch <-chan event.Event) event.Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if !ok {
			t.Fatal("subscriber channel closed while waiting for an event")
		}
		return evt
	case <-time.After(recvTimeout):
		t.Fatal("timeout waiting for event")
	}
	return event.Event{}
}

func TestPublishReachesSubscriber(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, ch := eb.Subscribe(blockTopic)
	eb.Publish(blockTopic, event.NewEvent(blockTopic, uint64(42)))

	evt := recv(t, ch)
	assert.Equal(t, blockTopic, evt.Type)
	require.Equal(t, uint64(42), evt.Data)
}

func TestPublishFansOutToAllSubscribers(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	_, ch1 := eb.Subscribe(registrationTopic)
	_, ch2 := eb.Subscribe(registrationTopic)
	_, otherCh := eb.Subscribe(updateTopic)

	eb.Publish(registrationTopic, event.NewEvent(registrationTopic, "squirrel"))

	for _, ch := range []<-chan event.Event{ch1, ch2} {
		evt := recv(t, ch)
		assert.Equal(t, "squirrel", evt.Data)
	}

	// The update subscriber shares the bus but not the topic
	select {
	case evt := <-otherCh:
		t.Fatalf("unexpected event on unrelated topic: %v", evt)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	id, ch := eb.Subscribe(updateTopic)
	eb.Unsubscribe(updateTopic, id)

	// Anything published now must not reach the closed subscriber
	eb.Publish(updateTopic, event.NewEvent(updateTopic, "dropped"))

	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected a closed channel, got an event")
	case <-time.After(recvTimeout):
		t.Fatal("subscriber channel not closed after Unsubscribe")
	}
}

func TestStopShutsDownAndAllowsReuse(t *testing.T) {
	eb := event.NewEventBus(nil, nil)

	_, ch := eb.Subscribe(blockTopic)
	var handled atomic.Int32
	require.NotZero(t, eb.SubscribeFunc(blockTopic, func(event.Event) {
		handled.Add(1)
	}))

	eb.Publish(blockTopic, event.NewEvent(blockTopic, "before"))
	recv(t, ch)
	require.Eventually(t, func() bool {
		return handled.Load() == 1
	}, recvTimeout, 5*time.Millisecond,
		"handler should see the event published before Stop",
	)

	eb.Stop()

	// The channel subscriber is closed once any buffered events are drained
	deadline := time.After(recvTimeout)
	for open := true; open; {
		select {
		case _, ok := <-ch:
			open = ok
		case <-deadline:
			t.Fatal("subscriber channel not closed by Stop")
		}
	}

	// Handlers are detached, so publishing now must not reach the old func
	eb.Publish(blockTopic, event.NewEvent(blockTopic, "ignored"))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), handled.Load(), "handler ran after Stop")

	// A stopped bus accepts new subscribers
	_, ch2 := eb.Subscribe(blockTopic)
	eb.Publish(blockTopic, event.NewEvent(blockTopic, "again"))
	evt := recv(t, ch2)
	assert.Equal(t, "again", evt.Data)

	eb.Stop()
	select {
	case _, ok := <-ch2:
		assert.False(t, ok, "second Stop should close the new subscriber channel")
	case <-time.After(recvTimeout):
		t.Fatal("new subscriber channel not closed by second Stop")
	}
}

func TestSubscribeFuncSurvivesPanic(t *testing.T) {
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()

	var calls atomic.Int32
	eb.SubscribeFunc(registrationTopic, func(event.Event) {
		if calls.Add(1) == 1 {
			panic("handler blew up")
		}
	})

	// The first event panics inside the handler, the second must still be
	// processed by the same subscription
	eb.Publish(registrationTopic, event.NewEvent(registrationTopic, 1))
	eb.Publish(registrationTopic, event.NewEvent(registrationTopic, 2))

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond,
		"handler should keep receiving events after a panic",
	)
}
