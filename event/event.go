// Copyright 2025 Blink Labs Software
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

package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 4
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

// Subscriber receives events on behalf of one subscription. The bus ships
// events to in-memory channels and to network adapters through the same
// interface. Close must be idempotent.
type Subscriber interface {
	Deliver(Event) error
	Close()
}

// channelSubscriber adapts a buffered channel to the Subscriber interface.
// Deliver never blocks: a full buffer drops the event, since a blocking send
// under the bus read lock would deadlock against Close.
type channelSubscriber struct {
	ch     chan Event
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

func newChannelSubscriber(buffer int, logger *slog.Logger) *channelSubscriber {
	return &channelSubscriber{
		ch:     make(chan Event, buffer),
		logger: logger,
	}
}

func (c *channelSubscriber) Deliver(evt Event) (err error) {
	c.mu.RLock()
	if c.closed {
		// Events for a closed subscriber are silently dropped
		c.mu.RUnlock()
		return nil
	}
	// Hold the read lock through the send so Close waits for in-flight
	// deliveries before closing the channel
	defer c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel deliver panic: %v", r)
		}
	}()

	select {
	case c.ch <- evt:
	default:
		// Full buffer, drop the event instead of stalling the publisher
		// behind a slow consumer
		if c.logger != nil {
			c.logger.Debug(
				"subscriber buffer full, dropping event",
				"type", evt.Type,
			)
		}
	}
	return nil
}

func (c *channelSubscriber) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// subscriberKind labels a subscriber for metrics
func subscriberKind(sub Subscriber) string {
	if _, ok := sub.(*channelSubscriber); ok {
		return "in-memory"
	}
	return "remote"
}

// asyncEvent pairs an event with its type for the async queue
type asyncEvent struct {
	eventType EventType
	event     Event
}

type EventBus struct {
	logger      *slog.Logger
	metrics     *eventMetrics
	mu          sync.RWMutex
	subscribers map[EventType]map[EventSubscriberId]Subscriber
	lastSubId   EventSubscriberId

	// Async delivery pool
	asyncQueue   chan asyncEvent
	asyncWg      sync.WaitGroup
	subscriberWg sync.WaitGroup
	stopCh       chan struct{}
	stopped      bool
	stopMu       sync.RWMutex
	stopOpMu     sync.Mutex // serializes Stop
}

// NewEventBus creates an EventBus and starts its async worker pool. A nil
// logger is replaced with a discard handler.
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]Subscriber),
		logger:      logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

// asyncWorker drains the async queue until Stop
func (e *EventBus) asyncWorker() {
	defer e.asyncWg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case ae, ok := <-e.asyncQueue:
			if !ok {
				return
			}
			e.Publish(ae.eventType, ae.event)
		}
	}
}

// addSubscriber assigns the next subscriber id and files sub under the
// event type
func (e *EventBus) addSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSubId++
	subId := e.lastSubId
	typeSubs, ok := e.subscribers[eventType]
	if !ok {
		typeSubs = make(map[EventSubscriberId]Subscriber)
		e.subscribers[eventType] = typeSubs
	}
	typeSubs[subId] = sub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(
			string(eventType), subscriberKind(sub),
		).Inc()
	}
	return subId
}

// Subscribe registers a channel-backed consumer for one event type. Events
// arrive on the returned channel, which is closed by Unsubscribe or Stop
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	chSub := newChannelSubscriber(EventQueueSize, e.logger)
	subId := e.addSubscriber(eventType, chSub)
	return subId, chSub.ch
}

// RegisterSubscriber attaches a custom Subscriber implementation, typically
// a network-backed adapter, and returns the assigned subscriber id
func (e *EventBus) RegisterSubscriber(
	eventType EventType,
	sub Subscriber,
) EventSubscriberId {
	return e.addSubscriber(eventType, sub)
}

// SubscribeFunc registers a callback for one event type and returns the
// subscriber id, or 0 when the bus is in the middle of shutting down. Panics
// inside the handler are recovered and logged so one bad event cannot kill
// the delivery goroutine.
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	// Holding the stop lock through the WaitGroup add keeps Stop from
	// starting its Wait between the stopped check and the goroutine launch
	e.stopMu.RLock()
	if e.stopped {
		e.stopMu.RUnlock()
		return 0
	}
	subId, evtCh := e.Subscribe(eventType)
	e.subscriberWg.Add(1)
	e.stopMu.RUnlock()
	go func() {
		defer e.subscriberWg.Done()
		for evt := range evtCh {
			e.callHandler(eventType, handlerFunc, evt)
		}
	}()
	return subId
}

// callHandler invokes a subscriber callback with panic recovery
func (e *EventBus) callHandler(
	eventType EventType,
	handlerFunc EventHandlerFunc,
	evt Event,
) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn(
				"event handler panic",
				"type", eventType,
				"panic", r,
			)
		}
	}()
	handlerFunc(evt)
}

// Unsubscribe removes a subscription and closes its subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var removed Subscriber
	if typeSubs, ok := e.subscribers[eventType]; ok {
		if sub, ok := typeSubs[subId]; ok {
			removed = sub
			delete(typeSubs, subId)
			if len(typeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(
					string(eventType), subscriberKind(sub),
				).Dec()
			}
		}
	}
	e.mu.Unlock()

	// Close outside the lock, Deliver implementations may be mid-flight
	if removed != nil {
		removed.Close()
	}
}

// Publish sends an event to every subscriber of its type. A subscriber whose
// Deliver returns an error is unregistered.
func (e *EventBus) Publish(eventType EventType, evt Event) {
	type target struct {
		id  EventSubscriberId
		sub Subscriber
	}

	// Snapshot the subscriber set under the read lock, delivery happens
	// outside it so a failing subscriber can be unsubscribed inline
	e.mu.RLock()
	targets := make([]target, 0, len(e.subscribers[eventType]))
	for id, sub := range e.subscribers[eventType] {
		targets = append(targets, target{id: id, sub: sub})
	}
	e.mu.RUnlock()

	for _, tgt := range targets {
		err := e.deliver(tgt.sub, evt)
		if err == nil {
			continue
		}
		e.Unsubscribe(eventType, tgt.id)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(
				string(eventType), subscriberKind(tgt.sub),
			).Inc()
		}
		e.logger.Debug(
			"event delivery error",
			"type", eventType,
			"err", err,
		)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// deliver hands one event to one subscriber, converting a panic inside the
// Deliver implementation into an error
func (e *EventBus) deliver(sub Subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber deliver panic: %v", r)
		}
	}()
	return sub.Deliver(evt)
}

// PublishAsync queues an event for delivery by the worker pool and returns
// without waiting on subscribers. It reports false when the bus is stopped
// or the queue is full, and the event is dropped.
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	e.stopMu.RLock()
	if e.stopped {
		e.stopMu.RUnlock()
		return false
	}
	e.stopMu.RUnlock()

	select {
	case e.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		e.logger.Warn(
			"async event queue full, dropping event",
			"type", eventType,
		)
		if e.metrics != nil {
			e.metrics.deliveryErrors.WithLabelValues(
				string(eventType), "async-dropped",
			).Inc()
		}
		return false
	}
}

// Stop closes every subscriber, waits for handler goroutines to exit, and
// shuts down the async worker pool. The bus is reinitialized on the way out
// and can keep being used after Stop returns.
func (e *EventBus) Stop() {
	// One Stop at a time, overlapping calls would spawn duplicate worker
	// pools
	e.stopOpMu.Lock()
	defer e.stopOpMu.Unlock()

	// New async publishes and func subscriptions are refused from here
	// until the bus is reinitialized
	e.stopMu.Lock()
	alreadyStopped := e.stopped
	e.stopped = true
	e.stopMu.Unlock()

	if !alreadyStopped {
		close(e.stopCh)
		e.asyncWg.Wait()
	}

	e.mu.Lock()
	oldSubs := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]Subscriber)
	e.mu.Unlock()

	// Close outside the bus lock so in-flight deliveries can finish
	for _, typeSubs := range oldSubs {
		for _, sub := range typeSubs {
			sub.Close()
		}
	}

	// SubscribeFunc goroutines exit once their channels close
	e.subscriberWg.Wait()

	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}

	e.stopMu.Lock()
	e.asyncQueue = make(chan asyncEvent, AsyncQueueSize)
	e.stopCh = make(chan struct{})
	e.stopped = false
	e.stopMu.Unlock()

	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
}
