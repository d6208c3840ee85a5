package pipeline

import "sync"

// EventHandler receives FormattedEvents published by a DetectionPipeline
// or MultiZonePipeline, synchronously and in frame order.
type EventHandler interface {
	OnEvent(event *FormattedEvent)
}

// EventBus is an in-process, single-producer-multi-consumer broadcast of
// FormattedEvents (spec.md §5: "event broadcast queue... bounded
// capacity, newest-wins on overflow"). Handler delivery is synchronous so
// that downstream consumers (e.g. the WebSocket hub) observe events in
// the same order the pipeline emitted them; channel-based subscribers
// are bounded and drop the oldest buffered event to make room for the
// newest one rather than dropping the newest.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[*eventSubscription]struct{}
}

type eventSubscription struct {
	cameraFilter string // empty means all cameras
	handler      EventHandler
	channel      chan *FormattedEvent
}

// NewEventBus constructs an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[*eventSubscription]struct{})}
}

// Subscribe registers a handler for events from every camera. The
// returned function unsubscribes.
func (b *EventBus) Subscribe(handler EventHandler) func() {
	return b.add(&eventSubscription{handler: handler})
}

// SubscribeCamera registers a handler for events from one camera only.
func (b *EventBus) SubscribeCamera(cameraID string, handler EventHandler) func() {
	return b.add(&eventSubscription{cameraFilter: cameraID, handler: handler})
}

// SubscribeChannel returns a bounded channel of events from every camera.
func (b *EventBus) SubscribeChannel(bufferSize int) (<-chan *FormattedEvent, func()) {
	return b.addChannel("", bufferSize)
}

// SubscribeCameraChannel returns a bounded channel of events from one
// camera only.
func (b *EventBus) SubscribeCameraChannel(cameraID string, bufferSize int) (<-chan *FormattedEvent, func()) {
	return b.addChannel(cameraID, bufferSize)
}

func (b *EventBus) add(sub *eventSubscription) func() {
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subscribers, sub)
		b.mu.Unlock()
	}
}

func (b *EventBus) addChannel(cameraFilter string, bufferSize int) (<-chan *FormattedEvent, func()) {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	ch := make(chan *FormattedEvent, bufferSize)
	sub := &eventSubscription{cameraFilter: cameraFilter, channel: ch}

	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[sub]; ok {
			delete(b.subscribers, sub)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish delivers event to every matching subscriber. Handler
// subscribers run synchronously, in the caller's goroutine. Channel
// subscribers that are full drop their oldest buffered event to admit
// this one (newest-wins).
func (b *EventBus) Publish(event *FormattedEvent) {
	if event == nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		if sub.cameraFilter != "" && sub.cameraFilter != event.CameraID {
			continue
		}

		if sub.handler != nil {
			sub.handler.OnEvent(event)
			continue
		}
		if sub.channel == nil {
			continue
		}
		select {
		case sub.channel <- event:
		default:
			select {
			case <-sub.channel:
			default:
			}
			select {
			case sub.channel <- event:
			default:
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close unsubscribes and closes every channel subscription.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subscribers {
		if sub.channel != nil {
			close(sub.channel)
		}
		delete(b.subscribers, sub)
	}
}
