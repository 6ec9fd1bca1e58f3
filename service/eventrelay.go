package service

import (
	"sync"

	"botgateway/interfaces"
	"botgateway/wire"
)

// subscriberKey identifies one connection's subscription to one event type.
type subscriberKey struct {
	connectionID string
	eventType    string
}

// eventRelay implements interfaces.EventRelay (C9). It is a plain map guarded by a mutex — event
// fan-out is off the router's critical path, so there is no need for the lock-free read path
// Registry (C3) cares about. Scaled down from original_source's EventConfig
// (max_subscribers_per_type, channel_capacity) to the single knob this gateway actually needs:
// how many subscribers one event type may accumulate, to bound memory under a leaking client.
type eventRelay struct {
	maxSubscribersPerType int

	mu   sync.Mutex
	subs map[subscriberKey]func(wire.EventMessage)
}

// NewEventRelay creates an EventRelay. maxSubscribersPerType <= 0 means unbounded.
func NewEventRelay(maxSubscribersPerType int) interfaces.EventRelay {
	return &eventRelay{
		maxSubscribersPerType: maxSubscribersPerType,
		subs:                  make(map[subscriberKey]func(wire.EventMessage)),
	}
}

// Subscribe registers deliver for (connectionID, eventType), replacing any prior registration.
// Silently refuses once eventType already holds maxSubscribersPerType distinct connections.
func (r *eventRelay) Subscribe(connectionID, eventType string, deliver func(wire.EventMessage)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := subscriberKey{connectionID: connectionID, eventType: eventType}
	if _, exists := r.subs[key]; !exists && r.maxSubscribersPerType > 0 && r.countForType(eventType) >= r.maxSubscribersPerType {
		return
	}
	r.subs[key] = deliver
}

// countForType returns the number of distinct connections subscribed to eventType. Caller must
// hold r.mu.
func (r *eventRelay) countForType(eventType string) int {
	n := 0
	for key := range r.subs {
		if key.eventType == eventType {
			n++
		}
	}
	return n
}

// Unsubscribe removes connectionID's subscription to eventType.
func (r *eventRelay) Unsubscribe(connectionID, eventType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, subscriberKey{connectionID: connectionID, eventType: eventType})
}

// UnsubscribeAll removes every subscription held by connectionID.
func (r *eventRelay) UnsubscribeAll(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.subs {
		if key.connectionID == connectionID {
			delete(r.subs, key)
		}
	}
}

// Publish calls every current subscriber of eventType with an EventMessage carrying payload.
// Delivery is synchronous: Publish returns once every deliver func has returned, and a panicking
// deliver func is not recovered. A session's deliver func enqueues onto its send queue and waits
// while that queue is full (or until the session closes), so a slow session delays Publish.
func (r *eventRelay) Publish(eventType string, payload []byte) {
	r.mu.Lock()
	var targets []func(wire.EventMessage)
	for key, deliver := range r.subs {
		if key.eventType == eventType {
			targets = append(targets, deliver)
		}
	}
	r.mu.Unlock()

	msg := wire.EventMessage{EventType: eventType, Payload: payload}
	for _, deliver := range targets {
		deliver(msg)
	}
}
