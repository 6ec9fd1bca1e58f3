package interfaces

import "botgateway/wire"

// EventRelay is the supplemental in-memory pub/sub fed and drained entirely by reverse sessions
// (C5/C9): a session Subscribes/Unsubscribes on behalf of its connection and Publish fans an
// EventMessage out to every current subscriber of that event type. The router (C6) never consults
// this interface — it exists purely so a session has something real to do with SubscriptionRequest/
// EventMessage wire messages instead of dropping them silently.
type EventRelay interface {
	// Subscribe registers deliver to be called with every future event of eventType published for
	// connectionID, until Unsubscribe or UnsubscribeAll removes it.
	Subscribe(connectionID, eventType string, deliver func(wire.EventMessage))
	// Unsubscribe removes connectionID's subscription to eventType, if any.
	Unsubscribe(connectionID, eventType string)
	// UnsubscribeAll removes every subscription held by connectionID, called on session close.
	UnsubscribeAll(connectionID string)
	// Publish delivers an EventMessage carrying payload to every current subscriber of eventType.
	Publish(eventType string, payload []byte)
}
