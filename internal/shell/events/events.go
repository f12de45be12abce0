// Package events carries the resilience event stream. Components publish
// named events with small map payloads; renderers and tests subscribe.
// Delivery is synchronous on the publisher's goroutine - the engine owns
// no background concurrency.
package events

import "time"

// ChannelResilience is the channel every resilience event is published on.
const ChannelResilience = "resilience"

// Event names published by the resilience components.
const (
	EventCircuitOpen     = "circuit_open"
	EventCircuitClosed   = "circuit_closed"
	EventCircuitHalfOpen = "circuit_half_open"

	EventPortReassigned = "port_reassigned"
	EventPortConflict   = "port_conflict"

	EventRestartAttempt   = "restart_attempt"
	EventRestartSuccess   = "restart_success"
	EventRestartExhausted = "restart_exhausted"

	EventCleanupStart    = "cleanup_start"
	EventCleanupResource = "cleanup_resource"
	EventCleanupEnd      = "cleanup_end"

	EventPreflightStart = "preflight_start"
	EventPreflightCheck = "preflight_check"
	EventPreflightEnd   = "preflight_end"
)

// Message is one published event with its payload.
type Message struct {
	Event string
	Data  map[string]any
}

// Emitter publishes messages to a channel.
type Emitter interface {
	Emit(channel string, msg Message)
}

// Payload builds a message whose payload always carries the event name
// under "type" and an RFC 3339 "timestamp", followed by the given
// key/value pairs.
func Payload(event string, kv ...any) Message {
	data := make(map[string]any, len(kv)/2+2)
	data["type"] = event
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			data[k] = kv[i+1]
		}
	}
	return Message{Event: event, Data: data}
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, Message) {}

// Nop returns an emitter that drops everything, for wiring without
// observers.
func Nop() Emitter {
	return nopEmitter{}
}
