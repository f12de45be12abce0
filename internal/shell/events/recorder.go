package events

import "sync"

// =============================================================================
// Test Recorder
// =============================================================================

// Recorded is one captured emission.
type Recorded struct {
	Channel string
	Message Message
}

// Recorder is an Emitter that captures everything published to it. It is
// exported so component tests in other packages can assert on the event
// stream without a bus.
type Recorder struct {
	mu       sync.Mutex
	recorded []Recorded
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(channel string, msg Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, Recorded{Channel: channel, Message: msg})
}

// All returns a copy of everything recorded, in emission order.
func (r *Recorder) All() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.recorded))
	copy(out, r.recorded)
	return out
}

// Events returns the event names in emission order.
func (r *Recorder) Events() []string {
	all := r.All()
	out := make([]string, len(all))
	for i, rec := range all {
		out[i] = rec.Message.Event
	}
	return out
}

// ByEvent returns the messages published under one event name.
func (r *Recorder) ByEvent(event string) []Message {
	var out []Message
	for _, rec := range r.All() {
		if rec.Message.Event == event {
			out = append(out, rec.Message)
		}
	}
	return out
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = nil
}
