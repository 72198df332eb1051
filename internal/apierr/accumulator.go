package apierr

import "fmt"

// Accumulator collects the violations of one validation stage under one error
// key. Checks within a stage append independently and never short-circuit; the
// stage raises the union once via Err.
//
// An Accumulator is created per validation call and owned solely by that call,
// so it needs no synchronization.
type Accumulator struct {
	key      string
	messages []string
}

// NewAccumulator creates an empty accumulator bound to an error key.
func NewAccumulator(key string) *Accumulator {
	return &Accumulator{key: key}
}

// Add appends a violation message.
func (a *Accumulator) Add(message string) {
	a.messages = append(a.messages, message)
}

// Addf appends a formatted violation message.
func (a *Accumulator) Addf(format string, args ...interface{}) {
	a.messages = append(a.messages, fmt.Sprintf(format, args...))
}

// Empty reports whether no violation has been recorded.
func (a *Accumulator) Empty() bool {
	return len(a.messages) == 0
}

// Messages returns the recorded violations in insertion order.
func (a *Accumulator) Messages() []string {
	return a.messages
}

// Err returns nil when the accumulator is empty, otherwise a taxonomy error
// carrying every recorded message.
func (a *Accumulator) Err() error {
	if a.Empty() {
		return nil
	}
	return New(a.key, a.messages...)
}
