// Package progress reports extraction progress as a stream of phase/done/
// total events, structured so a caller can render a bar or accumulate
// totals instead of scrolling log lines.
package progress

// Event is one progress update for a named phase.
type Event struct {
	Phase string
	Done  int
	Total int
}

// Fraction returns Done/Total, or 0 if Total is 0.
func (e Event) Fraction() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Done) / float64(e.Total)
}

// Reporter fans progress events out to a channel, dropping events rather
// than blocking the caller if nobody is reading.
type Reporter struct {
	events chan Event
}

// NewReporter returns a Reporter with an internally buffered event channel.
func NewReporter(buffer int) *Reporter {
	if buffer < 1 {
		buffer = 1
	}
	return &Reporter{events: make(chan Event, buffer)}
}

// Report emits an event, dropping it if the channel is full.
func (r *Reporter) Report(phase string, done, total int) {
	select {
	case r.events <- Event{Phase: phase, Done: done, Total: total}:
	default:
	}
}

// Events returns the reporter's read-only event stream.
func (r *Reporter) Events() <-chan Event {
	return r.events
}

// Close signals that no more events will be sent.
func (r *Reporter) Close() {
	close(r.events)
}

// Tick reports progress every interval-th call to Next; pass alongside
// ProgressEvery/ShipProgressEvery from internal/config.
type Tick struct {
	interval int
	count    int
}

// NewTick returns a Tick that fires every interval calls to Next.
func NewTick(interval int) *Tick {
	if interval < 1 {
		interval = 1
	}
	return &Tick{interval: interval}
}

// Next increments the tick's counter and reports whether this call should
// emit a progress event.
func (t *Tick) Next() bool {
	t.count++
	if t.count%t.interval == 0 {
		return true
	}
	return false
}

// Count returns the number of times Next has been called.
func (t *Tick) Count() int {
	return t.count
}
