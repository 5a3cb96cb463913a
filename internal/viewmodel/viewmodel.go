// Package viewmodel is the single-consumer, "latest-only" event pipe used
// to hand a freshly computed model to a UI/LCD collaborator without ever
// making the producer wait on a slow renderer.
package viewmodel

// Event is one emission on the handle: either a freshly computed model or
// a terminal shutdown notice.
type Event[M any] struct {
	Model    M
	Shutdown bool
}

// Handle is a single-producer, single-consumer coalescing channel: the
// consumer's TryRecvLatest drains everything buffered and returns only the
// most recent event, so a renderer that falls behind skips
// straight to the newest state instead of working through a backlog.
type Handle[M any] struct {
	ch chan Event[M]
}

// New constructs a Handle with the given buffer depth (small; the reader
// is expected to drain eagerly via TryRecvLatest).
func New[M any](depth int) *Handle[M] {
	if depth <= 0 {
		depth = 1
	}
	return &Handle[M]{ch: make(chan Event[M], depth)}
}

// Send publishes a new model, non-blocking: if the buffer is full the
// oldest buffered event is discarded to make room, since only the latest
// model matters to the consumer.
func (h *Handle[M]) Send(model M) {
	h.send(Event[M]{Model: model})
}

// Close publishes a terminal shutdown event.
func (h *Handle[M]) Close() {
	h.send(Event[M]{Shutdown: true})
}

func (h *Handle[M]) send(ev Event[M]) {
	for {
		select {
		case h.ch <- ev:
			return
		default:
		}
		select {
		case <-h.ch:
		default:
		}
	}
}

// TryRecvLatest drains every buffered event and returns only the last one
// seen, plus ok=true if anything was available. If the drained sequence
// ends in a shutdown event, ok is true and Event.Shutdown is set.
func (h *Handle[M]) TryRecvLatest() (Event[M], bool) {
	var latest Event[M]
	ok := false
	for {
		select {
		case ev := <-h.ch:
			latest = ev
			ok = true
		default:
			return latest, ok
		}
	}
}

// RecvLatest blocks until at least one event is available, then applies
// the same coalescing drain as TryRecvLatest.
func (h *Handle[M]) RecvLatest() Event[M] {
	ev := <-h.ch
	for {
		select {
		case next := <-h.ch:
			ev = next
		default:
			return ev
		}
	}
}
