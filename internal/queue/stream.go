package queue

import "github.com/cuivienor/carbon/internal/model"

// updateStream is an ordered stream of job update events with unbounded
// buffering. Producers are subprocess-bound and must never stall on a
// slow consumer, so sends park events in an internal buffer instead of
// blocking on the reader.
type updateStream struct {
	in  chan model.Event
	out chan model.Event
}

func newUpdateStream() *updateStream {
	s := &updateStream{
		in:  make(chan model.Event),
		out: make(chan model.Event),
	}
	go s.pump()
	return s
}

// pump shuttles events from in to out, buffering whatever the consumer
// has not caught up with. Order is preserved.
func (s *updateStream) pump() {
	var buf []model.Event
	for {
		if len(buf) == 0 {
			ev, ok := <-s.in
			if !ok {
				close(s.out)
				return
			}
			buf = append(buf, ev)
		}

		select {
		case ev, ok := <-s.in:
			if !ok {
				for _, pending := range buf {
					s.out <- pending
				}
				close(s.out)
				return
			}
			buf = append(buf, ev)
		case s.out <- buf[0]:
			buf = buf[1:]
		}
	}
}

// Send enqueues one event. It returns as soon as the pump has taken it.
func (s *updateStream) Send(ev model.Event) {
	s.in <- ev
}

// Close stops the stream after all buffered events are delivered.
// No Send may follow.
func (s *updateStream) Close() {
	close(s.in)
}

// Events returns the consumer side of the stream
func (s *updateStream) Events() <-chan model.Event {
	return s.out
}
