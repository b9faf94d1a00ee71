package fetcher

import (
	"sync"

	"github.com/jensneuse/abstractlogger"
	"go.uber.org/atomic"

	"github.com/wundergraph/graphiql-fetcher/pkg/transport"
)

// Subscribable is the result of dispatching a subscription.
// Every call to Subscribe registers a new subscription on the shared channel.
type Subscribable struct {
	channel Channel
	body    transport.Body
	log     abstractlogger.Logger
}

func (s *Subscribable) OperationName() string {
	return s.body.OperationName
}

// Subscribe registers the subscription and returns without waiting for the channel.
func (s *Subscribable) Subscribe(arg ObserverArg) *StreamHandle {
	st := &stream{
		observer: normalizeObserver(arg),
		log:      s.log,
	}
	st.attach(s.channel.Register(s.body, st))
	return &StreamHandle{stream: st}
}

// StreamHandle cancels one subscription.
type StreamHandle struct {
	stream *stream
}

// Unsubscribe stops event delivery and deregisters the subscription from the channel.
// The channel itself stays open. Calling it more than once has no further effect.
func (h *StreamHandle) Unsubscribe() {
	h.stream.unsubscribe()
}

// stream adapts an Observer to transport.Sink.
type stream struct {
	observer Observer
	log      abstractlogger.Logger

	closed    atomic.Bool
	deliverMu sync.Mutex

	regMu      sync.Mutex
	deregister func()
	released   bool
}

func (s *stream) Next(payload []byte) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if s.closed.Load() {
		return
	}
	s.observer.Next(decodeStreamPayload(payload))
}

func (s *stream) Error(failure transport.Failure) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	err := NormalizeFailure(failure)
	s.log.Debug("fetcher: subscription failed", abstractlogger.Error(err))
	s.observer.Error(err)
}

func (s *stream) Complete() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.observer.Complete()
}

// attach stores the deregister func, or calls it right away when Unsubscribe already happened.
func (s *stream) attach(deregister func()) {
	if deregister == nil {
		return
	}
	s.regMu.Lock()
	if s.released {
		s.regMu.Unlock()
		deregister()
		return
	}
	s.deregister = deregister
	s.regMu.Unlock()
}

func (s *stream) unsubscribe() {
	s.closed.Store(true)

	s.regMu.Lock()
	if s.released {
		s.regMu.Unlock()
		return
	}
	s.released = true
	deregister := s.deregister
	s.deregister = nil
	s.regMu.Unlock()

	if deregister != nil {
		deregister()
	}
}
