// Package eventbus provides the small injected pub/sub spec.md §9 calls for
// ("Logger, event bus, and timer wheel are injected dependencies of every
// component"). It decouples the corpus ("a program became interesting")
// from the transport ("broadcast it to children") the same way the teacher
// codebase decouples RPCServer from Fuzzer via callback interfaces
// (queue.DoneCallback's LIFO chaining, RPCManagerView) rather than a direct
// import cycle.
package eventbus

import "sync"

// Topic names the events this repository's components publish. Kept as a
// closed set of string constants rather than an extensible registry,
// mirroring the small, known set of message types in pkg/transport.
type Topic string

const (
	// TopicNewInteresting fires with a *NewInterestingEvent whenever the
	// corpus accepts a program (spec.md §4.1 add, §4.5 parent behaviour
	// "broadcast new interesting programs to all children").
	TopicNewInteresting Topic = "new_interesting"
	// TopicCorpusCleanup fires with a *CleanupEvent after a scheduler
	// cleanup pass (spec.md §4.1 cleanup policy).
	TopicCorpusCleanup Topic = "corpus_cleanup"
)

// Handler receives a published event. Handlers run synchronously on the
// publisher's goroutine, in subscription order; a handler that needs to do
// blocking work should hand off to its own goroutine, the same discipline
// spec.md §5 requires of transport callbacks ("marshalled back to the
// fuzzer loop before touching fuzzer-owned state").
type Handler func(event any)

// Bus is a minimal synchronous multi-producer/multi-consumer pub/sub.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func New() *Bus {
	return &Bus{handlers: map[Topic][]Handler{}}
}

// Subscribe registers h to run whenever topic is published. Returns an
// unsubscribe function.
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
	idx := len(b.handlers[topic]) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[topic]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// Publish invokes every live subscriber of topic with event, in
// subscription order.
func (b *Bus) Publish(topic Topic, event any) {
	b.mu.RLock()
	hs := append([]Handler(nil), b.handlers[topic]...)
	b.mu.RUnlock()
	for _, h := range hs {
		if h != nil {
			h(event)
		}
	}
}
