package webrtc

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// job is one unit of work run by a processor: a single externally-triggered
// handler invocation (an SDP-driven state transition, a remote candidate
// being added, a DataChannel event, ...).
type job func()

// processor is the single-consumer FIFO every externally-triggered callback
// on a PeerConnection and its DataChannels runs through. Handlers registered
// with On* setters must observe state changes in the order they actually
// happened, and must never run concurrently with each other on the same
// PeerConnection; routing every one of them through Enqueue instead of
// spawning an ad hoc goroutine per callback gives both properties for free.
// At most one goroutine drains the queue at a time: Enqueue starts it when
// the queue goes from empty to non-empty and lets it exit once drained,
// rather than keeping a goroutine parked for the PeerConnection's whole
// lifetime.
type processor struct {
	mu     sync.Mutex
	busyCh chan struct{}
	jobs   *list.List

	negotiationNeededOnDrain atomic.Bool
	onNegotiationNeeded      func()
	isClosed                 bool
}

func newProcessor(onNegotiationNeeded func()) *processor {
	return &processor{
		jobs:                jobs(),
		onNegotiationNeeded: onNegotiationNeeded,
	}
}

func jobs() *list.List { return list.New() }

// Enqueue schedules j to run on the processor's single worker goroutine,
// after every job already queued. If the queue was idle, a worker is
// started. Dropped silently once the processor has been closed.
func (p *processor) Enqueue(j job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tryEnqueue(j)
}

// tryEnqueue enqueues j if the processor isn't closed. Callers must hold mu.
func (p *processor) tryEnqueue(j job) bool {
	if j == nil || p.isClosed {
		return false
	}
	p.jobs.PushBack(j)

	if p.busyCh == nil {
		p.busyCh = make(chan struct{})
		go p.run()
	}
	return true
}

// ScheduleNegotiationNeeded flags that onNegotiationNeeded should fire once
// the queue next drains, and enqueues a no-op job so draining actually
// happens at least once more even if nothing else is pending.
func (p *processor) ScheduleNegotiationNeeded() {
	p.negotiationNeededOnDrain.Store(true)
	p.Enqueue(func() {})
}

// IsEmpty reports whether the queue currently has no pending jobs.
func (p *processor) IsEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobs.Len() == 0
}

// Done blocks until every job enqueued so far has run.
func (p *processor) Done() {
	var wg sync.WaitGroup
	wg.Add(1)
	p.mu.Lock()
	enqueued := p.tryEnqueue(func() { wg.Done() })
	p.mu.Unlock()
	if !enqueued {
		return
	}
	wg.Wait()
}

// GracefulClose drains any jobs already queued, then refuses new ones.
func (p *processor) GracefulClose() {
	p.mu.Lock()
	if p.isClosed {
		p.mu.Unlock()
		return
	}
	p.isClosed = true
	busyCh := p.busyCh
	p.mu.Unlock()

	if busyCh != nil {
		<-busyCh
	}
}

func (p *processor) pop() job {
	p.mu.Lock()
	defer p.mu.Unlock()
	front := p.jobs.Front()
	if front == nil {
		return nil
	}
	p.jobs.Remove(front)
	j, _ := front.Value.(job)
	return j
}

func (p *processor) run() {
	defer func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		close(p.busyCh)

		if p.jobs.Len() == 0 || p.isClosed {
			p.busyCh = nil
			return
		}
		// a job enqueued while we drained, or one that panicked: restart.
		p.busyCh = make(chan struct{})
		go p.run()
	}()

	for j := p.pop(); j != nil; j = p.pop() {
		j()
	}

	if p.negotiationNeededOnDrain.CompareAndSwap(true, false) && p.onNegotiationNeeded != nil {
		p.onNegotiationNeeded()
	}
}
