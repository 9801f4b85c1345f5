package software

import (
	"fmt"
	"sync"

	"github.com/gogpu/gblur/gpucore"
)

type submission struct {
	fence gpucore.Fence
	cb    *gpucore.CommandBuffer
	done  chan struct{}
	err   error
}

// queue executes command buffers one at a time in submission order.
//
// Successful submissions are forgotten once they complete; failed ones are
// kept until their fence is waited on so the error can be reported.
type queue struct {
	exec func(*gpucore.CommandBuffer) error

	mu        sync.Mutex
	cond      *sync.Cond
	fifo      []*submission
	pending   map[gpucore.Fence]*submission
	issued    gpucore.Fence
	completed gpucore.Fence
	closed    bool

	stopped chan struct{}
}

func newQueue(exec func(*gpucore.CommandBuffer) error) *queue {
	q := &queue{
		exec:    exec,
		pending: make(map[gpucore.Fence]*submission),
		stopped: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

func (q *queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		for len(q.fifo) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.fifo) == 0 {
			q.mu.Unlock()
			return
		}
		s := q.fifo[0]
		q.fifo[0] = nil
		q.fifo = q.fifo[1:]
		q.mu.Unlock()

		s.err = q.exec(s.cb)

		q.mu.Lock()
		q.completed = s.fence
		if s.err == nil {
			delete(q.pending, s.fence)
		} else {
			slogger().Warn("software: submission failed",
				"fence", uint64(s.fence), "label", s.cb.Label(), "err", s.err)
		}
		q.mu.Unlock()
		close(s.done)
	}
}

func (q *queue) submit(cb *gpucore.CommandBuffer) (gpucore.Fence, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, gpucore.ErrDeviceLost
	}
	q.issued++
	s := &submission{fence: q.issued, cb: cb, done: make(chan struct{})}
	q.pending[s.fence] = s
	q.fifo = append(q.fifo, s)
	q.cond.Signal()
	return s.fence, nil
}

func (q *queue) wait(fence gpucore.Fence) error {
	q.mu.Lock()
	s, ok := q.pending[fence]
	if !ok {
		issued := q.issued
		q.mu.Unlock()
		if fence == 0 || fence > issued {
			return fmt.Errorf("%w: fence %d", gpucore.ErrInvalidResource, fence)
		}
		return nil
	}
	q.mu.Unlock()

	<-s.done

	q.mu.Lock()
	delete(q.pending, fence)
	q.mu.Unlock()
	return s.err
}

// drain blocks until everything submitted so far has executed.
func (q *queue) drain() {
	q.mu.Lock()
	s := q.pending[q.issued]
	q.mu.Unlock()
	if s != nil {
		<-s.done
	}
}

// close stops accepting work and returns after queued work has executed.
func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	<-q.stopped
}
