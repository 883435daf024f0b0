package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"vocab-quiz-service/internal/domain"
)

const defaultWriteTimeout = 5 * time.Second

// persister runs store writes on a single background goroutine in submission order.
// Callers never wait on it; failures are logged and left for the next write to supersede.
type persister struct {
	log     logrus.FieldLogger
	timeout time.Duration

	mu      sync.Mutex
	idle    *sync.Cond // signalled when pending drops to zero
	queue   []writeOp
	pending int
	wake    chan struct{}
	closed  bool
	done    chan struct{}
}

type writeOp struct {
	name string
	key  string
	run  func(ctx context.Context) error
}

func newPersister(log logrus.FieldLogger, timeout time.Duration) *persister {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	p := &persister{
		log:     log,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.idle = sync.NewCond(&p.mu)
	go p.loop()
	return p
}

// submit enqueues a write. It returns immediately.
func (p *persister) submit(name, key string, run func(ctx context.Context) error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.log.WithFields(logrus.Fields{"op": name, "key": key}).Warn("persister closed, dropping write")
		return
	}
	p.pending++
	p.queue = append(p.queue, writeOp{name: name, key: key, run: run})
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *persister) loop() {
	defer close(p.done)
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			closed := p.closed
			p.mu.Unlock()
			if closed {
				return
			}
			<-p.wake
			continue
		}
		op := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.execute(op)

		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

func (p *persister) execute(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := op.run(ctx); err != nil {
		p.log.WithFields(logrus.Fields{"op": op.name, "key": op.key}).
			WithError(fmt.Errorf("%w: %v", domain.ErrStoreWriteFailure, err)).
			Warn("persistence write failed")
	}
}

// flush blocks until the queue has drained, including writes submitted while waiting.
func (p *persister) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.pending > 0 {
		p.idle.Wait()
	}
}

// close drains the queue and stops the worker.
func (p *persister) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
	<-p.done
}
