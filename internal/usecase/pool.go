package usecase

import (
	"context"
	"sync"
)

// Pool bounds concurrent executions and serializes executions that share an
// identity. Callers queue in Acquire; nothing is rejected.
type Pool struct {
	slots chan struct{}

	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	ch   chan struct{}
	refs int
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		slots: make(chan struct{}, size),
		locks: map[string]*identityLock{},
	}
}

// Acquire blocks until identity is free and a worker slot is available. The
// returned release must be called exactly once.
func (p *Pool) Acquire(ctx context.Context, identity string) (func(), error) {
	l := p.ref(identity)
	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		p.unref(identity)
		return nil, ctx.Err()
	}

	// identity first so a blocked identity never pins a global slot
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		<-l.ch
		p.unref(identity)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-p.slots
			<-l.ch
			p.unref(identity)
		})
	}, nil
}

// Size is the worker bound.
func (p *Pool) Size() int { return cap(p.slots) }

func (p *Pool) ref(identity string) *identityLock {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[identity]
	if !ok {
		l = &identityLock{ch: make(chan struct{}, 1)}
		p.locks[identity] = l
	}
	l.refs++
	return l
}

func (p *Pool) unref(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l := p.locks[identity]
	if l == nil {
		return
	}
	if l.refs--; l.refs == 0 {
		delete(p.locks, identity)
	}
}
