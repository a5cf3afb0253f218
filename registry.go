package mgs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zoobzio/capitan"
)

// ErrTypeMismatch is returned by Acquire when a domain is already running
// with a different snapshot type.
var ErrTypeMismatch = errors.New("domain registered with a different snapshot type")

// ErrRegistryClosed is returned by Acquire after Close.
var ErrRegistryClosed = errors.New("registry closed")

// Registry shares one producer per domain between every observer of that
// domain. A producer starts on the first Acquire and stops when the last
// lease is released.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

type entry struct {
	refs     int
	ready    chan struct{}
	err      error
	producer any
	stop     func()
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Lease is one observer's hold on a domain's channel.
type Lease[T any] struct {
	registry *Registry
	domain   string
	entry    *entry
	producer *Producer[T]
	once     sync.Once
}

// Channel returns the shared channel for the domain.
func (l *Lease[T]) Channel() *Channel[T] {
	return l.producer.Channel()
}

// Producer returns the shared producer for the domain.
func (l *Lease[T]) Producer() *Producer[T] {
	return l.producer
}

// Release returns the lease. The last release stops the producer.
// Calling Release more than once has no further effect.
func (l *Lease[T]) Release() {
	l.once.Do(func() {
		l.registry.release(l.domain, l.entry)
	})
}

// Acquire returns a lease on domain, starting its producer with a watcher
// from factory if no observer holds the domain yet. Concurrent first
// acquirers share a single start. configure, if non-nil, is applied to a
// newly built producer before it starts.
//
// The producer runs detached from ctx; ctx only bounds the wait for the
// initial snapshot.
func Acquire[T any](
	ctx context.Context,
	r *Registry,
	domain string,
	factory func() Watcher[T],
	configure func(*Producer[T]),
) (*Lease[T], error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, running := r.entries[domain]
	if !running {
		e = &entry{ready: make(chan struct{})}
		r.entries[domain] = e
	}
	e.refs++
	refs := e.refs
	r.mu.Unlock()

	if !running {
		startEntry(ctx, r, domain, e, factory, configure)
	} else {
		select {
		case <-e.ready:
		case <-ctx.Done():
			r.release(domain, e)
			return nil, ctx.Err()
		}
	}

	if e.err != nil {
		return nil, e.err
	}

	p, ok := e.producer.(*Producer[T])
	if !ok {
		r.release(domain, e)
		return nil, fmt.Errorf("%s: %w", domain, ErrTypeMismatch)
	}

	capitan.Emit(ctx, DomainAcquired,
		KeyProducer.Field(domain),
		KeyRefs.Field(refs),
	)
	return &Lease[T]{registry: r, domain: domain, entry: e, producer: p}, nil
}

// startEntry builds and starts the producer for a new entry, then wakes
// every acquirer waiting on it.
func startEntry[T any](
	ctx context.Context,
	r *Registry,
	domain string,
	e *entry,
	factory func() Watcher[T],
	configure func(*Producer[T]),
) {
	p := NewProducer[T](domain, factory())
	if configure != nil {
		configure(p)
	}

	stopOnCancel := context.AfterFunc(ctx, p.Stop)
	err := p.Start(context.WithoutCancel(ctx))
	stopOnCancel()

	r.mu.Lock()
	if err != nil {
		e.err = err
		if r.entries[domain] == e {
			delete(r.entries, domain)
		}
	} else {
		e.producer = p
		e.stop = p.Stop
	}
	close(e.ready)
	r.mu.Unlock()

	if err != nil {
		return
	}

	// A producer that loses its source leaves the registry so the next
	// Acquire starts a fresh one.
	go func() {
		<-p.Done()
		r.mu.Lock()
		if r.entries[domain] == e {
			delete(r.entries, domain)
		}
		r.mu.Unlock()
	}()
}

func (r *Registry) release(domain string, e *entry) {
	r.mu.Lock()
	e.refs--
	refs := e.refs
	last := refs <= 0
	if last && r.entries[domain] == e {
		delete(r.entries, domain)
	}
	stop := e.stop
	r.mu.Unlock()

	capitan.Emit(context.Background(), DomainReleased,
		KeyProducer.Field(domain),
		KeyRefs.Field(refs),
	)
	if last && stop != nil {
		stop()
	}
}

// Domains returns the names of the running domains, sorted.
func (r *Registry) Domains() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.entries))
	for domain := range r.entries {
		out = append(out, domain)
	}
	sort.Strings(out)
	return out
}

// Refs returns the number of live leases on domain.
func (r *Registry) Refs(domain string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[domain]; ok {
		return e.refs
	}
	return 0
}

// Close stops every running producer. Later Acquire calls fail with
// ErrRegistryClosed; outstanding leases may still be released.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		<-e.ready
		if e.stop != nil {
			e.stop()
		}
	}
}
