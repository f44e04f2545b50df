package flight

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"weak"
)

// Cache coalesces concurrent work per key and remembers finished results.
type Cache[K comparable, V any] struct {
	// finished holds completed results. Each entry keeps a strong reference
	// until its deadline passes, after which only the weak pointer remains.
	finished map[K]*entry[V]
	fmu      *sync.RWMutex

	pending map[K]*job[V]
	pmu     *sync.Mutex

	work func(context.Context, K) (V, error)

	// ttl stores the strong-hold duration in nanoseconds.
	// <= 0 means infinite (never drop the strong reference).
	ttl *atomic.Int64
}

type entry[V any] struct {
	w        weak.Pointer[V]
	strong   *V        // non-nil while within the strong-hold window
	deadline time.Time // zero => infinite
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

func NewCache[K comparable, V any](work func(context.Context, K) (V, error)) *Cache[K, V] {
	var ttl atomic.Int64
	ttl.Store(int64(time.Hour))
	return &Cache[K, V]{
		finished: make(map[K]*entry[V]),
		fmu:      new(sync.RWMutex),
		pending:  make(map[K]*job[V]),
		pmu:      new(sync.Mutex),
		work:     work,
		ttl:      &ttl,
	}
}

// Expiry sets the strong-hold duration for future writes.
// d <= 0 keeps a permanent strong reference (infinite duration).
func (p *Cache[K, V]) Expiry(d time.Duration) {
	if d <= 0 {
		p.ttl.Store(0)
		return
	}
	p.ttl.Store(int64(d))
}

// Get returns the cached value for k, joining an in-flight computation or
// starting one. Errors are not cached.
func (p *Cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	p.pmu.Lock()

	if v, ok := p.lookup(k); ok {
		p.pmu.Unlock()
		return v, nil
	}

	if pending, ok := p.pending[k]; ok {
		p.pmu.Unlock()
		select {
		case <-pending.done:
			return pending.val, pending.err
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err()
		}
	}

	j := &job[V]{done: make(chan struct{})}
	p.pending[k] = j
	p.pmu.Unlock()

	j.val, j.err = p.work(ctx, k)
	if j.err == nil {
		p.storeEntry(k, j.val)
	}

	p.pmu.Lock()
	close(j.done)
	delete(p.pending, k)
	p.pmu.Unlock()

	return j.val, j.err
}

// GetMany resolves every key in keys. Finished keys come from the cache,
// keys already in flight are awaited, and the rest are computed together by
// one batch call whose results are returned in the order of its input.
// Duplicate keys are computed once. Errors are not cached.
func (p *Cache[K, V]) GetMany(ctx context.Context, keys []K, batch func(context.Context, []K) ([]V, error)) ([]V, error) {
	vals := make(map[K]V, len(keys))
	waits := make(map[K]*job[V])
	owned := make(map[K]*job[V])
	var todo []K

	p.pmu.Lock()
	for _, k := range keys {
		if _, ok := vals[k]; ok {
			continue
		}
		if _, ok := waits[k]; ok {
			continue
		}
		if _, ok := owned[k]; ok {
			continue
		}
		if v, ok := p.lookup(k); ok {
			vals[k] = v
			continue
		}
		if pending, ok := p.pending[k]; ok {
			waits[k] = pending
			continue
		}
		j := &job[V]{done: make(chan struct{})}
		p.pending[k] = j
		owned[k] = j
		todo = append(todo, k)
	}
	p.pmu.Unlock()

	if len(todo) > 0 {
		out, err := batch(ctx, todo)
		if err == nil && len(out) != len(todo) {
			err = fmt.Errorf("batch returned %d results for %d keys", len(out), len(todo))
		}
		for i, k := range todo {
			j := owned[k]
			if err != nil {
				j.err = err
				continue
			}
			j.val = out[i]
			p.storeEntry(k, j.val)
		}

		p.pmu.Lock()
		for _, k := range todo {
			close(owned[k].done)
			delete(p.pending, k)
		}
		p.pmu.Unlock()

		if err != nil {
			return nil, err
		}
		for _, k := range todo {
			vals[k] = owned[k].val
		}
	}

	for k, j := range waits {
		select {
		case <-j.done:
			if j.err != nil {
				return nil, j.err
			}
			vals[k] = j.val
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	res := make([]V, len(keys))
	for i, k := range keys {
		res[i] = vals[k]
	}
	return res, nil
}

// --- internals ---

func (p *Cache[K, V]) lookup(k K) (V, bool) {
	var zero V
	e, ok := p.loadEntry(k)
	if !ok {
		return zero, false
	}
	if vp := e.w.Value(); vp != nil {
		return *vp, true
	}
	// The weak value is gone; remove the entry so the next miss computes.
	p.fmu.Lock()
	if cur, ok := p.finished[k]; ok && cur == e && e.w.Value() == nil {
		delete(p.finished, k)
	}
	p.fmu.Unlock()
	return zero, false
}

func (p *Cache[K, V]) ttlDur() time.Duration {
	return time.Duration(p.ttl.Load())
}

func (p *Cache[K, V]) loadEntry(k K) (*entry[V], bool) {
	p.fmu.RLock()
	e, ok := p.finished[k]
	p.fmu.RUnlock()
	if !ok {
		return nil, false
	}

	// If the strong-hold window elapsed, drop the strong pointer.
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		p.fmu.Lock()
		if cur, ok := p.finished[k]; ok && cur == e && e.strong != nil && time.Now().After(e.deadline) {
			e.strong = nil
		}
		p.fmu.Unlock()
	}
	return e, true
}

func (p *Cache[K, V]) storeEntry(k K, val V) {
	// Allocate a dedicated heap cell so the weak pointer refers to a stable address.
	v := new(V)
	*v = val

	e := &entry[V]{w: weak.Make(v), strong: v}
	if d := p.ttlDur(); d > 0 {
		e.deadline = time.Now().Add(d)
	}

	p.fmu.Lock()
	p.finished[k] = e
	p.fmu.Unlock()
}
