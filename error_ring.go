package mgs

import "sync"

// errorRing keeps the most recent errors a producer recorded, oldest first.
// A nil ring records nothing.
type errorRing struct {
	mu    sync.Mutex
	limit int
	errs  []error
}

func newErrorRing(limit int) *errorRing {
	if limit <= 0 {
		return nil
	}
	return &errorRing{limit: limit, errs: make([]error, 0, limit)}
}

func (r *errorRing) push(err error) {
	if r == nil || err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.errs) == r.limit {
		copy(r.errs, r.errs[1:])
		r.errs = r.errs[:r.limit-1]
	}
	r.errs = append(r.errs, err)
}

func (r *errorRing) all() []error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.errs) == 0 {
		return nil
	}
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}
