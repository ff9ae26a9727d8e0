package service

import (
	"sync"

	"mentalgoals/internal/model"
)

// ActiveFeed fans out active challenge changes to per-owner subscribers.
type ActiveFeed struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func(*model.Challenge)
	last map[string]uint64
}

func NewActiveFeed() *ActiveFeed {
	return &ActiveFeed{
		subs: make(map[string]map[int]func(*model.Challenge)),
		last: make(map[string]uint64),
	}
}

func (f *ActiveFeed) Subscribe(owner string, fn func(*model.Challenge)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	if f.subs[owner] == nil {
		f.subs[owner] = make(map[int]func(*model.Challenge))
	}
	f.subs[owner][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[owner], id)
			if len(f.subs[owner]) == 0 {
				delete(f.subs, owner)
			}
		})
	}
}

// publish calls subscribers outside the lock so they may unsubscribe. A
// change older than one already published for owner is dropped.
func (f *ActiveFeed) publish(owner string, seq uint64, c *model.Challenge) {
	f.mu.Lock()
	if seq <= f.last[owner] {
		f.mu.Unlock()
		return
	}
	f.last[owner] = seq
	fns := make([]func(*model.Challenge), 0, len(f.subs[owner]))
	for _, fn := range f.subs[owner] {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(c.Clone())
	}
}
