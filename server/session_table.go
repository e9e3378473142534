package server

import "sync"

// sessionTable tracks live sessions by their bus subscription id. It wraps a
// sync.Map so the accept loop, the sessions themselves, and Stop can touch it
// concurrently.
type sessionTable struct {
	m sync.Map
}

func (t *sessionTable) store(id uint64, s *session) {
	t.m.Store(id, s)
}

func (t *sessionTable) delete(id uint64) {
	t.m.Delete(id)
}

func (t *sessionTable) load(id uint64) (*session, bool) {
	v, ok := t.m.Load(id)
	if !ok {
		return nil, false
	}

	return v.(*session), true
}

// rangeAll calls fn for each live session until fn returns false.
func (t *sessionTable) rangeAll(fn func(id uint64, s *session) bool) {
	t.m.Range(func(key, value any) bool {
		return fn(key.(uint64), value.(*session))
	})
}

func (t *sessionTable) len() int {
	count := 0
	t.m.Range(func(_, _ any) bool {
		count++
		return true
	})

	return count
}
