/*
Package lock provides keyed try-locks for approvals.

PURPOSE:
  The approver already rejects re-entrant approvals inside one process.
  When several API replicas share one collaborator, a Redis lock extends
  the same exclusion across processes.

IMPLEMENTATIONS:
  Local: in-process map, for single-replica deployments and tests
  Redis: SET NX PX with an owner token; release deletes only its own token
*/
package lock

import (
	"context"
	"sync"
)

// Local is an in-process keyed try-lock.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return func() {}, false, nil
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, true, nil
}
