package services

import (
	"sync"
	"time"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

// CancellationRegistry tracks active historical syncs and their stop
// requests, keyed by principal. State is in-memory only and is lost on
// restart. Safe for concurrent use.
type CancellationRegistry struct {
	mu     sync.RWMutex
	flags  map[string]*domain.CancellationFlag
	status map[string]*domain.SyncStatus
	now    func() time.Time
}

// NewCancellationRegistry creates an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{
		flags:  make(map[string]*domain.CancellationFlag),
		status: make(map[string]*domain.SyncStatus),
		now:    time.Now,
	}
}

// RegisterSync records a new active sync for key, clearing any stale stop
// flag left from an earlier run.
func (r *CancellationRegistry) RegisterSync(key, module string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.register(key, module)
}

// TryRegisterSync registers a sync for key unless one is already active.
func (r *CancellationRegistry) TryRegisterSync(key, module string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, active := r.flags[key]; active {
		return false
	}
	r.register(key, module)
	return true
}

func (r *CancellationRegistry) register(key, module string) {
	now := r.now()
	r.flags[key] = &domain.CancellationFlag{PrincipalKey: key}
	r.status[key] = &domain.SyncStatus{
		PrincipalKey: key,
		Module:       module,
		StartedAt:    now,
		LastUpdateAt: now,
	}
}

// RequestStop sets the stop flag for key. Returns false if no sync is
// registered.
func (r *CancellationRegistry) RequestStop(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	flag, ok := r.flags[key]
	if !ok {
		return false
	}
	if !flag.Stopped {
		flag.Stopped = true
		flag.RequestedAt = r.now()
	}
	return true
}

// IsStopRequested reports whether a stop has been requested for key.
func (r *CancellationRegistry) IsStopRequested(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	return ok && flag.Stopped
}

// UnregisterSync removes the flag and status for key.
func (r *CancellationRegistry) UnregisterSync(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.flags, key)
	delete(r.status, key)
}

// UpdateProgress records the current position of the sync for key.
// Ignored when no sync is registered.
func (r *CancellationRegistry) UpdateProgress(key, module string, page, recordIndex int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.status[key]
	if !ok {
		return
	}
	st.Module = module
	st.Page = page
	st.RecordIndex = recordIndex
	st.LastUpdateAt = r.now()
}

// Status returns a copy of the progress snapshot for key.
func (r *CancellationRegistry) Status(key string) (*domain.SyncStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.status[key]
	if !ok {
		return nil, false
	}
	out := *st
	if flag, ok := r.flags[key]; ok {
		out.StopPending = flag.Stopped
	}
	return &out, true
}

// IsActive reports whether a sync is registered for key.
func (r *CancellationRegistry) IsActive(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.flags[key]
	return ok
}
