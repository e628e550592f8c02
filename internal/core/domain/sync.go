package domain

import "time"

// SyncWindow is the trailing date range a historical sync covers.
// Both ends are UTC midnights and inclusive.
type SyncWindow struct {
	Start time.Time
	End   time.Time
}

// NewSyncWindow returns [today-days, today] relative to now.
func NewSyncWindow(now time.Time, days int) SyncWindow {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return SyncWindow{
		Start: today.AddDate(0, 0, -days),
		End:   today,
	}
}

// StartDate returns the window start in yyyy-mm-dd form.
func (w SyncWindow) StartDate() string {
	return FormatDate(w.Start)
}

// EndDate returns the window end in yyyy-mm-dd form.
func (w SyncWindow) EndDate() string {
	return FormatDate(w.End)
}

// Before reports whether the transaction date falls before the window.
func (w SyncWindow) Before(date time.Time) bool {
	return truncateDay(date).Before(w.Start)
}

// AtBoundary reports whether the transaction date is on or before the
// window start. Pages are newest-first, so nothing after such a record is
// in scope.
func (w SyncWindow) AtBoundary(date time.Time) bool {
	return !truncateDay(date).After(w.Start)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RecordError reports a single row that could not be written.
type RecordError struct {
	SourceID string
	Record   Record
	Err      error
}

func (e RecordError) Error() string {
	if e.SourceID == "" {
		return e.Err.Error()
	}
	return e.SourceID + ": " + e.Err.Error()
}

func (e RecordError) Unwrap() error { return e.Err }

// UpsertResult is the outcome of a batched upsert.
type UpsertResult struct {
	Synced int
	Errors []RecordError
}

// SyncResult is the outcome of a single list → transform → upsert pass.
type SyncResult struct {
	// Table is the storage table that was refreshed.
	Table string

	// Success is false only for systemic failures: listing failed, every
	// record failed to transform, or the store became unreachable.
	Success bool

	// Message summarises the outcome for operators.
	Message string

	Fetched     int
	Transformed int
	Synced      int
	Errors      []RecordError
}

// Partial reports whether some but not all records were written.
func (r *SyncResult) Partial() bool {
	return r.Success && len(r.Errors) > 0
}

// ModuleState is the terminal state of a module within a historical sync.
type ModuleState string

// Module states.
const (
	ModuleDone    ModuleState = "done"
	ModuleStopped ModuleState = "stopped"
	ModuleFailed  ModuleState = "failed"
)

// ModuleOutcome records how a single module's historical sync ended.
type ModuleOutcome struct {
	Module  string
	State   ModuleState
	Synced  int
	Skipped int
	Pages   int
	Errors  []RecordError
	Err     error
}

// ModuleError is a module-scoped entry in a historical sync result.
type ModuleError struct {
	Module   string
	SourceID string
	Err      error
}

func (e ModuleError) Error() string {
	if e.SourceID == "" {
		return e.Module + ": " + e.Err.Error()
	}
	return e.Module + " " + e.SourceID + ": " + e.Err.Error()
}

func (e ModuleError) Unwrap() error { return e.Err }

// HistoricalSyncResult aggregates a multi-module historical sync run.
type HistoricalSyncResult struct {
	Window   SyncWindow
	Synced   map[string]int
	Errors   []ModuleError
	Stopped  bool
	Outcomes []ModuleOutcome
}

// Total returns the number of records synced across modules.
func (r *HistoricalSyncResult) Total() int {
	n := 0
	for _, c := range r.Synced {
		n += c
	}
	return n
}

// CancellationFlag is an in-memory stop request for a principal.
type CancellationFlag struct {
	PrincipalKey string
	Stopped      bool
	RequestedAt  time.Time
}

// SyncStatus is a best-effort progress snapshot of an active sync.
type SyncStatus struct {
	PrincipalKey string
	Module       string
	Page         int
	RecordIndex  int
	StartedAt    time.Time
	LastUpdateAt time.Time
	StopPending  bool
}
