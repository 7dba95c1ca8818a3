package txcache

// Hooks are lightweight callbacks for high-signal transaction events.
// Implementations MUST be cheap and non-blocking; the transaction calls them
// inline on its hot paths. Wrap with hooks/async if a sink can stall.
type Hooks interface {
	// A deferred action failed during commit replay. The whole transaction
	// is about to roll back. err is nil when the backend reported a plain
	// ok=false (e.g. a CAS conflict) rather than a transport error.
	ReplayFailed(txID, op string, keys []string, err error)

	// A compensating delete during rollback failed. Rollback continues;
	// the named key may hold a stale value.
	RollbackDeleteError(txID, key string, err error)

	// Close was called while the deferred log was non-empty (uncommitted
	// work discarded; a caller bug).
	DanglingTx(txID string, pending int)

	// A read was answered "not found" because an uncommitted flush is
	// pending. Can fire at very high rates; sample before logging.
	SuspendedReadMiss(txID, key string)

	// A commit replayed every deferred action successfully.
	CommitApplied(txID string, actions int)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) ReplayFailed(string, string, []string, error) {}
func (NopHooks) RollbackDeleteError(string, string, error)    {}
func (NopHooks) DanglingTx(string, int)                       {}
func (NopHooks) SuspendedReadMiss(string, string)             {}
func (NopHooks) CommitApplied(string, int)                    {}
