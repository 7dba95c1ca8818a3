package txcache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDanglingTx is returned by Close when the deferred log is non-empty:
// the caller discarded a transaction without Commit or Rollback.
var ErrDanglingTx = errors.New("txcache: transaction discarded with uncommitted writes")

// CommitError reports the deferred action that aborted a commit. By the time
// the caller sees it, rollback has already run: every key written during the
// commit attempt has been invalidated on the backend.
type CommitError struct {
	Op    string   // deferred action kind ("set", "cas", ...)
	Keys  []string // keys the failing action targeted
	Index int      // position in the deferred log
	Err   error    // nil when the backend reported plain failure (ok=false)
}

func (e *CommitError) Error() string {
	keys := strings.Join(e.Keys, ",")
	if e.Err != nil {
		return fmt.Sprintf("txcache: commit aborted at action %d (%s %q): %v",
			e.Index, e.Op, keys, e.Err)
	}
	return fmt.Sprintf("txcache: commit aborted at action %d (%s %q): backend rejected",
		e.Index, e.Op, keys)
}

func (e *CommitError) Unwrap() error { return e.Err }
