package summary

import "github.com/pkg/errors"

// Typed outcomes of composer and gateway operations. The reconciler branches
// on these with errors.Is instead of catching platform-specific failures.
var (
	// ErrTextTooLong means the composed summary exceeds MaxSummaryLength.
	ErrTextTooLong = errors.New("too much pinned messages")
	// ErrPermissionDenied means the bot lacks rights for the operation,
	// typically pinning.
	ErrPermissionDenied = errors.New("not enough rights")
	// ErrMessageNotFound means the edit target was deleted externally.
	ErrMessageNotFound = errors.New("summary message not found")
	// ErrMemberNotFound means the item author could not be resolved, e.g.
	// the user left the chat.
	ErrMemberNotFound = errors.New("chat member not found")
	// ErrRateLimited means the messaging surface rejected the call with a
	// flood limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrFatalInconsistency means internal and external summary state have
	// diverged and the run could not restore the invariant. The next
	// reconciliation re-attempts from scratch.
	ErrFatalInconsistency = errors.New("summary state diverged")
)
