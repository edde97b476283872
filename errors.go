package kernel

import "errors"

// Sentinel errors returned by the public API for recoverable caller
// mistakes. Corruption and broken internal invariants go through assertf
// (assert.go) instead of an error return — see SPEC_FULL.md §7.
var (
	// ErrNotInitialized is returned by ThreadInit when it is called
	// before Init.
	ErrNotInitialized = errors.New("kernel: not initialized")

	// ErrAlreadyInitialized is returned by Init if called more than once.
	ErrAlreadyInitialized = errors.New("kernel: already initialized")

	// ErrBadPriority is returned when a requested priority falls outside
	// [MinPrio, MaxPrio].
	ErrBadPriority = errors.New("kernel: priority out of range")

	// ErrBadInitialState is returned by ThreadInit when the requested
	// initial state is not Runnable or Blocked (Sleeping and Dead are
	// rejected as initial states).
	ErrBadInitialState = errors.New("kernel: invalid initial thread state")

	// ErrSelfKill is returned by Kill when called on the current thread;
	// use Suicide for self-termination instead.
	ErrSelfKill = errors.New("kernel: thread cannot kill itself")

	// ErrSelfJoin is returned by Join when a thread attempts to join
	// itself.
	ErrSelfJoin = errors.New("kernel: thread cannot join itself")

	// ErrNotOwner is returned by Mutex.Unlock when the caller does not
	// hold the mutex.
	ErrNotOwner = errors.New("kernel: mutex not owned by caller")
)
