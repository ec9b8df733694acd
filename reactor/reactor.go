// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral selector interface for readiness multiplexing.

package reactor

import "strings"

// Ops is an interest or readiness set.
type Ops uint32

const (
	// OpRead is read readiness. Hang-ups and socket errors are reported as
	// OpRead so that the following read observes them.
	OpRead Ops = 1 << iota
	// OpWrite is write readiness.
	OpWrite
)

func (o Ops) String() string {
	var parts []string
	if o&OpRead != 0 {
		parts = append(parts, "read")
	}
	if o&OpWrite != 0 {
		parts = append(parts, "write")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event contains readiness information returned by Wait.
type Event struct {
	Fd  int // Ready file descriptor.
	Ops Ops // Conditions that are ready.
}

// Selector multiplexes readiness over registered descriptors.
//
// Add, Modify, Remove and Wait belong to the thread that owns the event loop.
// Wakeup may be called from any goroutine.
type Selector interface {
	// Add registers fd with the given interest set.
	Add(fd int, ops Ops) error

	// Modify replaces the interest set of a registered fd.
	Modify(fd int, ops Ops) error

	// Remove unregisters fd. Unknown descriptors are not an error.
	Remove(fd int) error

	// Wait blocks until at least one registered fd is ready, Wakeup is
	// called, or timeoutMs elapses (timeoutMs < 0 blocks indefinitely).
	// Ready events are written into events; the count is returned.
	Wait(events []Event, timeoutMs int) (int, error)

	// Wakeup makes a blocked or the next Wait return promptly. Repeated
	// calls before that Wait are coalesced.
	Wakeup() error

	// Close releases the selector. Wakeup after Close is a no-op.
	Close() error
}
