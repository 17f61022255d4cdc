// Package progress implements the progress-reporting and cancellation
// framework threaded through long-running device operations: flash writes,
// multi-packet reads, and anything else that can usefully report partial
// completion and be cancelled mid-flight.
package progress

import "sync"

// taskState is the shared, mutable state behind a Task and the CancelToken
// derived from it. Copies of Task/CancelToken are cheap handles onto the
// same taskState.
type taskState struct {
	mu        sync.Mutex
	total     int // 0 means unbound
	done      int
	cancelled bool
	seq       *Sequence // nil for a zero Task

	onAdvance  func(done, total int)
	onError    func(message string)
	onProgress func(message string)
}

// CancelToken is a read-only view onto a Task's cancellation state, handed
// to code that needs to notice cancellation but must not be able to report
// progress or send messages.
type CancelToken struct {
	state *taskState
}

// IsCancelled reports whether the owning Task (or its Sequence) has been
// cancelled.
func (c CancelToken) IsCancelled() bool {
	if c.state == nil {
		return false
	}
	c.state.mu.Lock()
	cancelled, seq := c.state.cancelled, c.state.seq
	c.state.mu.Unlock()
	return cancelled || (seq != nil && seq.IsCancelled())
}

// Task tracks one unit of work within a Sequence: how many steps it has
// taken towards its total (if bound), and whether the operation should stop.
type Task struct {
	state *taskState
}

// IsCancelled reports whether the task has been cancelled.
func (t Task) IsCancelled() bool {
	return CancelToken{state: t.state}.IsCancelled()
}

// SendErrorMessage reports a user-facing error without failing the task.
func (t Task) SendErrorMessage(message string) {
	if t.state == nil {
		return
	}
	t.state.mu.Lock()
	cb := t.state.onError
	t.state.mu.Unlock()
	if cb != nil {
		cb(message)
	}
}

// SendProgressMessage reports a free-form progress description.
func (t Task) SendProgressMessage(message string) {
	if t.state == nil {
		return
	}
	t.state.mu.Lock()
	cb := t.state.onProgress
	t.state.mu.Unlock()
	if cb != nil {
		cb(message)
	}
}

// AdvanceByIsCancelled advances the task by stepsDone and reports whether
// the caller should stop because the task was cancelled. Operations that
// can check for cancellation between chunks (e.g. a read loop) should call
// this and bail out when it returns true.
func (t Task) AdvanceByIsCancelled(stepsDone int) bool {
	if t.state == nil {
		return false
	}
	t.state.mu.Lock()
	t.state.done += stepsDone
	done, total, cancelled := t.state.done, t.state.total, t.state.cancelled
	cb, seq := t.state.onAdvance, t.state.seq
	t.state.mu.Unlock()
	if cb != nil {
		cb(done, total)
	}
	return cancelled || (seq != nil && seq.IsCancelled())
}

// AdvanceByIgnoreCancel advances the task by stepsDone without reporting
// cancellation, for operations that cannot be safely interrupted mid-chunk
// (e.g. a flash sector already in flight).
func (t Task) AdvanceByIgnoreCancel(stepsDone int) {
	t.AdvanceByIsCancelled(stepsDone)
}

// CancelToken returns a read-only cancellation view of this task.
func (t Task) CancelToken() CancelToken {
	return CancelToken{state: t.state}
}

// Sequence groups the tasks belonging to one logical operation (e.g. "write
// firmware") so they can be cancelled together and report through the same
// message callbacks.
type Sequence struct {
	mu        sync.Mutex
	cancelled bool
	onError   func(message string)
	onResult  func(message string)
}

// IsCancelled reports whether the sequence (and therefore every task
// created from it) has been cancelled.
func (s *Sequence) IsCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// SendErrorMessage reports a sequence-level error.
func (s *Sequence) SendErrorMessage(message string) {
	s.mu.Lock()
	cb := s.onError
	s.mu.Unlock()
	if cb != nil {
		cb(message)
	}
}

// SendResultMessage reports a sequence-level result.
func (s *Sequence) SendResultMessage(message string) {
	s.mu.Lock()
	cb := s.onResult
	s.mu.Unlock()
	if cb != nil {
		cb(message)
	}
}

// CreateTaskUnbound starts a task with no known total step count.
func (s *Sequence) CreateTaskUnbound(onAdvance func(done, total int)) Task {
	return Task{state: &taskState{seq: s, onAdvance: onAdvance}}
}

// CreateTaskBound starts a task expected to take totalSteps steps.
func (s *Sequence) CreateTaskBound(totalSteps int, onAdvance func(done, total int)) Task {
	return Task{state: &taskState{seq: s, total: totalSteps, onAdvance: onAdvance}}
}

func (s *Sequence) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Notifier is the entry point callers use to start a cancellable sequence
// of tasks and subscribe to its lifecycle. Unlike the underlying C++
// signals2-based bus, subscription is a plain set of optional callbacks set
// once up front; tcsicore has a single subscriber per Notifier (the owning
// UI/controller), so a broadcast mechanism adds indirection without buying
// anything.
type Notifier struct {
	mu       sync.Mutex
	current  *Sequence
	inFlight bool

	OnSequenceStarted  func()
	OnSequenceFinished func()
	OnErrorMessage     func(message string)
	OnResultMessage    func(message string)
	OnProgressMessage  func(message string)
	OnTaskAdvanced     func(done, total int)
}

// NewNotifier builds an idle Notifier.
func NewNotifier() *Notifier { return &Notifier{} }

// IsInProgress reports whether a sequence is currently running.
func (n *Notifier) IsInProgress() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inFlight
}

// StartSequence begins a new sequence, firing OnSequenceStarted. The caller
// must call Finish on the returned Sequence when the operation completes.
func (n *Notifier) StartSequence() *Sequence {
	n.mu.Lock()
	seq := &Sequence{
		onError:  n.OnErrorMessage,
		onResult: n.OnResultMessage,
	}
	n.current = seq
	n.inFlight = true
	started := n.OnSequenceStarted
	n.mu.Unlock()

	if started != nil {
		started()
	}
	return seq
}

// Finish ends the currently running sequence, firing OnSequenceFinished.
func (n *Notifier) Finish() {
	n.mu.Lock()
	n.current = nil
	n.inFlight = false
	finished := n.OnSequenceFinished
	n.mu.Unlock()

	if finished != nil {
		finished()
	}
}

// CancelCurrent cancels whatever sequence is currently running, if any.
func (n *Notifier) CancelCurrent() {
	n.mu.Lock()
	seq := n.current
	n.mu.Unlock()

	if seq != nil {
		seq.cancel()
	}
}
