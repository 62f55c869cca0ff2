package editor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultQuiescence is how long the session waits after the last edit before
// autosaving.
const DefaultQuiescence = 30 * time.Second

// Event is the passive status signal emitted when an automatic save fails.
// Editing is never interrupted; the surface may show an indicator.
type Event struct {
	Trigger TriggerKind
	Kind    ErrorKind
	Action  ReconcileAction
	Err     error
}

type Options struct {
	Quiescence    time.Duration
	Authenticated bool
	// Notify receives passive status events for automatic-save failures.
	Notify func(Event)
}

// Session runs the autosave machine for one open document: it owns the
// single debounce timer, dispatches save attempts to the Saver, and feeds
// completions back into the machine. Close cancels the timer so no stray
// save fires after teardown; an in-flight call is not cancelled, its result
// is simply ignored.
type Session struct {
	mu      sync.Mutex
	machine *Machine
	saver   Saver

	quiescence time.Duration
	notify     func(Event)

	timer  *time.Timer
	doneCh chan struct{}
	closed bool
}

func NewSession(saver Saver, draft DocumentDraft, opts Options) *Session {
	quiescence := opts.Quiescence
	if quiescence <= 0 {
		quiescence = DefaultQuiescence
	}
	return &Session{
		machine:    NewMachine(draft, opts.Authenticated),
		saver:      saver,
		quiescence: quiescence,
		notify:     opts.Notify,
		doneCh:     make(chan struct{}),
	}
}

// Edit applies a mutation and restarts the quiescence timer if the draft is
// now dirty. A burst of edits keeps resetting the same timer, so the burst
// coalesces into one save at (last edit + quiescence).
func (s *Session) Edit(mutate func(*DocumentDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.machine.Edit(mutate) {
		s.armTimerLocked()
	}
}

// Save is the explicit user-triggered save. It bypasses the debounce,
// cancels any pending timer, and returns the failure (if any) for the caller
// to route through Reconcile. While the draft's first create is in flight it
// waits for that create to settle rather than issuing a second one.
func (s *Session) Save(ctx context.Context, status Status) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return errors.New("editing session closed")
		}
		s.stopTimerLocked()
		att, err := s.machine.ManualSave(status)
		if err == nil {
			s.mu.Unlock()
			res, saveErr := s.saver.Save(ctx, att.Payload, att.TargetStatus)
			s.complete(att, res, saveErr, TriggerManual)
			return saveErr
		}
		if !errors.Is(err, errCreateInFlight) {
			s.mu.Unlock()
			return err
		}
		done := s.doneCh
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return saveError(NetworkError, ctx.Err().Error())
		}
	}
}

// SetAuthenticated updates the auth guard, e.g. after a mid-session login.
func (s *Session) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetAuthenticated(v)
}

// Draft returns a snapshot of the current draft state.
func (s *Session) Draft() DocumentDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Draft()
}

// Close tears the session down. The debounce timer is a scoped resource: it
// must not outlive the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimerLocked()
	// Wake any explicit save waiting out the initial create; it observes
	// closed on the next pass and returns.
	close(s.doneCh)
}

func (s *Session) armTimerLocked() {
	if s.timer != nil {
		s.timer.Reset(s.quiescence)
		return
	}
	s.timer = time.AfterFunc(s.quiescence, s.timerFired)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session) timerFired() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	att, ok := s.machine.TimerFired()
	s.mu.Unlock()
	if !ok {
		return
	}

	// Already on the timer's goroutine; the editing surface is never blocked.
	res, err := s.saver.Save(context.Background(), att.Payload, att.TargetStatus)
	s.complete(att, res, err, TriggerAuto)
}

func (s *Session) complete(att *SaveAttempt, res SaveResult, err error, trigger TriggerKind) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	c := s.machine.Complete(att, res, err)
	if c.Rearm {
		s.armTimerLocked()
	}
	// Wake explicit saves waiting out the initial create.
	close(s.doneCh)
	s.doneCh = make(chan struct{})
	notify := s.notify
	s.mu.Unlock()

	if err != nil && trigger == TriggerAuto && notify != nil {
		kind := KindOf(err)
		notify(Event{
			Trigger: trigger,
			Kind:    kind,
			Action:  Reconcile(kind, trigger),
			Err:     err,
		})
	}
}
