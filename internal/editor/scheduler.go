package editor

import "errors"

// State of the autosave machine. PendingTimer is re-armed in place by new
// changes; there is never a second timer.
type State int

const (
	Idle State = iota
	PendingTimer
	Saving
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case PendingTimer:
		return "pending-timer"
	case Saving:
		return "saving"
	}
	return "unknown"
}

// errCreateInFlight signals that a save cannot start while the first create
// for this draft has not completed: only one create is ever issued.
var errCreateInFlight = errors.New("create in flight")

// Machine is the synchronous core of the autosave scheduler. Every
// transition is an ordinary method call so the state machine is testable
// without timers or goroutines; Session supplies the single real timer and
// runs save attempts as asynchronous tasks that post completions back in.
//
// The caller is responsible for serializing access.
type Machine struct {
	draft         DocumentDraft
	authenticated bool

	timerArmed    bool
	inFlight      int
	pendingChange bool

	generation uint64 // last issued attempt
	applied    uint64 // newest generation whose result has been applied
}

func NewMachine(draft DocumentDraft, authenticated bool) *Machine {
	if draft.LastFingerprint == "" && draft.Identity != "" {
		draft.LastFingerprint = Fingerprint(draft)
	}
	return &Machine{draft: cloneDraft(draft), authenticated: authenticated}
}

func (m *Machine) State() State {
	switch {
	case m.inFlight > 0:
		return Saving
	case m.timerArmed:
		return PendingTimer
	default:
		return Idle
	}
}

func (m *Machine) Draft() DocumentDraft {
	return cloneDraft(m.draft)
}

func (m *Machine) Authenticated() bool {
	return m.authenticated
}

// SetAuthenticated flips the session's auth guard; queued edits stay in
// memory, so logging in mid-session lets the next trigger save them.
func (m *Machine) SetAuthenticated(v bool) {
	m.authenticated = v
}

// Edit applies a mutation to the draft and reports whether the caller should
// (re)arm the quiescence timer. Clean edits (fingerprint unchanged) arm
// nothing.
func (m *Machine) Edit(mutate func(*DocumentDraft)) bool {
	mutate(&m.draft)
	dirty, _ := ShouldSave(m.draft, m.draft.LastFingerprint)
	if !dirty {
		return false
	}
	m.timerArmed = true
	return true
}

// TimerFired turns a quiescence expiry into a save attempt. Automatic saves
// always target StatusDraft, are skipped silently when the session is not
// authenticated, and never overlap another in-flight save; a fire that finds
// one in flight defers to the next completion. A fire that finds the draft
// back at its persisted fingerprint (an edit burst that ended in a revert)
// saves nothing.
func (m *Machine) TimerFired() (*SaveAttempt, bool) {
	m.timerArmed = false
	if !m.authenticated {
		return nil, false
	}
	if dirty, _ := ShouldSave(m.draft, m.draft.LastFingerprint); !dirty {
		return nil, false
	}
	if m.inFlight > 0 {
		m.pendingChange = true
		return nil, false
	}
	return m.startAttempt(StatusDraft), true
}

// ManualSave starts an explicit save, bypassing the debounce and cancelling
// any pending timer. It fails with AuthRequired before touching the network
// when the session is unauthenticated, and with errCreateInFlight while the
// draft's first create is still outstanding.
func (m *Machine) ManualSave(status Status) (*SaveAttempt, error) {
	m.timerArmed = false
	if !m.authenticated {
		return nil, saveError(AuthRequired, "authentication required")
	}
	if m.inFlight > 0 && m.draft.Identity == "" {
		return nil, errCreateInFlight
	}
	return m.startAttempt(status), nil
}

func (m *Machine) startAttempt(status Status) *SaveAttempt {
	m.generation++
	m.inFlight++
	payload := cloneDraft(m.draft)
	payload.Status = status
	return &SaveAttempt{
		Generation:   m.generation,
		TargetStatus: status,
		Payload:      payload,
	}
}

// Completion describes what a finished attempt did to the machine.
type Completion struct {
	Applied bool // result reconciled into the draft
	Stale   bool // superseded by a newer generation; result discarded
	Rearm   bool // a change arrived mid-flight; caller should arm the timer
}

// Complete posts an attempt's result back into the machine. A successful
// response for a generation older than the newest applied one is discarded:
// it must not overwrite state written by a newer save. The first successful
// create fixes the draft's identity for the rest of the session.
func (m *Machine) Complete(att *SaveAttempt, res SaveResult, err error) Completion {
	if m.inFlight > 0 {
		m.inFlight--
	}

	c := Completion{}
	if err == nil {
		if att.Generation <= m.applied {
			c.Stale = true
		} else {
			m.applied = att.Generation
			if m.draft.Identity == "" {
				m.draft.Identity = res.Identity
			}
			m.draft.Status = att.TargetStatus
			m.draft.LastSavedAt = res.SavedAt
			m.draft.LastFingerprint = Fingerprint(att.Payload)
			c.Applied = true
		}
	}

	if m.pendingChange && m.inFlight == 0 {
		m.pendingChange = false
		c.Rearm = true
	}
	return c
}
