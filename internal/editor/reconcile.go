package editor

// TriggerKind distinguishes debounce-fired saves from user-triggered ones.
type TriggerKind int

const (
	TriggerAuto TriggerKind = iota
	TriggerManual
)

// ReconcileAction is what the editing surface should do with a failed save.
type ReconcileAction int

const (
	// SilentRetryLater: keep the edits in memory; the next change or manual
	// save attempts again. Automatic saves also report a passive status event.
	SilentRetryLater ReconcileAction = iota
	SurfaceToUser
	RedirectToLogin
)

func (a ReconcileAction) String() string {
	switch a {
	case SilentRetryLater:
		return "silent-retry-later"
	case SurfaceToUser:
		return "surface-to-user"
	case RedirectToLogin:
		return "redirect-to-login"
	}
	return "unknown"
}

// Reconcile is the single decision point for retry-vs-surface behavior.
func Reconcile(kind ErrorKind, trigger TriggerKind) ReconcileAction {
	if trigger == TriggerAuto {
		// Automatic saves never interrupt editing; every failure waits for
		// the next natural trigger.
		return SilentRetryLater
	}
	if kind == AuthRequired {
		return RedirectToLogin
	}
	return SurfaceToUser
}
