// Package editor implements the client side of the autosave pipeline: change
// detection, the debounced save scheduler, the persistence client, and the
// failure reconciler. It is the library an editing frontend embeds for one
// open document.
package editor

import "time"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusCompleted Status = "completed"
)

// DocumentDraft is the editable state owned by one editing session. Identity
// is empty until the first successful create and never changes afterwards.
type DocumentDraft struct {
	Identity         string
	DocumentType     string
	Title            string
	Content          string
	Metadata         map[string]string
	GeneratedContent string
	Status           Status
	LastSavedAt      time.Time
	LastFingerprint  string
}

// SaveAttempt is one triggered save: a generation tag, the target status, and
// a snapshot of the draft at trigger time. Attempts superseded by a newer
// generation are discarded on completion.
type SaveAttempt struct {
	Generation   uint64
	TargetStatus Status
	Payload      DocumentDraft
}

// SaveResult is the reconciled outcome of a successful save.
type SaveResult struct {
	Identity string
	SavedAt  time.Time
}

func cloneDraft(d DocumentDraft) DocumentDraft {
	copied := d
	if d.Metadata != nil {
		copied.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			copied.Metadata[k] = v
		}
	}
	return copied
}
