package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const (
	StatusDraft     = "draft"
	StatusCompleted = "completed"
)

// Document is the persisted form of an editor draft. Metadata keys are unique;
// the column is JSONB, so key order is not meaningful.
type Document struct {
	ID               string
	OwnerID          string
	DocumentType     string
	Title            string
	Content          string
	Metadata         map[string]string
	GeneratedContent string
	Status           string
	UpdatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CommitInfo describes one revision in a document's history.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}
