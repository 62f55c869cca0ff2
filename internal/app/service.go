package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"draftdesk/api/internal/auth"
	"draftdesk/api/internal/authpw"
	"draftdesk/api/internal/config"
	"draftdesk/api/internal/export"
	"draftdesk/api/internal/gitrepo"
	"draftdesk/api/internal/search"
	"draftdesk/api/internal/store"
	"draftdesk/api/internal/util"
)

// Session is one authenticated caller, reconstructed per request from the
// bearer token.
type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// DocumentInput is the write shape shared by create and update.
type DocumentInput struct {
	DocumentType     string            `json:"documentType"`
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	Metadata         map[string]string `json:"metadata"`
	GeneratedContent string            `json:"generatedContent"`
	Status           string            `json:"status"`
}

type dataStore interface {
	InsertDocument(ctx context.Context, doc store.Document) (store.Document, error)
	UpdateDocument(ctx context.Context, doc store.Document) (store.Document, error)
	GetDocument(ctx context.Context, id string) (store.Document, error)
	ListDocumentsByOwner(ctx context.Context, ownerID string) ([]store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

// RefreshStore holds refresh sessions. Redis serves this in production; the
// Postgres store offers the same methods as a fallback.
type RefreshStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type gitService interface {
	Commit(documentID string, snap gitrepo.Snapshot, author, message string) (store.CommitInfo, error)
	History(documentID string, limit int) ([]store.CommitInfo, error)
	SnapshotAt(documentID, hash string) (gitrepo.Snapshot, error)
}

type searchIndex interface {
	Search(q search.Query) search.Response
	IndexDocument(doc search.DocumentRecord)
	DeleteDocument(id string)
}

type exporter interface {
	Export(doc export.Document, format export.Format) (*export.Result, error)
}

type artifactStore interface {
	PutExport(ctx context.Context, documentID, filename, contentType string, data []byte) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions RefreshStore
	git      gitService
	search   searchIndex
	exporter exporter
	blobs    artifactStore
	authpw   *authpw.Service
}

func New(cfg config.Config, dataStore dataStore, sessions RefreshStore, git gitService) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		git:      git,
		exporter: export.NewService(),
	}
}

// WithSearch attaches the search facade. Optional: without it the search
// endpoint reports unavailable.
func (s *Service) WithSearch(idx searchIndex) *Service {
	s.search = idx
	return s
}

// WithAuthPassword attaches email/password authentication.
func (s *Service) WithAuthPassword(svc *authpw.Service) *Service {
	s.authpw = svc
	return s
}

// WithArtifactStore attaches the export artifact archive.
func (s *Service) WithArtifactStore(blobs artifactStore) *Service {
	s.blobs = blobs
	return s
}

// WithExporter overrides the document renderer, used by tests.
func (s *Service) WithExporter(e exporter) *Service {
	s.exporter = e
	return s
}

func (s *Service) AuthPasswordService() *authpw.Service {
	return s.authpw
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// AutosaveInterval is the quiescence window advertised to editor clients.
func (s *Service) AutosaveInterval() time.Duration {
	return s.cfg.AutosaveInterval
}

// --- sessions ---

// CreateSession issues an access token and refresh token for a verified user.
func (s *Service) CreateSession(ctx context.Context, userID string) (Session, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	user, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	// Rotation: the presented token is dead either way.
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	// The Redis store only keeps the user id; reload the full record.
	user, err = s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:  user.ID,
		Name: user.DisplayName,
		JTI:  jti,
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// --- documents ---

func validateDocumentInput(input DocumentInput) error {
	if strings.TrimSpace(input.DocumentType) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "documentType is required", nil)
	}
	switch input.Status {
	case "", store.StatusDraft, store.StatusCompleted:
	default:
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("status must be %q or %q", store.StatusDraft, store.StatusCompleted), nil)
	}
	return nil
}

func (s *Service) CreateDocument(ctx context.Context, session Session, input DocumentInput) (store.Document, error) {
	if err := validateDocumentInput(input); err != nil {
		return store.Document{}, err
	}
	status := input.Status
	if status == "" {
		status = store.StatusDraft
	}

	doc := store.Document{
		ID:               util.NewID("doc"),
		OwnerID:          session.UserID,
		DocumentType:     input.DocumentType,
		Title:            input.Title,
		Content:          input.Content,
		Metadata:         input.Metadata,
		GeneratedContent: input.GeneratedContent,
		Status:           status,
		UpdatedBy:        session.UserID,
	}
	saved, err := s.store.InsertDocument(ctx, doc)
	if err != nil {
		return store.Document{}, fmt.Errorf("insert document: %w", err)
	}

	s.recordRevision(saved, session.UserName, "Create document")
	s.indexDocument(saved)
	return saved, nil
}

func (s *Service) UpdateDocument(ctx context.Context, session Session, documentID string, input DocumentInput) (store.Document, error) {
	if err := validateDocumentInput(input); err != nil {
		return store.Document{}, err
	}
	existing, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return store.Document{}, err
	}

	status := input.Status
	if status == "" {
		status = existing.Status
	}
	doc := existing
	doc.DocumentType = input.DocumentType
	doc.Title = input.Title
	doc.Content = input.Content
	doc.Metadata = input.Metadata
	doc.GeneratedContent = input.GeneratedContent
	doc.Status = status
	doc.UpdatedBy = session.UserID

	saved, err := s.store.UpdateDocument(ctx, doc)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
		}
		return store.Document{}, fmt.Errorf("update document: %w", err)
	}

	s.recordRevision(saved, session.UserName, "Save document")
	s.indexDocument(saved)
	return saved, nil
}

func (s *Service) GetDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	return s.ownedDocument(ctx, session, documentID)
}

func (s *Service) ListDocuments(ctx context.Context, session Session) ([]store.Document, error) {
	return s.store.ListDocumentsByOwner(ctx, session.UserID)
}

func (s *Service) DeleteDocument(ctx context.Context, session Session, documentID string) error {
	if _, err := s.ownedDocument(ctx, session, documentID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if s.search != nil {
		s.search.DeleteDocument(documentID)
	}
	return nil
}

// ownedDocument loads a document and enforces ownership. Someone else's
// document answers NOT_FOUND, not FORBIDDEN: its existence is private.
func (s *Service) ownedDocument(ctx context.Context, session Session, documentID string) (store.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
		}
		return store.Document{}, err
	}
	if doc.OwnerID != session.UserID {
		return store.Document{}, domainError(http.StatusNotFound, "NOT_FOUND", "Document not found", nil)
	}
	return doc, nil
}

// recordRevision commits the saved state to the document's git history.
// Best effort: a history failure never fails the save.
func (s *Service) recordRevision(doc store.Document, author, message string) {
	if s.git == nil {
		return
	}
	snap := gitrepo.Snapshot{
		DocumentType:     doc.DocumentType,
		Title:            doc.Title,
		Content:          doc.Content,
		Metadata:         doc.Metadata,
		GeneratedContent: doc.GeneratedContent,
		Status:           doc.Status,
	}
	if _, err := s.git.Commit(doc.ID, snap, author, message); err != nil {
		log.Printf("gitrepo: commit %s: %v", doc.ID, err)
	}
}

func (s *Service) indexDocument(doc store.Document) {
	if s.search == nil {
		return
	}
	s.search.IndexDocument(search.DocumentRecord{
		ID:           doc.ID,
		OwnerID:      doc.OwnerID,
		DocumentType: doc.DocumentType,
		Title:        doc.Title,
		Content:      doc.Content,
		Status:       doc.Status,
	})
}

// --- history ---

func (s *Service) History(ctx context.Context, session Session, documentID string, limit int) ([]store.CommitInfo, error) {
	if _, err := s.ownedDocument(ctx, session, documentID); err != nil {
		return nil, err
	}
	if s.git == nil {
		return []store.CommitInfo{}, nil
	}
	return s.git.History(documentID, limit)
}

// RevisionContent returns the document as saved at a specific revision.
func (s *Service) RevisionContent(ctx context.Context, session Session, documentID, hash string) (gitrepo.Snapshot, error) {
	if _, err := s.ownedDocument(ctx, session, documentID); err != nil {
		return gitrepo.Snapshot{}, err
	}
	if s.git == nil {
		return gitrepo.Snapshot{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision history unavailable", nil)
	}
	snap, err := s.git.SnapshotAt(documentID, hash)
	if err != nil {
		return gitrepo.Snapshot{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	return snap, nil
}

// --- export ---

func (s *Service) ExportDocument(ctx context.Context, session Session, documentID string, format export.Format) (*export.Result, error) {
	doc, err := s.ownedDocument(ctx, session, documentID)
	if err != nil {
		return nil, err
	}

	result, err := s.exporter.Export(export.Document{
		ID:               doc.ID,
		DocumentType:     doc.DocumentType,
		Title:            doc.Title,
		Content:          doc.Content,
		Metadata:         doc.Metadata,
		GeneratedContent: doc.GeneratedContent,
		Author:           session.UserName,
		UpdatedAt:        doc.UpdatedAt,
	}, format)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) || errors.Is(err, export.ErrDOCXDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil)
		}
		return nil, fmt.Errorf("export document: %w", err)
	}

	if s.blobs != nil {
		if key, err := s.blobs.PutExport(ctx, doc.ID, result.Filename, result.MimeType, result.Data); err != nil {
			log.Printf("blob: archive export %s: %v", doc.ID, err)
		} else {
			log.Printf("blob: archived export %s", key)
		}
	}
	return result, nil
}

// --- search ---

func (s *Service) Search(ctx context.Context, session Session, text, documentType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(search.Query{
		Text:         text,
		OwnerID:      session.UserID,
		DocumentType: documentType,
		Limit:        limit,
		Offset:       offset,
	}), nil
}

// --- assisted drafting ---

// GenerateContent drafts text for a document from its metadata. The
// generation pipeline is intentionally local and deterministic; the endpoint
// carries the admission-control class either way.
func (s *Service) GenerateContent(ctx context.Context, session Session, documentID string, input DocumentInput) (string, error) {
	if err := validateDocumentInput(input); err != nil {
		return "", err
	}

	generated := draftFromInput(input)

	if documentID != "" {
		doc, err := s.ownedDocument(ctx, session, documentID)
		if err != nil {
			return "", err
		}
		doc.GeneratedContent = generated
		doc.UpdatedBy = session.UserID
		if _, err := s.store.UpdateDocument(ctx, doc); err != nil {
			return "", fmt.Errorf("store generated content: %w", err)
		}
	}
	return generated, nil
}

func draftFromInput(input DocumentInput) string {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "Untitled"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Draft %s: %s\n\n", input.DocumentType, title)

	keys := make([]string, 0, len(input.Metadata))
	for k := range input.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, input.Metadata[k])
	}
	if content := strings.TrimSpace(input.Content); content != "" {
		fmt.Fprintf(&b, "\n%s\n", content)
	}
	return b.String()
}

// ChatReply answers a chat message about one of the user's documents.
func (s *Service) ChatReply(ctx context.Context, session Session, documentID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message is required", nil)
	}

	if documentID != "" {
		doc, err := s.ownedDocument(ctx, session, documentID)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Regarding %q: %s", doc.Title, summarizeForReply(doc.Content)), nil
	}
	return "How can I help with your document?", nil
}

func summarizeForReply(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "the document is still empty."
	}
	words := strings.Fields(trimmed)
	return fmt.Sprintf("the document currently has %d words.", len(words))
}
