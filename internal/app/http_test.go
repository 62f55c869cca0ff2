package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"draftdesk/api/internal/authpw"
	"draftdesk/api/internal/config"
	"draftdesk/api/internal/export"
	"draftdesk/api/internal/gitrepo"
	"draftdesk/api/internal/ratelimit"
	"draftdesk/api/internal/search"
	"draftdesk/api/internal/store"
	"draftdesk/api/internal/util"
)

// fakeStore backs the service layer in-memory. It covers both the document
// store and the user store the password flows need.
type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]store.Document
	users    map[string]store.User
	byEmail  map[string]string
	revoked  map[string]bool
	resets   map[string]string
	verifyBy map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:     map[string]store.Document{},
		users:    map[string]store.User{},
		byEmail:  map[string]string{},
		revoked:  map[string]bool{},
		resets:   map[string]string{},
		verifyBy: map[string]string{},
	}
}

func (f *fakeStore) addUser(user store.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	f.byEmail[user.Email] = user.ID
}

func (f *fakeStore) InsertDocument(_ context.Context, doc store.Document) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeStore) UpdateDocument(_ context.Context, doc store.Document) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.docs[doc.ID]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now().UTC()
	f.docs[doc.ID] = doc
	return doc, nil
}

func (f *fakeStore) GetDocument(_ context.Context, id string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (f *fakeStore) ListDocumentsByOwner(_ context.Context, ownerID string) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Document
	for _, doc := range f.docs {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return f.users[id], nil
}

func (f *fakeStore) CreateUser(_ context.Context, user store.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	f.byEmail[user.Email] = user.ID
	if user.VerificationToken != "" {
		f.verifyBy[user.VerificationToken] = user.ID
	}
	return nil
}

func (f *fakeStore) UpdateUserVerificationToken(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.VerificationToken = token
	f.users[userID] = user
	f.verifyBy[token] = userID
	return nil
}

func (f *fakeStore) VerifyUserEmail(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.verifyBy[token]
	if !ok {
		return store.ErrNotFound
	}
	user := f.users[userID]
	user.IsEmailVerified = true
	f.users[userID] = user
	return nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[userID]
	user.PasswordHash = passwordHash
	f.users[userID] = user
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, userID, token string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets[token] = userID
	return nil
}

func (f *fakeStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[token]
	if !ok {
		return "", store.ErrNotFound
	}
	return userID, nil
}

func (f *fakeStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.resets, token)
	return nil
}

func (f *fakeStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = true
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.revoked[jti], nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeSessions stores refresh sessions keyed by token hash.
type fakeSessions struct {
	mu    sync.Mutex
	byKey map[string]string
	users *fakeStore
}

func newFakeSessions(users *fakeStore) *fakeSessions {
	return &fakeSessions{byKey: map[string]string{}, users: users}
}

func (f *fakeSessions) SaveRefreshSession(_ context.Context, tokenHash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKey[tokenHash] = userID
	return nil
}

func (f *fakeSessions) LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error) {
	f.mu.Lock()
	userID, ok := f.byKey[tokenHash]
	f.mu.Unlock()
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return f.users.GetUserByID(ctx, userID)
}

func (f *fakeSessions) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byKey, tokenHash)
	return nil
}

type fakeGit struct {
	mu      sync.Mutex
	commits map[string][]store.CommitInfo
	snaps   map[string]gitrepo.Snapshot
}

func newFakeGit() *fakeGit {
	return &fakeGit{commits: map[string][]store.CommitInfo{}, snaps: map[string]gitrepo.Snapshot{}}
}

func (f *fakeGit) Commit(documentID string, snap gitrepo.Snapshot, author, message string) (store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := store.CommitInfo{
		Hash:      util.NewID("c"),
		Message:   message,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
	// Newest first, matching the real history order.
	f.commits[documentID] = append([]store.CommitInfo{info}, f.commits[documentID]...)
	f.snaps[info.Hash] = snap
	return info, nil
}

func (f *fakeGit) History(documentID string, limit int) ([]store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := f.commits[documentID]
	if limit > 0 && len(commits) > limit {
		commits = commits[:limit]
	}
	return append([]store.CommitInfo(nil), commits...), nil
}

func (f *fakeGit) SnapshotAt(_, hash string) (gitrepo.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.snaps[hash]
	if !ok {
		return gitrepo.Snapshot{}, fmt.Errorf("unknown revision %s", hash)
	}
	return snap, nil
}

type fakeSearch struct {
	mu      sync.Mutex
	queries []search.Query
	results []search.Result
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return search.Response{Results: f.results, Total: len(f.results), Query: q.Text}
}

func (f *fakeSearch) IndexDocument(search.DocumentRecord) {}
func (f *fakeSearch) DeleteDocument(string)              {}

type fakeExporter struct {
	unavailable bool
}

func (f *fakeExporter) Export(doc export.Document, format export.Format) (*export.Result, error) {
	if f.unavailable {
		return nil, export.ErrPDFDependencyMissing
	}
	return &export.Result{
		Data:     []byte("export of " + doc.Title),
		Filename: "document." + string(format),
		MimeType: "application/octet-stream",
	}, nil
}

type testEnv struct {
	server   *httptest.Server
	service  *Service
	store    *fakeStore
	sessions *fakeSessions
	git      *fakeGit
	search   *fakeSearch
	exporter *fakeExporter
}

func testClasses() map[ratelimit.Class][]ratelimit.Tier {
	return map[ratelimit.Class][]ratelimit.Tier{
		ratelimit.ClassChat:     {{Name: "per-minute", Limit: 100, Window: time.Minute}},
		ratelimit.ClassGenerate: {{Name: "per-minute", Limit: 5, Window: time.Minute}},
		ratelimit.ClassAPI:      {{Name: "per-minute", Limit: 1000, Window: time.Minute}},
		ratelimit.ClassLogin:    {{Name: "per-minute", Limit: 10, Window: time.Minute}},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Config{
		JWTSecret:        "test-secret",
		AccessTTL:        time.Hour,
		RefreshTTL:       24 * time.Hour,
		AutosaveInterval: 30 * time.Second,
		CORSOrigin:       "*",
	}

	fs := newFakeStore()
	sessions := newFakeSessions(fs)
	git := newFakeGit()
	idx := &fakeSearch{}
	exp := &fakeExporter{}

	svc := New(cfg, fs, sessions, git).
		WithSearch(idx).
		WithExporter(exp).
		WithAuthPassword(authpw.NewService(fs))

	limiter := ratelimit.NewController(ratelimit.NewMemoryStore(), testClasses())
	server := httptest.NewServer(NewHTTPServer(svc, limiter, cfg.CORSOrigin).Handler())
	t.Cleanup(server.Close)

	return &testEnv{server: server, service: svc, store: fs, sessions: sessions, git: git, search: idx, exporter: exp}
}

func (e *testEnv) signedInUser(t *testing.T, id, name string) Session {
	t.Helper()
	e.store.addUser(store.User{ID: id, DisplayName: name, Email: id + "@example.com", IsEmailVerified: true})
	session, err := e.service.CreateSession(context.Background(), id)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestHealthAndConfig(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	if body["ok"] != true {
		t.Fatalf("health body = %v", body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/config", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config status = %d", resp.StatusCode)
	}
	if body["autosaveIntervalMs"] != float64(30000) {
		t.Fatalf("autosaveIntervalMs = %v", body["autosaveIntervalMs"])
	}
}

func TestDocumentLifecycle(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_1", "Avery")

	resp, body := env.do(t, http.MethodPost, "/api/documents", session.Token, map[string]any{
		"documentType": "resume",
		"title":        "Backend Engineer",
		"content":      "Experienced engineer.",
		"metadata":     map[string]string{"targetRole": "backend"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d body = %v", resp.StatusCode, body)
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("create body missing data: %v", body)
	}
	docID, _ := data["id"].(string)
	if docID == "" {
		t.Fatal("expected a document id")
	}
	if data["status"] != "draft" {
		t.Fatalf("default status = %v", data["status"])
	}
	if data["updatedAt"] == nil {
		t.Fatal("expected updatedAt in the envelope")
	}

	resp, body = env.do(t, http.MethodGet, "/api/documents", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	docs, _ := body["documents"].([]any)
	if len(docs) != 1 {
		t.Fatalf("list returned %d documents", len(docs))
	}

	resp, body = env.do(t, http.MethodPut, "/api/documents/"+docID, session.Token, map[string]any{
		"documentType": "resume",
		"title":        "Staff Engineer",
		"content":      "Experienced engineer.",
		"status":       "completed",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d body = %v", resp.StatusCode, body)
	}
	data = body["data"].(map[string]any)
	if data["title"] != "Staff Engineer" || data["status"] != "completed" {
		t.Fatalf("updated document = %v", data)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/documents/"+docID, session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/api/documents/"+docID, session.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d", resp.StatusCode)
	}
	if body["error"] != "NOT_FOUND" {
		t.Fatalf("error code = %v", body["error"])
	}
}

func TestDocumentOwnershipIsPrivate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.signedInUser(t, "user_owner", "Owner")
	other := env.signedInUser(t, "user_other", "Other")

	_, body := env.do(t, http.MethodPost, "/api/documents", owner.Token, map[string]any{
		"documentType": "cover-letter",
		"title":        "Hello",
	})
	docID := body["data"].(map[string]any)["id"].(string)

	// Someone else's document reads as absent, not forbidden.
	resp, body := env.do(t, http.MethodGet, "/api/documents/"+docID, other.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user get = %d", resp.StatusCode)
	}
	if body["error"] != "NOT_FOUND" {
		t.Fatalf("error code = %v", body["error"])
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/documents/"+docID, other.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user delete = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/documents/"+docID, owner.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("owner get = %d", resp.StatusCode)
	}
}

func TestUnauthorizedEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/documents", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["error"] != "UNAUTHORIZED" {
		t.Fatalf("error code = %v", body["error"])
	}
	if body["redirectTo"] != "/login" {
		t.Fatalf("redirectTo = %v", body["redirectTo"])
	}

	resp, _ = env.do(t, http.MethodGet, "/api/documents", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", resp.StatusCode)
	}
}

func TestCreateDocumentValidation(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_v", "Val")

	resp, body := env.do(t, http.MethodPost, "/api/documents", session.Token, map[string]any{
		"title": "No type",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
	if body["error"] != "VALIDATION_ERROR" {
		t.Fatalf("error code = %v", body["error"])
	}

	resp, _ = env.do(t, http.MethodPost, "/api/documents", session.Token, map[string]any{
		"documentType": "resume",
		"status":       "archived",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad status value = %d", resp.StatusCode)
	}
}

func TestGenerateRateLimited(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_g", "Gen")

	payload := map[string]any{
		"documentType": "resume",
		"title":        "Engineer",
		"metadata":     map[string]string{"yearsExperience": "8"},
	}
	for i := 0; i < 5; i++ {
		resp, body := env.do(t, http.MethodPost, "/api/generate", session.Token, payload)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d body = %v", i+1, resp.StatusCode, body)
		}
		if generated, _ := body["generatedContent"].(string); !strings.Contains(generated, "Engineer") {
			t.Fatalf("generated content = %q", generated)
		}
	}

	resp, body := env.do(t, http.MethodPost, "/api/generate", session.Token, payload)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("sixth request status = %d", resp.StatusCode)
	}
	if body["error"] != "RATE_LIMITED" {
		t.Fatalf("error code = %v", body["error"])
	}
	retryAfter, ok := body["retryAfter"].(float64)
	if !ok || retryAfter < 1 {
		t.Fatalf("retryAfter = %v", body["retryAfter"])
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}

	// Other classes stay unaffected.
	resp, _ = env.do(t, http.MethodGet, "/api/documents", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("general API after generate limit = %d", resp.StatusCode)
	}
}

func TestHistoryAndRevision(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_h", "Hist")

	_, body := env.do(t, http.MethodPost, "/api/documents", session.Token, map[string]any{
		"documentType": "resume",
		"title":        "First",
	})
	docID := body["data"].(map[string]any)["id"].(string)

	resp, _ := env.do(t, http.MethodPut, "/api/documents/"+docID, session.Token, map[string]any{
		"documentType": "resume",
		"title":        "Second",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/api/documents/"+docID+"/history", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", resp.StatusCode)
	}
	commits, _ := body["commits"].([]any)
	if len(commits) != 2 {
		t.Fatalf("history length = %d", len(commits))
	}
	newest := commits[0].(map[string]any)
	if newest["message"] != "Save document" {
		t.Fatalf("newest commit message = %v", newest["message"])
	}

	oldest := commits[1].(map[string]any)
	hash := oldest["hash"].(string)
	resp, body = env.do(t, http.MethodGet, "/api/documents/"+docID+"/revisions/"+hash, session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("revision status = %d body = %v", resp.StatusCode, body)
	}
	snap := body["data"].(map[string]any)
	if snap["title"] != "First" {
		t.Fatalf("revision title = %v", snap["title"])
	}

	resp, _ = env.do(t, http.MethodGet, "/api/documents/"+docID+"/revisions/deadbeef", session.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown revision status = %d", resp.StatusCode)
	}
}

func TestExportDocument(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_e", "Exp")

	_, body := env.do(t, http.MethodPost, "/api/documents", session.Token, map[string]any{
		"documentType": "resume",
		"title":        "Exportable",
		"content":      "Body text.",
	})
	docID := body["data"].(map[string]any)["id"].(string)

	req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/documents/"+docID+"/export",
		strings.NewReader(`{"format":"pdf"}`))
	req.Header.Set("Authorization", "Bearer "+session.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("export request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("Content-Disposition = %q", got)
	}

	badResp, errBody := env.do(t, http.MethodPost, "/api/documents/"+docID+"/export", session.Token, map[string]any{
		"format": "odt",
	})
	if badResp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("bad format status = %d", badResp.StatusCode)
	}
	if errBody["error"] != "VALIDATION_ERROR" {
		t.Fatalf("error code = %v", errBody["error"])
	}

	env.exporter.unavailable = true
	resp2, errBody := env.do(t, http.MethodPost, "/api/documents/"+docID+"/export", session.Token, map[string]any{
		"format": "pdf",
	})
	if resp2.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("unavailable exporter status = %d", resp2.StatusCode)
	}
	if errBody["error"] != "EXPORT_UNAVAILABLE" {
		t.Fatalf("error code = %v", errBody["error"])
	}
}

func TestSearchScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_s", "Searcher")
	env.search.results = []search.Result{{ID: "doc_1", Title: "Found", Status: "draft"}}

	resp, body := env.do(t, http.MethodGet, "/api/search?q=found&type=resume&limit=5", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	results, _ := body["results"].([]any)
	if len(results) != 1 {
		t.Fatalf("results = %v", body)
	}

	env.search.mu.Lock()
	defer env.search.mu.Unlock()
	if len(env.search.queries) != 1 {
		t.Fatalf("recorded %d queries", len(env.search.queries))
	}
	q := env.search.queries[0]
	if q.OwnerID != "user_s" {
		t.Fatalf("query owner = %q", q.OwnerID)
	}
	if q.Text != "found" || q.DocumentType != "resume" || q.Limit != 5 {
		t.Fatalf("query = %+v", q)
	}
}

func TestChatValidation(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_c", "Chatter")

	resp, body := env.do(t, http.MethodPost, "/api/chat", session.Token, map[string]any{"message": "  "})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty message status = %d", resp.StatusCode)
	}
	if body["error"] != "VALIDATION_ERROR" {
		t.Fatalf("error code = %v", body["error"])
	}

	resp, body = env.do(t, http.MethodPost, "/api/chat", session.Token, map[string]any{"message": "help me"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	if reply, _ := body["reply"].(string); reply == "" {
		t.Fatalf("reply = %v", body)
	}
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_r", "Rot")

	resp, body := env.do(t, http.MethodPost, "/api/session/refresh", "", map[string]any{
		"refreshToken": session.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d body = %v", resp.StatusCode, body)
	}
	newAccess, _ := body["accessToken"].(string)
	newRefresh, _ := body["refreshToken"].(string)
	if newAccess == "" || newRefresh == "" || newRefresh == session.RefreshToken {
		t.Fatalf("rotation body = %v", body)
	}

	// The presented token is spent.
	resp, _ = env.do(t, http.MethodPost, "/api/session/refresh", "", map[string]any{
		"refreshToken": session.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/documents", newAccess, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("new access token status = %d", resp.StatusCode)
	}
}

func TestLogoutRevokesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_l", "Leaver")

	resp, _ := env.do(t, http.MethodPost, "/api/session/logout", session.Token, map[string]any{
		"refreshToken": session.RefreshToken,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/documents", session.Token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked token status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/session/refresh", "", map[string]any{
		"refreshToken": session.RefreshToken,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("revoked refresh status = %d", resp.StatusCode)
	}
}

func TestPasswordAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email":       "new@example.com",
		"password":    "hunter2hunter2",
		"displayName": "Newcomer",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d body = %v", resp.StatusCode, body)
	}
	verifyToken, _ := body["devVerificationToken"].(string)
	if verifyToken == "" {
		t.Fatal("expected a verification token")
	}

	// Unverified accounts cannot sign in.
	resp, body = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "new@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("unverified signin status = %d body = %v", resp.StatusCode, body)
	}
	if body["error"] != "EMAIL_NOT_VERIFIED" {
		t.Fatalf("error code = %v", body["error"])
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/verify-email", "", map[string]any{"token": verifyToken})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "new@example.com",
		"password": "hunter2hunter2",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin status = %d body = %v", resp.StatusCode, body)
	}
	access, _ := body["accessToken"].(string)
	if access == "" {
		t.Fatalf("signin body = %v", body)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "new@example.com",
		"password": "wrong-password",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/documents", access, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signed-in list status = %d", resp.StatusCode)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.signedInUser(t, "user_pw", "Resetter")

	resp, body := env.do(t, http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{
		"email": "user_pw@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("request reset status = %d", resp.StatusCode)
	}
	token, _ := body["devResetToken"].(string)
	if token == "" {
		t.Fatalf("reset body = %v", body)
	}

	// Unknown addresses get the same answer without a token.
	resp, body = env.do(t, http.MethodPost, "/api/auth/reset-password/request", "", map[string]any{
		"email": "nobody@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unknown email status = %d", resp.StatusCode)
	}
	if _, present := body["devResetToken"]; present {
		t.Fatal("unknown email leaked a token")
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/reset-password", "", map[string]any{
		"token":       token,
		"newPassword": "brand-new-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/api/auth/signin", "", map[string]any{
		"email":    "user_pw@example.com",
		"password": "brand-new-password",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signin after reset status = %d body = %v", resp.StatusCode, body)
	}
}

func TestSessionProbe(t *testing.T) {
	env := newTestEnv(t)
	session := env.signedInUser(t, "user_p", "Probe")

	resp, body := env.do(t, http.MethodGet, "/api/session", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("anonymous probe status = %d", resp.StatusCode)
	}
	if body["authenticated"] != false {
		t.Fatalf("anonymous probe = %v", body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/session", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("probe status = %d", resp.StatusCode)
	}
	if body["authenticated"] != true || body["userName"] != "Probe" {
		t.Fatalf("probe = %v", body)
	}
}

func TestPreflightHasNoBody(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodOptions, env.server.URL+"/api/documents", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	// 204 forbids a response body.
	if buf.Len() != 0 {
		t.Fatalf("preflight body = %q, want empty", buf.String())
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("preflight CORS origin = %q", got)
	}
}
