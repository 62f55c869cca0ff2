package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Saver performs one create-or-update call for a draft snapshot.
type Saver interface {
	Save(ctx context.Context, draft DocumentDraft, status Status) (SaveResult, error)
}

// Client is the HTTP persistence client. A draft without identity is created
// with POST /api/documents; one with identity is updated in place. Responses
// are decoded once at this boundary into typed shapes; every failure maps to
// an ErrorKind.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, token: token, http: httpClient}
}

type documentPayload struct {
	DocumentType     string            `json:"documentType"`
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	Metadata         map[string]string `json:"metadata"`
	GeneratedContent string            `json:"generatedContent,omitempty"`
	Status           Status            `json:"status"`
}

type documentEnvelope struct {
	Data struct {
		ID        string    `json:"id"`
		UpdatedAt time.Time `json:"updatedAt"`
	} `json:"data"`
}

type errorEnvelope struct {
	Error      string  `json:"error"`
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retryAfter"`
}

func (c *Client) Save(ctx context.Context, draft DocumentDraft, status Status) (SaveResult, error) {
	payload := documentPayload{
		DocumentType:     draft.DocumentType,
		Title:            draft.Title,
		Content:          draft.Content,
		Metadata:         draft.Metadata,
		GeneratedContent: draft.GeneratedContent,
		Status:           status,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SaveResult{}, saveError(ValidationError, fmt.Sprintf("encode payload: %v", err))
	}

	method, url := http.MethodPost, c.baseURL+"/api/documents"
	if draft.Identity != "" {
		method, url = http.MethodPut, c.baseURL+"/api/documents/"+draft.Identity
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return SaveResult{}, saveError(NetworkError, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return SaveResult{}, saveError(NetworkError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		var envelope documentEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return SaveResult{}, saveError(ServerError, fmt.Sprintf("decode response: %v", err))
		}
		if envelope.Data.ID == "" {
			return SaveResult{}, saveError(ServerError, "response missing document id")
		}
		savedAt := envelope.Data.UpdatedAt
		if savedAt.IsZero() {
			savedAt = time.Now()
		}
		return SaveResult{Identity: envelope.Data.ID, SavedAt: savedAt}, nil
	}

	return SaveResult{}, classifyFailure(resp)
}

// Load hydrates a draft from an existing document at session start.
func (c *Client) Load(ctx context.Context, identity string) (DocumentDraft, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/documents/"+identity, nil)
	if err != nil {
		return DocumentDraft{}, saveError(NetworkError, err.Error())
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return DocumentDraft{}, saveError(NetworkError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return DocumentDraft{}, classifyFailure(resp)
	}

	var envelope struct {
		Data struct {
			ID               string            `json:"id"`
			DocumentType     string            `json:"documentType"`
			Title            string            `json:"title"`
			Content          string            `json:"content"`
			Metadata         map[string]string `json:"metadata"`
			GeneratedContent string            `json:"generatedContent"`
			Status           Status            `json:"status"`
			UpdatedAt        time.Time         `json:"updatedAt"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return DocumentDraft{}, saveError(ServerError, fmt.Sprintf("decode response: %v", err))
	}

	draft := DocumentDraft{
		Identity:         envelope.Data.ID,
		DocumentType:     envelope.Data.DocumentType,
		Title:            envelope.Data.Title,
		Content:          envelope.Data.Content,
		Metadata:         envelope.Data.Metadata,
		GeneratedContent: envelope.Data.GeneratedContent,
		Status:           envelope.Data.Status,
		LastSavedAt:      envelope.Data.UpdatedAt,
	}
	draft.LastFingerprint = Fingerprint(draft)
	return draft, nil
}

func classifyFailure(resp *http.Response) *SaveError {
	var envelope errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	message := envelope.Message
	if message == "" {
		message = envelope.Error
	}
	if message == "" {
		message = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return saveError(AuthRequired, message)
	case resp.StatusCode == http.StatusNotFound:
		return saveError(NotFound, message)
	case resp.StatusCode == http.StatusTooManyRequests:
		se := saveError(RateLimited, message)
		se.RetryAfter = time.Duration(envelope.RetryAfter * float64(time.Second))
		return se
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return saveError(ValidationError, message)
	case resp.StatusCode >= 500:
		return saveError(ServerError, message)
	default:
		return saveError(ServerError, message)
	}
}
