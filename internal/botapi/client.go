// Package botapi is the HTTP client for the external AI assistant service.
package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

type ChatRequest struct {
	Message  string        `json:"message"`
	GroupID  string        `json:"group_id"`
	UserID   string        `json:"user_id"`
	Username string        `json:"username"`
	Context  []ContextItem `json:"context"`
}

type ContextItem struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type ChatResponse struct {
	Response  string `json:"response"`
	BotName   string `json:"bot_name"`
	Timestamp string `json:"timestamp"`
	GroupID   string `json:"group_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
}

// Chat posts a message to the assistant. Context is capped to the most recent
// ten items; a non-2xx status is a failure.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if len(req.Context) > 10 {
		req.Context = req.Context[len(req.Context)-10:]
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling bot api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("bot api error: %d %s", resp.StatusCode, detail)
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}
	return &out, nil
}

type UploadResult struct {
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
}

// UploadContext sends a document to the assistant's retrieval index for one
// group. Only group admins should reach this.
func (c *Client) UploadContext(ctx context.Context, groupID, filename string, r io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/rag/upload?group_id=%s", c.baseURL, groupID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling bot api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("bot api error: %d %s", resp.StatusCode, detail)
	}

	var out UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding upload response: %w", err)
	}
	return &out, nil
}
