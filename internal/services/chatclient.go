package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"owl-widget/internal/models"
)

// ChatPath is appended to the configured base URL.
const ChatPath = "/api/v1/chat"

// ErrMalformedResponse is returned when the endpoint answers with a body
// that is not JSON.
var ErrMalformedResponse = errors.New("chat endpoint returned a non-JSON body")

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("chat endpoint returned HTTP %d", e.StatusCode)
}

// ChatClient posts questions to {baseURL}/api/v1/chat. It applies no
// timeout and never retries.
type ChatClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewChatClient creates a client. An empty baseURL yields the relative path,
// which only resolves when httpClient's transport knows the origin.
func NewChatClient(baseURL string, httpClient *http.Client) *ChatClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ChatClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Endpoint is the full URL requests go to.
func (c *ChatClient) Endpoint() string {
	return c.baseURL + ChatPath
}

func (c *ChatClient) Ask(ctx context.Context, chatReq models.ChatRequest) (models.ChatResponse, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.ChatResponse{}, &HTTPStatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	parsed, err := models.ParseChatResponse(respBody)
	if err != nil {
		return models.ChatResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return parsed, nil
}
