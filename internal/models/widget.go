package models

import "time"

// Message is one line of a widget's log.
type Message struct {
	Seq    uint64    `json:"seq"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// MountRequest is the body of POST /api/v1/widgets.
type MountRequest struct {
	BaseURL  string `json:"baseUrl"`
	TenantID string `json:"tenantId"`
	Title    string `json:"title"`
}

type MountResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	HTML  string `json:"html"`
}

type InputRequest struct {
	Text string `json:"text"`
}

// SendRequest optionally carries the input text so a browser can type and
// click in one round trip.
type SendRequest struct {
	Text *string `json:"text,omitempty"`
}

type SendResponse struct {
	Sent bool `json:"sent"`
}

// WidgetSnapshot is the serialised state pushed to browsers.
type WidgetSnapshot struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	Version  uint64    `json:"version"`
	Messages []Message `json:"messages"`
	Input    string    `json:"input"`
	Pending  int       `json:"pending"`
	HTML     string    `json:"html"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
