package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SendStatusAnswered = "answered"
	SendStatusFailed   = "failed"
)

// SendEvent records the outcome of one widget send. Question text is not
// stored; the transcript itself is never persisted.
type SendEvent struct {
	ID             uuid.UUID `json:"id"`
	WidgetID       uuid.UUID `json:"widget_id"`
	TenantID       string    `json:"tenant_id"`
	Seq            int64     `json:"seq"`
	Status         string    `json:"status"`
	QuestionLength int       `json:"question_length"`
	LatencyMs      int64     `json:"latency_ms"`
	ChatID         *string   `json:"chat_id,omitempty"`
	SourceCount    int       `json:"source_count"`
	ErrorMessage   *string   `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
