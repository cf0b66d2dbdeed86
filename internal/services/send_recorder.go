package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"owl-widget/internal/models"
	"owl-widget/internal/widget"
)

type sendEventRepository interface {
	Create(ctx context.Context, e *models.SendEvent) error
}

// SendRecorder stores the outcome of every widget send. Failures never
// reach the transcript, so send_events is where operators query them.
type SendRecorder struct {
	repo   sendEventRepository
	logger *zap.Logger
}

// NewSendRecorder returns a recorder. With a nil repo Record does nothing.
func NewSendRecorder(repo sendEventRepository, logger *zap.Logger) *SendRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendRecorder{repo: repo, logger: logger}
}

// Record is meant to be installed as widget.Hooks.OnResult.
func (s *SendRecorder) Record(res widget.Result) {
	if s.repo == nil {
		return
	}
	e := EventFromResult(res)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.Error("failed to record send event",
			zap.String("widget_id", e.WidgetID.String()),
			zap.Error(err))
	}
}

// EventFromResult converts a resolved send into its stored form.
func EventFromResult(res widget.Result) *models.SendEvent {
	e := &models.SendEvent{
		WidgetID:       res.WidgetID,
		TenantID:       res.Request.TenantID,
		Seq:            int64(res.Seq),
		Status:         models.SendStatusAnswered,
		QuestionLength: len([]rune(res.Request.Question)),
		LatencyMs:      res.Elapsed.Milliseconds(),
	}
	if res.Err != nil {
		msg := res.Err.Error()
		e.Status = models.SendStatusFailed
		e.ErrorMessage = &msg
		return e
	}

	if id := res.Response.ChatID(); id != "" {
		e.ChatID = &id
	}
	e.SourceCount = len(res.Response.Sources())
	return e
}
