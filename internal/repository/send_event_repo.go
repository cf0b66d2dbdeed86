package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"owl-widget/internal/models"
)

type SendEventRepo struct {
	pool *pgxpool.Pool
}

func NewSendEventRepo(pool *pgxpool.Pool) *SendEventRepo {
	return &SendEventRepo{pool: pool}
}

func (r *SendEventRepo) Create(ctx context.Context, e *models.SendEvent) error {
	e.ID = uuid.New()

	query := `INSERT INTO send_events (id, widget_id, tenant_id, seq, status, question_length, latency_ms, chat_id, source_count, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		e.ID, e.WidgetID, e.TenantID, e.Seq, e.Status, e.QuestionLength, e.LatencyMs, e.ChatID, e.SourceCount, e.ErrorMessage,
	).Scan(&e.CreatedAt)
}
