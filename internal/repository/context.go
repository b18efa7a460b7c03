package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/practice-advisor/backend/internal/models"
)

type ContextRepository struct {
	db *pgxpool.Pool
}

// NewContextRepository создает репозиторий качественных сигналов из анкеты.
func NewContextRepository(db *pgxpool.Pool) *ContextRepository {
	return &ContextRepository{db: db}
}

// Get возвращает сигналы клиента; если анкета не заполнена, все сигналы выключены.
func (r *ContextRepository) Get(ctx context.Context, engagementID uuid.UUID) (models.ContextSignals, error) {
	signals := models.ContextSignals{EngagementID: engagementID}

	err := r.db.QueryRow(ctx,
		`SELECT hiring_recently_flagged, customer_concentration
		 FROM engagement_context_signals
		 WHERE engagement_id = $1`,
		engagementID,
	).Scan(&signals.HiringRecentlyFlagged, &signals.CustomerConcentration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return signals, nil
		}
		return signals, err
	}

	return signals, nil
}
