package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/practice-advisor/backend/internal/models"
)

type TrendRepository struct {
	db *pgxpool.Pool
}

// NewTrendRepository создает репозиторий трендов по метрикам.
func NewTrendRepository(db *pgxpool.Pool) *TrendRepository {
	return &TrendRepository{db: db}
}

// Upsert перезаписывает последний тренд по паре (клиент, метрика).
func (r *TrendRepository) Upsert(ctx context.Context, result models.TrendResult) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO trend_results
		 (engagement_id, metric_type, status, direction, average_change, volatility, data_points, narrative, period_end, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		 ON CONFLICT (engagement_id, metric_type) DO UPDATE
		 SET status = EXCLUDED.status,
		     direction = EXCLUDED.direction,
		     average_change = EXCLUDED.average_change,
		     volatility = EXCLUDED.volatility,
		     data_points = EXCLUDED.data_points,
		     narrative = EXCLUDED.narrative,
		     period_end = EXCLUDED.period_end,
		     updated_at = NOW()`,
		result.EngagementID,
		result.MetricType,
		result.Status,
		result.Direction,
		result.AverageChange,
		result.Volatility,
		result.DataPoints,
		result.Narrative,
		result.PeriodEnd,
	)
	return err
}

// ListByEngagement возвращает тренды клиента по всем метрикам.
func (r *TrendRepository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]models.TrendResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT engagement_id, metric_type, status, direction, average_change, volatility, data_points, narrative, period_end, updated_at
		 FROM trend_results
		 WHERE engagement_id = $1
		 ORDER BY metric_type`,
		engagementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.TrendResult, 0)
	for rows.Next() {
		var t models.TrendResult
		if err := rows.Scan(&t.EngagementID, &t.MetricType, &t.Status, &t.Direction, &t.AverageChange, &t.Volatility, &t.DataPoints, &t.Narrative, &t.PeriodEnd, &t.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
