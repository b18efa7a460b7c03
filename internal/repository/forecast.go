package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/practice-advisor/backend/internal/models"
)

type ForecastRepository struct {
	db *pgxpool.Pool
}

// NewForecastRepository создает репозиторий 13-недельных прогнозов.
func NewForecastRepository(db *pgxpool.Pool) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Upsert перезаписывает прогноз за период одной командой.
func (r *ForecastRepository) Upsert(ctx context.Context, forecast models.CashForecast) error {
	payload, err := encodePayload(forecast)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO cash_forecasts
		 (engagement_id, period_end, sentiment, lowest_balance, cash_runway_weeks, payload, generated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
		 ON CONFLICT (engagement_id, period_end) DO UPDATE
		 SET sentiment = EXCLUDED.sentiment,
		     lowest_balance = EXCLUDED.lowest_balance,
		     cash_runway_weeks = EXCLUDED.cash_runway_weeks,
		     payload = EXCLUDED.payload,
		     generated_at = EXCLUDED.generated_at`,
		forecast.EngagementID,
		forecast.PeriodEnd,
		forecast.Sentiment,
		forecast.LowestBalance,
		forecast.CashRunwayWeeks,
		payload,
		forecast.GeneratedAt,
	)
	return err
}

// Get возвращает сохраненный прогноз за период.
func (r *ForecastRepository) Get(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) (models.CashForecast, error) {
	var forecast models.CashForecast
	var payload []byte

	err := r.db.QueryRow(ctx,
		`SELECT payload
		 FROM cash_forecasts
		 WHERE engagement_id = $1 AND period_end = $2`,
		engagementID, periodEnd,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return forecast, ErrNotFound
		}
		return forecast, err
	}

	if err := decodePayload(payload, &forecast); err != nil {
		return forecast, err
	}

	return forecast, nil
}
