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

type SeasonalityRepository struct {
	db *pgxpool.Pool
}

// NewSeasonalityRepository создает репозиторий сезонных профилей.
func NewSeasonalityRepository(db *pgxpool.Pool) *SeasonalityRepository {
	return &SeasonalityRepository{db: db}
}

// Upsert перезаписывает профиль сезонности клиента.
func (r *SeasonalityRepository) Upsert(ctx context.Context, profile models.SeasonalityProfile) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO seasonality_profiles
		 (engagement_id, detected, pattern, peak_months, trough_months, peak_trough_delta_pct, confidence, data_points, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (engagement_id) DO UPDATE
		 SET detected = EXCLUDED.detected,
		     pattern = EXCLUDED.pattern,
		     peak_months = EXCLUDED.peak_months,
		     trough_months = EXCLUDED.trough_months,
		     peak_trough_delta_pct = EXCLUDED.peak_trough_delta_pct,
		     confidence = EXCLUDED.confidence,
		     data_points = EXCLUDED.data_points,
		     updated_at = NOW()`,
		profile.EngagementID,
		profile.Detected,
		profile.Pattern,
		monthsToInts(profile.PeakMonths),
		monthsToInts(profile.TroughMonths),
		profile.PeakTroughDeltaPct,
		profile.Confidence,
		profile.DataPoints,
	)
	return err
}

// Get возвращает профиль сезонности; ErrNotFound, если истории пока мало.
func (r *SeasonalityRepository) Get(ctx context.Context, engagementID uuid.UUID) (models.SeasonalityProfile, error) {
	profile := models.SeasonalityProfile{EngagementID: engagementID}
	var peaks, troughs []int32

	err := r.db.QueryRow(ctx,
		`SELECT detected, pattern, peak_months, trough_months, peak_trough_delta_pct, confidence, data_points, updated_at
		 FROM seasonality_profiles
		 WHERE engagement_id = $1`,
		engagementID,
	).Scan(&profile.Detected, &profile.Pattern, &peaks, &troughs, &profile.PeakTroughDeltaPct, &profile.Confidence, &profile.DataPoints, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return profile, ErrNotFound
		}
		return profile, err
	}

	profile.PeakMonths = intsToMonths(peaks)
	profile.TroughMonths = intsToMonths(troughs)
	return profile, nil
}

func monthsToInts(months []time.Month) []int32 {
	out := make([]int32, 0, len(months))
	for _, m := range months {
		out = append(out, int32(m))
	}
	return out
}

func intsToMonths(values []int32) []time.Month {
	out := make([]time.Month, 0, len(values))
	for _, v := range values {
		out = append(out, time.Month(v))
	}
	return out
}
