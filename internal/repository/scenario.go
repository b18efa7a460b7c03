package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/practice-advisor/backend/internal/models"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type ScenarioRepository struct {
	db *pgxpool.Pool
}

// NewScenarioRepository создает репозиторий what-if сценариев.
func NewScenarioRepository(db *pgxpool.Pool) *ScenarioRepository {
	return &ScenarioRepository{db: db}
}

// ReplaceForPeriod заменяет набор сценариев периода в одной транзакции.
func (r *ScenarioRepository) ReplaceForPeriod(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time, scenarios []models.Scenario) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	keep := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		keep = append(keep, string(s.ScenarioType))
	}

	_, err = tx.Exec(ctx,
		`DELETE FROM scenarios
		 WHERE engagement_id = $1 AND period_end = $2 AND NOT (scenario_type = ANY($3))`,
		engagementID, periodEnd, keep,
	)
	if err != nil {
		return err
	}

	for _, s := range scenarios {
		if err := upsertScenario(ctx, tx, engagementID, periodEnd, s); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Upsert сохраняет один сценарий, не трогая остальные в периоде.
func (r *ScenarioRepository) Upsert(ctx context.Context, scenario models.Scenario) error {
	return upsertScenario(ctx, r.db, scenario.EngagementID, scenario.PeriodEnd, scenario)
}

// ListForPeriod возвращает сценарии периода.
func (r *ScenarioRepository) ListForPeriod(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) ([]models.Scenario, error) {
	rows, err := r.db.Query(ctx,
		`SELECT engagement_id, period_end, scenario_type, title, assumptions, impact, verdict, updated_at
		 FROM scenarios
		 WHERE engagement_id = $1 AND period_end = $2
		 ORDER BY created_at ASC, scenario_type ASC`,
		engagementID, periodEnd,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	scenarios := make([]models.Scenario, 0)
	for rows.Next() {
		var s models.Scenario
		var assumptions, impact, verdict []byte
		if err := rows.Scan(&s.EngagementID, &s.PeriodEnd, &s.ScenarioType, &s.Title, &assumptions, &impact, &verdict, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decodePayload(assumptions, &s.Assumptions); err != nil {
			return nil, err
		}
		if err := decodePayload(impact, &s.Impact); err != nil {
			return nil, err
		}
		if err := decodePayload(verdict, &s.Verdict); err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return scenarios, nil
}

func upsertScenario(ctx context.Context, db execer, engagementID uuid.UUID, periodEnd time.Time, s models.Scenario) error {
	assumptions, err := encodePayload(s.Assumptions)
	if err != nil {
		return err
	}
	impact, err := encodePayload(s.Impact)
	if err != nil {
		return err
	}
	verdict, err := encodePayload(s.Verdict)
	if err != nil {
		return err
	}

	_, err = db.Exec(ctx,
		`INSERT INTO scenarios
		 (engagement_id, period_end, scenario_type, title, verdict_type, assumptions, impact, verdict, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, NOW())
		 ON CONFLICT (engagement_id, period_end, scenario_type) DO UPDATE
		 SET title = EXCLUDED.title,
		     verdict_type = EXCLUDED.verdict_type,
		     assumptions = EXCLUDED.assumptions,
		     impact = EXCLUDED.impact,
		     verdict = EXCLUDED.verdict,
		     updated_at = NOW()`,
		engagementID, periodEnd, s.ScenarioType, s.Title, s.Verdict.Verdict, assumptions, impact, verdict,
	)
	return err
}
