package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS period_snapshots (
		id                   UUID PRIMARY KEY,
		engagement_id        UUID NOT NULL,
		period_end           DATE NOT NULL,
		revenue              DOUBLE PRECISION NOT NULL DEFAULT 0,
		gross_margin_pct     DOUBLE PRECISION NOT NULL DEFAULT 0,
		operating_margin_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
		net_margin_pct       DOUBLE PRECISION NOT NULL DEFAULT 0,
		bank_balance         DOUBLE PRECISION NOT NULL DEFAULT 0,
		true_cash            DOUBLE PRECISION NOT NULL DEFAULT 0,
		debtor_total         DOUBLE PRECISION NOT NULL DEFAULT 0,
		debtor_days          DOUBLE PRECISION NOT NULL DEFAULT 0,
		overheads            DOUBLE PRECISION NOT NULL DEFAULT 0,
		staff_cost_pct       DOUBLE PRECISION NOT NULL DEFAULT 0,
		revenue_per_head     DOUBLE PRECISION NOT NULL DEFAULT 0,
		finalized_at         TIMESTAMPTZ,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (engagement_id, period_end)
	)`,
	`CREATE TABLE IF NOT EXISTS commitments (
		id                  UUID PRIMARY KEY,
		engagement_id       UUID NOT NULL,
		commitment_type     TEXT NOT NULL,
		description         TEXT NOT NULL,
		amount              DOUBLE PRECISION NOT NULL CHECK (amount > 0),
		frequency           TEXT NOT NULL DEFAULT 'one_off',
		next_due_date       DATE,
		end_date            DATE,
		include_in_forecast BOOLEAN NOT NULL DEFAULT TRUE,
		confidence          TEXT NOT NULL DEFAULT 'confirmed',
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_commitments_engagement ON commitments(engagement_id)`,
	`CREATE TABLE IF NOT EXISTS engagement_context_signals (
		engagement_id           UUID PRIMARY KEY,
		hiring_recently_flagged BOOLEAN NOT NULL DEFAULT FALSE,
		customer_concentration  TEXT NOT NULL DEFAULT '',
		updated_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trend_results (
		engagement_id  UUID NOT NULL,
		metric_type    TEXT NOT NULL,
		status         TEXT NOT NULL,
		direction      TEXT NOT NULL,
		average_change DOUBLE PRECISION NOT NULL,
		volatility     TEXT NOT NULL,
		data_points    INTEGER NOT NULL,
		narrative      TEXT NOT NULL,
		period_end     DATE NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (engagement_id, metric_type)
	)`,
	`CREATE TABLE IF NOT EXISTS seasonality_profiles (
		engagement_id         UUID PRIMARY KEY,
		detected              BOOLEAN NOT NULL,
		pattern               TEXT,
		peak_months           INTEGER[] NOT NULL DEFAULT '{}',
		trough_months         INTEGER[] NOT NULL DEFAULT '{}',
		peak_trough_delta_pct DOUBLE PRECISION NOT NULL,
		confidence            TEXT NOT NULL,
		data_points           INTEGER NOT NULL,
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS cash_forecasts (
		engagement_id     UUID NOT NULL,
		period_end        DATE NOT NULL,
		sentiment         TEXT NOT NULL,
		lowest_balance    DOUBLE PRECISION NOT NULL,
		cash_runway_weeks INTEGER,
		payload           JSONB NOT NULL,
		generated_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (engagement_id, period_end)
	)`,
	`CREATE TABLE IF NOT EXISTS scenarios (
		engagement_id UUID NOT NULL,
		period_end    DATE NOT NULL,
		scenario_type TEXT NOT NULL,
		title         TEXT NOT NULL,
		verdict_type  TEXT NOT NULL,
		assumptions   JSONB NOT NULL,
		impact        JSONB NOT NULL,
		verdict       JSONB NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (engagement_id, period_end, scenario_type)
	)`,
}

// Migrate создает таблицы управленческой отчетности, если их еще нет.
func Migrate(ctx context.Context, db execer) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
