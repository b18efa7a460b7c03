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

const snapshotColumns = `id, engagement_id, period_end, revenue, gross_margin_pct, operating_margin_pct, net_margin_pct,
	 bank_balance, true_cash, debtor_total, debtor_days, overheads, staff_cost_pct, revenue_per_head,
	 finalized_at, created_at`

// Черновики снимков в анализ не попадают.
const (
	listSnapshotsUpToQuery = `SELECT ` + snapshotColumns + `
		 FROM period_snapshots
		 WHERE engagement_id = $1 AND period_end <= $2 AND finalized_at IS NOT NULL
		 ORDER BY period_end ASC`

	getSnapshotQuery = `SELECT ` + snapshotColumns + `
		 FROM period_snapshots
		 WHERE engagement_id = $1 AND period_end = $2 AND finalized_at IS NOT NULL`

	latestPeriodQuery = `SELECT MAX(period_end)
		 FROM period_snapshots
		 WHERE engagement_id = $1 AND finalized_at IS NOT NULL`

	listLatestPeriodsQuery = `SELECT engagement_id, MAX(period_end)
		 FROM period_snapshots
		 WHERE finalized_at IS NOT NULL
		 GROUP BY engagement_id
		 ORDER BY engagement_id`
)

type SnapshotRepository struct {
	db *pgxpool.Pool
}

// EngagementPeriod - последний закрытый период клиента.
type EngagementPeriod struct {
	EngagementID uuid.UUID
	PeriodEnd    time.Time
}

// NewSnapshotRepository создает репозиторий месячных снимков.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// ListUpTo возвращает снимки клиента до periodEnd включительно по возрастанию даты.
func (r *SnapshotRepository) ListUpTo(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) ([]models.PeriodSnapshot, error) {
	rows, err := r.db.Query(ctx, listSnapshotsUpToQuery, engagementID, periodEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snapshots := make([]models.PeriodSnapshot, 0)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}

// Get возвращает снимок за конкретный период.
func (r *SnapshotRepository) Get(ctx context.Context, engagementID uuid.UUID, periodEnd time.Time) (models.PeriodSnapshot, error) {
	row := r.db.QueryRow(ctx, getSnapshotQuery, engagementID, periodEnd)

	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return snapshot, ErrNotFound
		}
		return snapshot, err
	}

	return snapshot, nil
}

// LatestPeriod возвращает дату последнего закрытого снимка клиента.
func (r *SnapshotRepository) LatestPeriod(ctx context.Context, engagementID uuid.UUID) (time.Time, error) {
	var latest *time.Time
	if err := r.db.QueryRow(ctx, latestPeriodQuery, engagementID).Scan(&latest); err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, ErrNotFound
	}
	return *latest, nil
}

// ListLatestPeriods возвращает последний период по каждому клиенту для ночного пересчета.
func (r *SnapshotRepository) ListLatestPeriods(ctx context.Context) ([]EngagementPeriod, error) {
	rows, err := r.db.Query(ctx, listLatestPeriodsQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	periods := make([]EngagementPeriod, 0)
	for rows.Next() {
		var p EngagementPeriod
		if err := rows.Scan(&p.EngagementID, &p.PeriodEnd); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return periods, nil
}

func scanSnapshot(row pgx.Row) (models.PeriodSnapshot, error) {
	var s models.PeriodSnapshot
	err := row.Scan(
		&s.ID,
		&s.EngagementID,
		&s.PeriodEnd,
		&s.Revenue,
		&s.GrossMarginPct,
		&s.OperatingMarginPct,
		&s.NetMarginPct,
		&s.BankBalance,
		&s.TrueCash,
		&s.DebtorTotal,
		&s.DebtorDays,
		&s.Overheads,
		&s.StaffCostPct,
		&s.RevenuePerHead,
		&s.FinalizedAt,
		&s.CreatedAt,
	)
	return s, err
}
