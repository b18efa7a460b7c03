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

const commitmentColumns = `id, engagement_id, commitment_type, description, amount, frequency, next_due_date, end_date,
	 include_in_forecast, confidence, created_at, updated_at`

type CommitmentRepository struct {
	db *pgxpool.Pool
}

// CommitmentInput - редактируемые поля обязательства.
type CommitmentInput struct {
	CommitmentType    string
	Description       string
	Amount            float64
	Frequency         models.CommitmentFrequency
	NextDueDate       *time.Time
	EndDate           *time.Time
	IncludeInForecast bool
	Confidence        models.CommitmentConfidence
}

// NewCommitmentRepository создает репозиторий будущих платежей.
func NewCommitmentRepository(db *pgxpool.Pool) *CommitmentRepository {
	return &CommitmentRepository{db: db}
}

// ListByEngagement возвращает обязательства клиента по дате платежа.
func (r *CommitmentRepository) ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]models.Commitment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+commitmentColumns+`
		 FROM commitments
		 WHERE engagement_id = $1
		 ORDER BY next_due_date ASC NULLS LAST, created_at ASC`,
		engagementID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	commitments := make([]models.Commitment, 0)
	for rows.Next() {
		commitment, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		commitments = append(commitments, commitment)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return commitments, nil
}

// Create добавляет обязательство клиенту.
func (r *CommitmentRepository) Create(ctx context.Context, engagementID uuid.UUID, in CommitmentInput) (models.Commitment, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO commitments
		 (id, engagement_id, commitment_type, description, amount, frequency, next_due_date, end_date, include_in_forecast, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+commitmentColumns,
		uuid.New(), engagementID, in.CommitmentType, in.Description, in.Amount, in.Frequency,
		in.NextDueDate, in.EndDate, in.IncludeInForecast, in.Confidence,
	)

	commitment, err := scanCommitment(row)
	if err != nil {
		return commitment, mapWriteError(err)
	}

	return commitment, nil
}

// Update перезаписывает поля обязательства.
func (r *CommitmentRepository) Update(ctx context.Context, commitmentID uuid.UUID, in CommitmentInput) (models.Commitment, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE commitments
		 SET commitment_type = $2,
		     description = $3,
		     amount = $4,
		     frequency = $5,
		     next_due_date = $6,
		     end_date = $7,
		     include_in_forecast = $8,
		     confidence = $9,
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+commitmentColumns,
		commitmentID, in.CommitmentType, in.Description, in.Amount, in.Frequency,
		in.NextDueDate, in.EndDate, in.IncludeInForecast, in.Confidence,
	)

	commitment, err := scanCommitment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return commitment, ErrNotFound
		}
		return commitment, mapWriteError(err)
	}

	return commitment, nil
}

// Delete удаляет обязательство.
func (r *CommitmentRepository) Delete(ctx context.Context, commitmentID uuid.UUID) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM commitments WHERE id = $1`, commitmentID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func scanCommitment(row pgx.Row) (models.Commitment, error) {
	var c models.Commitment
	err := row.Scan(
		&c.ID,
		&c.EngagementID,
		&c.CommitmentType,
		&c.Description,
		&c.Amount,
		&c.Frequency,
		&c.NextDueDate,
		&c.EndDate,
		&c.IncludeInForecast,
		&c.Confidence,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
