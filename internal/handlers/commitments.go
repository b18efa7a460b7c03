package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/practice-advisor/backend/internal/auth"
	"example.com/practice-advisor/backend/internal/models"
	"example.com/practice-advisor/backend/internal/notifications"
	"example.com/practice-advisor/backend/internal/repository"
)

type CommitmentStore interface {
	ListByEngagement(ctx context.Context, engagementID uuid.UUID) ([]models.Commitment, error)
	Create(ctx context.Context, engagementID uuid.UUID, in repository.CommitmentInput) (models.Commitment, error)
	Update(ctx context.Context, commitmentID uuid.UUID, in repository.CommitmentInput) (models.Commitment, error)
	Delete(ctx context.Context, commitmentID uuid.UUID) error
}

type CommitmentHandler struct {
	Commitments CommitmentStore
	Notifier    *notifications.Hub
}

// NewCommitmentHandler создает обработчик реестра будущих платежей.
func NewCommitmentHandler(commitments CommitmentStore, notifier *notifications.Hub) *CommitmentHandler {
	return &CommitmentHandler{Commitments: commitments, Notifier: notifier}
}

type CommitmentRequest struct {
	CommitmentType    string                      `json:"commitment_type" validate:"required,max=50"`
	Description       string                      `json:"description" validate:"required,max=200"`
	Amount            float64                     `json:"amount" validate:"gt=0"`
	Frequency         models.CommitmentFrequency  `json:"frequency" validate:"required,oneof=one_off weekly monthly quarterly annual"`
	NextDueDate       *string                     `json:"next_due_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate           *string                     `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	IncludeInForecast *bool                       `json:"include_in_forecast"`
	Confidence        models.CommitmentConfidence `json:"confidence" validate:"omitempty,oneof=confirmed likely estimated"`
}

type CommitmentsResponse struct {
	Commitments []models.Commitment `json:"commitments"`
}

// List возвращает обязательства клиента.
func (h *CommitmentHandler) List(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	commitments, err := h.Commitments.ListByEngagement(c.Request().Context(), engagementID)
	if err != nil {
		return serverError(c)
	}

	return c.JSON(http.StatusOK, CommitmentsResponse{Commitments: commitments})
}

// Create добавляет обязательство в реестр клиента.
func (h *CommitmentHandler) Create(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	input, err := bindCommitment(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	commitment, err := h.Commitments.Create(c.Request().Context(), engagementID, input)
	if err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, err.Error())
		}
		return serverError(c)
	}

	h.notify(commitment.EngagementID)
	return c.JSON(http.StatusCreated, commitment)
}

// Update перезаписывает обязательство.
func (h *CommitmentHandler) Update(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	commitmentID, err := uuid.Parse(c.Param("commitmentId"))
	if err != nil {
		return badRequest(c, "invalid commitment id")
	}

	input, err := bindCommitment(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	commitment, err := h.Commitments.Update(c.Request().Context(), commitmentID, input)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "commitment not found")
		}
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, err.Error())
		}
		return serverError(c)
	}

	h.notify(commitment.EngagementID)
	return c.JSON(http.StatusOK, commitment)
}

// Delete удаляет обязательство.
func (h *CommitmentHandler) Delete(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	commitmentID, err := uuid.Parse(c.Param("commitmentId"))
	if err != nil {
		return badRequest(c, "invalid commitment id")
	}

	if err := h.Commitments.Delete(c.Request().Context(), commitmentID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "commitment not found")
		}
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

func bindCommitment(c echo.Context) (repository.CommitmentInput, error) {
	var req CommitmentRequest
	if err := c.Bind(&req); err != nil {
		return repository.CommitmentInput{}, errors.New("invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return repository.CommitmentInput{}, errors.New("validation failed")
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		return repository.CommitmentInput{}, errors.New("description is required")
	}

	nextDue, err := parseOptionalDate(req.NextDueDate)
	if err != nil {
		return repository.CommitmentInput{}, err
	}

	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return repository.CommitmentInput{}, err
	}

	if nextDue != nil && endDate != nil && endDate.Before(*nextDue) {
		return repository.CommitmentInput{}, errors.New("end_date must not be before next_due_date")
	}

	include := true
	if req.IncludeInForecast != nil {
		include = *req.IncludeInForecast
	}

	confidence := req.Confidence
	if confidence == "" {
		confidence = models.CommitmentConfirmed
	}

	return repository.CommitmentInput{
		CommitmentType:    strings.TrimSpace(req.CommitmentType),
		Description:       description,
		Amount:            req.Amount,
		Frequency:         req.Frequency,
		NextDueDate:       nextDue,
		EndDate:           endDate,
		IncludeInForecast: include,
		Confidence:        confidence,
	}, nil
}

func (h *CommitmentHandler) notify(engagementID uuid.UUID) {
	if h.Notifier == nil {
		return
	}

	h.Notifier.Publish(engagementID, notifications.Event{Type: notifications.EventCommitmentsUpdated})
}
