package handlers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"example.com/practice-advisor/backend/internal/auth"
	"example.com/practice-advisor/backend/internal/models"
	"example.com/practice-advisor/backend/internal/repository"
)

const (
	exportTypeWeeks         = "weeks"
	exportTypeCriticalDates = "critical_dates"
)

// ExportForecastCSV выгружает недели или критические даты прогноза в CSV.
func (h *AnalysisHandler) ExportForecastCSV(c echo.Context) error {
	if _, ok := auth.UserIDFromContext(c); !ok {
		return unauthorized(c)
	}

	engagementID, err := parseEngagementID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	periodEnd, err := parseDate(c.Param("periodEnd"))
	if err != nil {
		return badRequest(c, err.Error())
	}

	exportType := strings.ToLower(strings.TrimSpace(c.QueryParam("type")))
	if exportType == "" {
		exportType = exportTypeWeeks
	}
	if exportType != exportTypeWeeks && exportType != exportTypeCriticalDates {
		return badRequest(c, "invalid export type")
	}

	forecast, err := h.Forecasts.Get(c.Request().Context(), engagementID, periodEnd)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "forecast not found")
		}
		return serverError(c)
	}

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if exportType == exportTypeCriticalDates {
		err = writeCriticalDatesCSV(writer, forecast)
	} else {
		err = writeWeeksCSV(writer, forecast)
	}
	if err != nil {
		return serverError(c)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return serverError(c)
	}

	filename := "forecast-" + engagementID.String() + "-" + periodEnd.Format(dateLayout) + "-" + exportType + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=\""+filename+"\"")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func writeWeeksCSV(writer *csv.Writer, forecast models.CashForecast) error {
	header := []string{
		"week",
		"week_ending",
		"opening_balance",
		"expected_receipts",
		"expected_payments",
		"closing_balance",
		"confidence",
		"key_events",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, week := range forecast.Weeks {
		record := []string{
			strconv.Itoa(week.Week),
			week.WeekEnding.Format(dateLayout),
			formatMoney(week.OpeningBalance),
			formatMoney(week.ExpectedReceipts),
			formatMoney(week.ExpectedPayments),
			formatMoney(week.ClosingBalance),
			string(week.Confidence),
			strings.Join(week.KeyEvents, "; "),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func writeCriticalDatesCSV(writer *csv.Writer, forecast models.CashForecast) error {
	header := []string{
		"date",
		"week",
		"triggering_event",
		"impact",
		"resulting_balance",
		"recommended_collection",
		"recommended_action",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, critical := range forecast.CriticalDates {
		record := []string{
			critical.Date.Format(dateLayout),
			strconv.Itoa(critical.Week),
			critical.TriggeringEvent,
			formatMoney(critical.Impact),
			formatMoney(critical.ResultingBalance),
			formatMoney(critical.RecommendedCollection),
			critical.RecommendedAction,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func formatMoney(value float64) string {
	return decimal.NewFromFloat(value).StringFixed(2)
}
