package analytics

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// InsufficientData описывает штатную ситуацию, когда истории не хватает для расчета.
type InsufficientData struct {
	Have int
	Need int
}

func (d InsufficientData) String() string {
	return fmt.Sprintf("insufficient data: %d of %d required periods", d.Have, d.Need)
}

// Outcome - либо посчитанный результат, либо InsufficientData с дефолтным значением.
type Outcome[T any] struct {
	value        T
	insufficient *InsufficientData
}

func computed[T any](value T) Outcome[T] {
	return Outcome[T]{value: value}
}

func insufficient[T any](fallback T, have, need int) Outcome[T] {
	return Outcome[T]{value: fallback, insufficient: &InsufficientData{Have: have, Need: need}}
}

// Computed возвращает результат, если расчет состоялся.
func (o Outcome[T]) Computed() (T, bool) {
	return o.value, o.insufficient == nil
}

// Insufficient возвращает причину, если данных не хватило.
func (o Outcome[T]) Insufficient() (InsufficientData, bool) {
	if o.insufficient == nil {
		return InsufficientData{}, false
	}
	return *o.insufficient, true
}

// Value возвращает значение независимо от варианта, для нехватки данных - дефолтное.
func (o Outcome[T]) Value() T {
	return o.value
}

// round2 округляет до пенсов (и до сотых процента).
func round2(value float64) float64 {
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

func roundWhole(value float64) float64 {
	return decimal.NewFromFloat(value).Round(0).InexactFloat64()
}

// formatGBP форматирует сумму в фунтах без пенсов: £12,500.
func formatGBP(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "£0"
	}

	sign := ""
	if value < 0 {
		sign = "-"
		value = -value
	}

	formatted := humanize.FormatFloat("#,###.", math.Round(value))
	return sign + "£" + strings.TrimSuffix(formatted, ".")
}
