package rci

import (
	"time"

	"gmq/internal/transaction/models"
	dErrors "gmq/pkg/domain-errors"
)

// ToEpochMillis converts a DD/MM/YYYY date to milliseconds since the epoch
// at local midnight in loc. RCI expects dates in this form, and using UTC
// midnight would land on the previous local day.
func ToEpochMillis(date string, loc *time.Location) (int64, error) {
	t, err := models.ParseBirthDate(date, loc)
	if err != nil {
		return 0, dErrors.NewField(dErrors.AppInvalidBirthDate, "birth_date", "birth_date must be formatted DD/MM/YYYY")
	}
	return t.UnixMilli(), nil
}

// FromEpochMillis converts RCI milliseconds back to a time in loc.
func FromEpochMillis(ms int64, loc *time.Location) time.Time {
	return time.UnixMilli(ms).In(loc)
}
