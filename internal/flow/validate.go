package flow

import (
	"fmt"
	"time"

	"github.com/tripmate-app/tripmate/internal/models"
)

// ValidateTitle enforces the 1-200 character rule shared by itinerary and
// event titles.
func ValidateTitle(title string) error {
	if title == "" {
		return models.ErrEmptyTitle
	}
	if len(title) > models.MaxTitleLength {
		return fmt.Errorf("%w (max %d characters)", models.ErrTitleTooLong, models.MaxTitleLength)
	}
	return nil
}

// ValidateLocation enforces the 1-500 character rule.
func ValidateLocation(location string) error {
	if location == "" {
		return models.ErrEmptyLocation
	}
	if len(location) > models.MaxLocationLength {
		return fmt.Errorf("%w (max %d characters)", models.ErrLocationTooLong, models.MaxLocationLength)
	}
	return nil
}

// ValidateDate checks the YYYY-MM-DD wire format.
func ValidateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return models.ErrInvalidDate
	}
	return nil
}

// ValidateTimeOfDay checks the HH:MM wire format (00:00-23:59). The format
// is strict: times must be zero-padded, because stored times are compared
// lexically when sorting a day's events.
func ValidateTimeOfDay(t string) error {
	parsed, err := time.Parse(models.TimeLayout, t)
	if err != nil || parsed.Format(models.TimeLayout) != t {
		return models.ErrInvalidTime
	}
	return nil
}

// ValidateDateRange checks ordering and the maximum trip span.
func ValidateDateRange(startDate, endDate string) error {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return models.ErrInvalidDate
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return models.ErrInvalidDate
	}
	if end.Before(start) {
		return models.ErrEndBeforeStart
	}
	if int(end.Sub(start).Hours()/24)+1 > models.MaxTripDays {
		return fmt.Errorf("%w (max %d days)", models.ErrTripTooLong, models.MaxTripDays)
	}
	return nil
}

// BuildDays constructs one Day per date in [startDate, endDate] inclusive.
// Callers validate the range first.
func BuildDays(startDate, endDate string) []models.Day {
	start, err := time.Parse(models.DateLayout, startDate)
	if err != nil {
		return nil
	}
	end, err := time.Parse(models.DateLayout, endDate)
	if err != nil {
		return nil
	}
	var days []models.Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, models.Day{Date: d.Format(models.DateLayout)})
	}
	return days
}
