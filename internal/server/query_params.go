package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	meterdomain "github.com/smallbiznis/aguas/internal/meter/domain"
)

const dateOnlyLayout = "2006-01-02"

func parseID(value string) (snowflake.ID, error) {
	return meterdomain.ParseID(strings.TrimSpace(value))
}

func parseOptionalID(value string) (snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return 0, nil
	}
	return parseID(value)
}

func parseDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, newValidationError("date", "invalid_reading_date", "reading date is required")
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return time.Time{}, newValidationError("date", "invalid_reading_date", "date must use YYYY-MM-DD")
	}
	return parsed, nil
}
