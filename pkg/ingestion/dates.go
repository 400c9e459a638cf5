package ingestion

import (
	"strings"
	"time"

	"github.com/healix-ai/backend/pkg/records"
)

var dateLayouts = []string{
	records.DateLayout,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"2006/01/02",
}

// parseDate accepts the date shapes seen in exported datasets. Anything else
// yields nil rather than an error.
func parseDate(raw string, ok bool) *records.Date {
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := records.NewDate(t)
			return &d
		}
	}
	return nil
}
