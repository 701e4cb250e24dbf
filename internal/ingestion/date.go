package ingestion

import (
	"fmt"
	"time"

	"mktlab/pkg/contracts/domain"
)

// Accepted date layouts. Vendors disagree on whether a daily bar carries a
// plain date or a midnight timestamp; both normalize to a UTC date.
var dateLayouts = []string{
	domain.DateFormat,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
