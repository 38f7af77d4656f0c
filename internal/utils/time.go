package utils

import (
	"fmt"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDateTime accepts the timestamp shapes clients commonly send and
// returns the instant in UTC. Layouts without a zone are read as UTC.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported dateTime %q", value)
}

// PercentageOf formats part/total*100 with two decimals and a % suffix.
// Ties round half-up, so 1 of 800 reads 0.13%.
func PercentageOf(part, total int) string {
	if total <= 0 || part <= 0 {
		return "0.00%"
	}
	bp := (part*20000 + total) / (2 * total)
	return fmt.Sprintf("%d.%02d%%", bp/100, bp%100)
}
