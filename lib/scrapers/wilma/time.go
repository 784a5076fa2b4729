package wilma

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"wilma-backend/lib/timezone"
)

// the portal renders timestamps day-first in several finnish styles,
// with ISO appearing on the json endpoints. tried in order.
var timestampFormats = []string{
	"2.1.2006 15:04",
	"2.1.2006 15.04",
	"2.1.2006",
	"2.1. 15:04",
	"2.1.",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var componentDateRegex = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\.?(\d{2,4})?`)
var componentTimeRegex = regexp.MustCompile(`(\d{1,2})[.:](\d{2})`)

// parseTimestamp parses a markup-derived timestamp on a best-effort
// basis: the format list first, then regex extraction of individual
// components. a source that omits the year gets the current one, a
// source that omits the time gets midnight. total failure yields the
// current time rather than an error, upstream markup is untrusted.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return timezone.Now()
	}

	for _, format := range timestampFormats {
		parsed, err := time.ParseInLocation(format, s, timezone.Location)
		if err != nil {
			continue
		}
		// a zero or 1900 year means the source omitted it
		if parsed.Year() == 0 || parsed.Year() == 1900 {
			now := timezone.Now()
			parsed = time.Date(
				now.Year(), parsed.Month(), parsed.Day(),
				parsed.Hour(), parsed.Minute(), 0, 0, timezone.Location,
			)
		}
		return parsed
	}

	dateGroups := componentDateRegex.FindStringSubmatch(s)
	if dateGroups == nil {
		return timezone.Now()
	}

	day, _ := strconv.Atoi(dateGroups[1])
	month, _ := strconv.Atoi(dateGroups[2])
	year := timezone.Now().Year()
	if dateGroups[3] != "" {
		year, _ = strconv.Atoi(dateGroups[3])
		if year < 100 {
			year += 2000
		}
	}

	hour, minute := 0, 0
	if timeGroups := componentTimeRegex.FindStringSubmatch(s); timeGroups != nil {
		hour, _ = strconv.Atoi(timeGroups[1])
		minute, _ = strconv.Atoi(timeGroups[2])
	}

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, timezone.Location)
}
