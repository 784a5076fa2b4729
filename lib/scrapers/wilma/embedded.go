package wilma

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// the schedule page embeds its event records as a JSON array inside a
// script block, preceded by this marker (two spellings in the wild)
const eventsMarker = "Events"

// ExtractEmbeddedArray locates a balanced JSON array embedded in doc
// after the given marker. it tries "<marker> : [" then "<marker>: [",
// finds the first "[" after the match and scans forward counting
// bracket depth until it returns to zero, which is robust to
// arbitrarily nested sub-arrays and objects inside the records.
// returns "" when the marker or a balanced closing bracket is missing.
func ExtractEmbeddedArray(doc, marker string) string {
	start := strings.Index(doc, marker+" : [")
	if start == -1 {
		start = strings.Index(doc, marker+": [")
	}
	if start == -1 {
		return ""
	}

	arrayStart := strings.Index(doc[start:], "[")
	if arrayStart == -1 {
		return ""
	}
	arrayStart += start

	depth := 0
	for i := arrayStart; i < len(doc); i++ {
		switch doc[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return doc[arrayStart : i+1]
			}
		}
	}
	return ""
}

// decodeEvents extracts and parses the embedded event array. the
// second return reports whether the marker was present at all, so
// callers can distinguish "no embedded data on this page" from "data
// present but empty/broken". parse failures degrade to no events,
// extraction is always best-effort.
func decodeEvents(doc string) ([]map[string]any, bool) {
	raw := ExtractEmbeddedArray(doc, eventsMarker)
	if raw == "" {
		return nil, false
	}
	var events []map[string]any
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		return nil, true
	}
	return events, true
}

var teacherPrefixRegex = regexp.MustCompile(`^O:\s*`)

func lessonFromEvent(event map[string]any) Lesson {
	teacher := indexedField(event, "Opet")
	if teacher != "" {
		teacher = teacherPrefixRegex.ReplaceAllString(teacher, "")
	}

	return Lesson{
		StartTime: formatMinutes(eventInt(event, "Start")),
		EndTime:   formatMinutes(eventInt(event, "End")),
		Subject:   eventSubject(event),
		Teacher:   teacher,
		Notes:     indexedField(event, "LongText"),
	}
}

// Start/End are integer minutes since midnight
func formatMinutes(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

func eventInt(event map[string]any, key string) int {
	if f, ok := event[key].(float64); ok {
		return int(f)
	}
	return 0
}

func eventString(event map[string]any, key string) string {
	if s, ok := event[key].(string); ok {
		return s
	}
	return ""
}

// Text/LongText/Opet are dictionaries keyed by a numeric-string index,
// field "0" holds the canonical value
func indexedField(event map[string]any, key string) string {
	dict, ok := event[key].(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := dict["0"].(string); ok {
		return s
	}
	return ""
}

// the subject tolerates a non-dictionary Text value and stringifies it
func eventSubject(event map[string]any) string {
	v, ok := event["Text"]
	if !ok || v == nil {
		return ""
	}
	if dict, ok := v.(map[string]any); ok {
		if s, ok := dict["0"].(string); ok {
			return s
		}
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
