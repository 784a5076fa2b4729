package wilma

import (
	"testing"
	"time"
	"wilma-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

const weekScheduleDoc = `<html><script>
var calendar = {
	DayCount : 3,
	Events : [
		{"Date": "10.02.2026", "Start": 600, "End": 645, "Text": {"0": "History"}},
		{"Date": "09.02.2026", "Start": 555, "End": 600, "Text": {"0": "Physics"}, "Opet": {"0": "O: M. Virtanen"}},
		{"Date": "09.02.2026", "Start": 510, "End": 555, "Text": {"0": "Math"}, "Opet": {"0": "O: J. Doe"}}
	]
};
</script></html>`

func TestParseDaySchedule(t *testing.T) {
	date := time.Date(2026, 2, 9, 14, 30, 0, 0, timezone.Location)
	day := parseDaySchedule(weekScheduleDoc, date)

	require.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location), day.Date)
	require.Len(t, day.Lessons, 2)
	// other days of the embedded week are filtered out, lessons sorted
	// by start time
	require.Equal(t, "Math", day.Lessons[0].Subject)
	require.Equal(t, "J. Doe", day.Lessons[0].Teacher)
	require.Equal(t, "08:30", day.Lessons[0].StartTime)
	require.Equal(t, "Physics", day.Lessons[1].Subject)
}

func TestParseDayScheduleEmptyDay(t *testing.T) {
	date := time.Date(2026, 2, 13, 0, 0, 0, 0, timezone.Location)
	day := parseDaySchedule(weekScheduleDoc, date)
	require.Empty(t, day.Lessons)
}

func TestParseWeekSchedule(t *testing.T) {
	start := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	week := parseWeekSchedule(weekScheduleDoc, start)

	require.Len(t, week, 3)
	require.Equal(t, start, week[0].Date)
	require.Len(t, week[0].Lessons, 2)
	require.Equal(t, []string{"Math", "Physics"}, []string{
		week[0].Lessons[0].Subject,
		week[0].Lessons[1].Subject,
	})
	require.Len(t, week[1].Lessons, 1)
	require.Equal(t, "History", week[1].Lessons[0].Subject)
	require.Empty(t, week[2].Lessons)
}

func TestParseWeekScheduleDefaultDayCount(t *testing.T) {
	start := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	week := parseWeekSchedule(`<html>Events : []</html>`, start)
	require.Len(t, week, 5)
	for i, day := range week {
		require.Equal(t, start.AddDate(0, 0, i), day.Date)
		require.Empty(t, day.Lessons)
	}
}

func TestParseDayScheduleTableFallback(t *testing.T) {
	// no embedded events at all, the instance renders the schedule
	// server-side
	doc := `<html><body>
	<table class="schedule-table">
		<tr><th>Aika</th><th>Aine</th></tr>
		<tr><td>9.15 - 10.00</td><td>Physics</td><td>B2</td><td>M. Virtanen</td><td>8A, 8B</td></tr>
		<tr><td>8:30-9:15</td><td>Math</td><td>A1</td><td>J. Doe</td></tr>
	</table>
	</body></html>`

	date := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	day := parseDaySchedule(doc, date)

	require.Len(t, day.Lessons, 2)
	require.Equal(t, Lesson{
		StartTime: "08:30",
		EndTime:   "09:15",
		Subject:   "Math",
		Room:      "A1",
		Teacher:   "J. Doe",
	}, day.Lessons[0])
	require.Equal(t, Lesson{
		StartTime: "09:15",
		EndTime:   "10:00",
		Subject:   "Physics",
		Room:      "B2",
		Teacher:   "M. Virtanen",
		Groups:    []string{"8A", "8B"},
	}, day.Lessons[1])
}

func TestParseDayScheduleDivFallback(t *testing.T) {
	doc := `<html><body>
	<div class="lesson-card">8:30-9:15 Math</div>
	<div class="lesson-card">9:15-10:00 Physics</div>
	<div class="footer">not a lesson</div>
	</body></html>`

	date := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	day := parseDaySchedule(doc, date)

	require.Len(t, day.Lessons, 2)
	require.Equal(t, "Math", day.Lessons[0].Subject)
	require.Equal(t, "08:30", day.Lessons[0].StartTime)
}

func TestParseDayScheduleListFallback(t *testing.T) {
	doc := `<html><body>
	<ul class="lessons">
		<li>12:00–12:45 Chemistry</li>
	</ul>
	</body></html>`

	date := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	day := parseDaySchedule(doc, date)

	require.Len(t, day.Lessons, 1)
	require.Equal(t, "Chemistry", day.Lessons[0].Subject)
	require.Equal(t, "12:00", day.Lessons[0].StartTime)
	require.Equal(t, "12:45", day.Lessons[0].EndTime)
}

func TestParseDayScheduleNoFallbackOnBrokenEvents(t *testing.T) {
	// the marker is present but the payload is broken: markup fallbacks
	// must not kick in, the page clearly meant to embed its data
	doc := `<html>
	Events : [{"Date":}]
	<div class="lesson-card">8:30-9:15 Math</div>
	</html>`

	date := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	day := parseDaySchedule(doc, date)
	require.Empty(t, day.Lessons)
}

func TestParsingIsIdempotent(t *testing.T) {
	date := time.Date(2026, 2, 9, 0, 0, 0, 0, timezone.Location)
	require.Equal(t,
		parseDaySchedule(weekScheduleDoc, date),
		parseDaySchedule(weekScheduleDoc, date),
	)
	require.Equal(t,
		parseWeekSchedule(weekScheduleDoc, date),
		parseWeekSchedule(weekScheduleDoc, date),
	)
}

func TestNormalizeClock(t *testing.T) {
	require.Equal(t, "08:00", normalizeClock("8.00"))
	require.Equal(t, "08:00", normalizeClock("8:00"))
	require.Equal(t, "12:45", normalizeClock("12.45"))
}
