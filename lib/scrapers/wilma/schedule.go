package wilma

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"wilma-backend/lib/timezone"

	"github.com/PuerkitoBio/goquery"
)

// Schedule returns the lessons for a single date. the schedule page
// serves a whole week of embedded event records, so events are
// filtered down to the requested date.
func (c *Client) Schedule(ctx context.Context, date time.Time) (DaySchedule, error) {
	ctx, span := tracer.Start(ctx, "client:Schedule")
	defer span.End()

	res, err := c.request(
		ctx, http.MethodGet,
		"/schedule?date="+timezone.FormatPortalDate(date),
		nil,
	)
	if err != nil {
		return DaySchedule{}, err
	}

	return parseDaySchedule(string(res.Body()), date), nil
}

func parseDaySchedule(doc string, date time.Time) DaySchedule {
	day := DaySchedule{Date: timezone.StartOfDay(date)}

	events, markerFound := decodeEvents(doc)
	if !markerFound {
		// some instances render the schedule server-side instead of
		// embedding event records
		day.Lessons = parseScheduleMarkup(doc)
		sortLessons(day.Lessons)
		return day
	}

	dateStr := timezone.FormatPortalDate(date)
	for _, event := range events {
		if eventString(event, "Date") != dateStr {
			continue
		}
		day.Lessons = append(day.Lessons, lessonFromEvent(event))
	}
	sortLessons(day.Lessons)
	return day
}

var dayCountRegex = regexp.MustCompile(`DayCount\s*:\s*(\d+)`)

// WeekSchedule returns one DaySchedule per rendered day starting at
// start. the page advertises how many days it covers via a DayCount
// field; five when absent.
func (c *Client) WeekSchedule(ctx context.Context, start time.Time) ([]DaySchedule, error) {
	ctx, span := tracer.Start(ctx, "client:WeekSchedule")
	defer span.End()

	res, err := c.request(
		ctx, http.MethodGet,
		"/schedule?date="+timezone.FormatPortalDate(start),
		nil,
	)
	if err != nil {
		return nil, err
	}

	return parseWeekSchedule(string(res.Body()), start), nil
}

func parseWeekSchedule(doc string, start time.Time) []DaySchedule {
	dayCount := 5
	if groups := dayCountRegex.FindStringSubmatch(doc); groups != nil {
		dayCount, _ = strconv.Atoi(groups[1])
	}

	buckets := map[string][]Lesson{}
	events, _ := decodeEvents(doc)
	for _, event := range events {
		date := eventString(event, "Date")
		if date == "" {
			continue
		}
		buckets[date] = append(buckets[date], lessonFromEvent(event))
	}

	schedules := make([]DaySchedule, dayCount)
	for i := 0; i < dayCount; i++ {
		day := start.AddDate(0, 0, i)
		lessons := buckets[timezone.FormatPortalDate(day)]
		sortLessons(lessons)
		schedules[i] = DaySchedule{
			Date:    timezone.StartOfDay(day),
			Lessons: lessons,
		}
	}
	return schedules
}

func sortLessons(lessons []Lesson) {
	slices.SortFunc(lessons, func(a, b Lesson) int {
		return strings.Compare(a.StartTime, b.StartTime)
	})
}

// fallback strategies for server-rendered schedules, tried in order,
// first non-empty result wins
var scheduleStrategies = []func(*goquery.Document) []Lesson{
	lessonsFromTable,
	lessonsFromDivs,
	lessonsFromList,
}

func parseScheduleMarkup(doc string) []Lesson {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil
	}
	for _, strategy := range scheduleStrategies {
		if lessons := strategy(parsed); len(lessons) > 0 {
			return lessons
		}
	}
	return nil
}

var scheduleClassRegex = regexp.MustCompile(`(?i)schedule|timetable|aikataulu`)
var lessonClassRegex = regexp.MustCompile(`(?i)lesson|event|tunti`)
var lessonListClassRegex = regexp.MustCompile(`(?i)schedule|lessons`)
var timeRangeRegex = regexp.MustCompile(`(\d{1,2}[:.]\d{2})\s*[-–]\s*(\d{1,2}[:.]\d{2})`)

func lessonsFromTable(doc *goquery.Document) []Lesson {
	table := findByClass(doc, "table", scheduleClassRegex)
	if table == nil {
		return nil
	}

	var lessons []Lesson
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		start, end, ok := parseTimeRange(cellText(cells, 0))
		if !ok {
			return
		}

		lesson := Lesson{
			StartTime: start,
			EndTime:   end,
			Subject:   cellText(cells, 1),
			Room:      cellText(cells, 2),
			Teacher:   cellText(cells, 3),
		}
		if groups := cellText(cells, 4); groups != "" {
			for _, g := range strings.Split(groups, ",") {
				if g = strings.TrimSpace(g); g != "" {
					lesson.Groups = append(lesson.Groups, g)
				}
			}
		}
		lessons = append(lessons, lesson)
	})
	return lessons
}

func lessonsFromDivs(doc *goquery.Document) []Lesson {
	var lessons []Lesson
	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		if !lessonClassRegex.MatchString(div.AttrOr("class", "")) {
			return
		}
		if lesson, ok := lessonFromText(div.Text()); ok {
			lessons = append(lessons, lesson)
		}
	})
	return lessons
}

func lessonsFromList(doc *goquery.Document) []Lesson {
	list := findByClass(doc, "ul", lessonListClassRegex)
	if list == nil {
		return nil
	}

	var lessons []Lesson
	list.Find("li").Each(func(_ int, item *goquery.Selection) {
		if lesson, ok := lessonFromText(item.Text()); ok {
			lessons = append(lessons, lesson)
		}
	})
	return lessons
}

// a single text blob holding a time range and a subject, e.g.
// "08:00-08:45 Mathematics"
func lessonFromText(text string) (Lesson, bool) {
	start, end, ok := parseTimeRange(text)
	if !ok {
		return Lesson{}, false
	}
	subject := strings.TrimSpace(timeRangeRegex.ReplaceAllString(text, ""))
	return Lesson{
		StartTime: start,
		EndTime:   end,
		Subject:   subject,
	}, true
}

func parseTimeRange(text string) (string, string, bool) {
	groups := timeRangeRegex.FindStringSubmatch(text)
	if groups == nil {
		return "", "", false
	}
	return normalizeClock(groups[1]), normalizeClock(groups[2]), true
}

// "8.00" -> "08:00", keeping clock strings fixed-width so
// lexicographic order matches chronological order
func normalizeClock(s string) string {
	s = strings.ReplaceAll(s, ".", ":")
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return s
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%s", hour, parts[1])
}

func findByClass(doc *goquery.Document, tag string, classRegex *regexp.Regexp) *goquery.Selection {
	var found *goquery.Selection
	doc.Find(tag).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if classRegex.MatchString(sel.AttrOr("class", "")) {
			found = sel
			return false
		}
		return true
	})
	return found
}

func cellText(cells *goquery.Selection, i int) string {
	if i >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(i).Text())
}
