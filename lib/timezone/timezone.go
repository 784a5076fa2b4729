package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Helsinki")
	if err != nil {
		panic(err)
	}
}

// force timezone to be the portal's timezone because the servers
// this runs on may be anywhere, and schedule dates are bucketed by
// <time.Time>.Year()/Month()/Day() comparisons
func Now() time.Time {
	return time.Now().In(Location)
}

// the portal renders dates day-first with a four digit year
const PortalDate = "02.01.2006"

func FormatPortalDate(t time.Time) string {
	return t.In(Location).Format(PortalDate)
}

// truncates a time down to midnight in the portal's timezone
func StartOfDay(t time.Time) time.Time {
	t = t.In(Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Location)
}
