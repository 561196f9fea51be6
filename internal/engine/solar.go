package engine

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// sunTimes returns sunrise and sunset in UTC for the calendar date of day at
// the given coordinates. ok is false during polar day or polar night.
func sunTimes(day time.Time, latitude, longitude float64) (rise, set time.Time, ok bool) {
	rise, set = sunrise.SunriseSunset(latitude, longitude, day.Year(), day.Month(), day.Day())
	if rise.IsZero() || set.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return rise, set, true
}
