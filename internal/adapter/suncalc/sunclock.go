package suncalc

import (
	"time"

	"surplus2mqtt/internal/core/port"

	"github.com/nathan-osman/go-sunrise"
)

// SunClock computes sunset times for a fixed location. Times are returned
// in the process-local timezone, matching the wall clock the regulation
// deadlines are expressed in.
type SunClock struct {
	latitude  float64
	longitude float64
	now       func() time.Time
}

func NewSunClock(latitude, longitude float64) *SunClock {
	return &SunClock{
		latitude:  latitude,
		longitude: longitude,
		now:       time.Now,
	}
}

func (c *SunClock) LocalTime() (time.Time, bool) {
	return c.now().Local(), true
}

// SunsetTime returns the sunset for the given day. At polar latitudes the
// sun may not set at all, which is reported as unavailable.
func (c *SunClock) SunsetTime(day time.Time) (time.Time, bool) {
	local := day.Local()
	_, sunset := sunrise.SunriseSunset(c.latitude, c.longitude, local.Year(), local.Month(), local.Day())
	if sunset.IsZero() {
		return time.Time{}, false
	}
	return sunset.Local(), true
}

// ensure interface compliance
var _ port.SunClock = (*SunClock)(nil)
