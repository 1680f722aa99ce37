package showtime

import (
	"fmt"
	"regexp"
	"strconv"
)

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

type clock struct {
	hour   int
	minute int
}

func (c clock) before(o clock) bool {
	if c.hour != o.hour {
		return c.hour < o.hour
	}
	return c.minute < o.minute
}

func (c clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

// Normalize converts a single listing of "H:MM" showtimes without meridiem
// markers into 24-hour "HH:MM" values.
//
// Listings are chronological and reset past noon, so the first position where
// the sequence stops increasing starts the afternoon run. A listing that never
// stops increasing is taken to be entirely in the afternoon. Input that already
// contains an hour past 12 is returned unchanged.
func Normalize(times []string) ([]string, error) {
	parsed := make([]clock, len(times))
	alreadyMilitary := false
	for i, raw := range times {
		c, err := parseClock(raw)
		if err != nil {
			return nil, err
		}
		if c.hour > 12 {
			alreadyMilitary = true
		}
		parsed[i] = c
	}
	if alreadyMilitary {
		return cloneStrings(times), nil
	}

	firstPM := 0
	for i := 0; i+1 < len(parsed); i++ {
		if !parsed[i].before(parsed[i+1]) {
			firstPM = i + 1
			break
		}
	}

	out := make([]string, len(parsed))
	for i, c := range parsed {
		if i >= firstPM {
			c.hour = (c.hour + 12) % 24
		}
		out[i] = c.String()
	}
	return out, nil
}

func parseClock(raw string) (clock, error) {
	m := clockPattern.FindStringSubmatch(raw)
	if m == nil {
		return clock{}, fmt.Errorf("parse showtime %q: want H:MM", raw)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return clock{}, fmt.Errorf("parse showtime %q: out of range", raw)
	}
	return clock{hour: hour, minute: minute}, nil
}
