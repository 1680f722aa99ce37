package showtime

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// KeySeparator joins the normalized location and the day offset in a cache key.
const KeySeparator = ":"

// Sentinel validation failures. ValidationError wraps one of these.
var (
	ErrMissingNear         = errors.New("need to specify `near` parameter")
	ErrInvalidDate         = errors.New("`date` must be a base-10 integer")
	ErrInvalidMilitaryTime = errors.New("`militaryTime` must be either true or false")
)

// ValidationError reports a rejected query parameter. Its message is safe to
// return to callers verbatim.
type ValidationError struct {
	Param string
	Err   error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

// Query is a validated showtimes request. DayOffset is never negative.
type Query struct {
	Location        string
	DayOffset       int
	UseMilitaryTime bool
}

// Key returns the cache key addressing this query's result set.
func (q Query) Key() string {
	offset := q.DayOffset
	return BuildKey(q.Location, &offset)
}

// ParseQuery validates raw request parameters. A nil pointer means the
// parameter was absent.
func ParseQuery(near, date, militaryTime *string) (Query, error) {
	if near == nil || strings.TrimSpace(*near) == "" {
		return Query{}, &ValidationError{Param: "near", Err: ErrMissingNear}
	}
	q := Query{Location: *near}

	if date != nil {
		offset, err := strconv.Atoi(strings.TrimSpace(*date))
		if err != nil {
			return Query{}, &ValidationError{Param: "date", Err: ErrInvalidDate}
		}
		q.DayOffset = ClampDayOffset(offset)
	}

	if militaryTime != nil {
		switch strings.ToLower(*militaryTime) {
		case "true":
			q.UseMilitaryTime = true
		case "false":
		default:
			return Query{}, &ValidationError{Param: "militaryTime", Err: ErrInvalidMilitaryTime}
		}
	}
	return q, nil
}

// ClampDayOffset maps negative offsets to 0. The listing source ignores
// negative offsets, so they address the same results as today.
func ClampDayOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

var keyStrip = regexp.MustCompile(`[\s!@#$%^&*()_=+,<.>/?;:'"{}\[\]|]+`)

// NormalizeLocation lowercases location and removes whitespace and common
// punctuation so that equivalent spellings share a key.
func NormalizeLocation(location string) string {
	return strings.ToLower(keyStrip.ReplaceAllString(location, ""))
}

// BuildKey composes the cache key for a location and optional day offset.
// An absent or negative offset is treated as 0.
func BuildKey(location string, dayOffset *int) string {
	offset := 0
	if dayOffset != nil {
		offset = ClampDayOffset(*dayOffset)
	}
	return NormalizeLocation(location) + KeySeparator + strconv.Itoa(offset)
}
