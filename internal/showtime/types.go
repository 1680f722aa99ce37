package showtime

import "time"

// Movie is one film playing at a theatre on the queried day.
type Movie struct {
	ID             *string  `json:"mid"`
	Name           string   `json:"name"`
	URL            *string  `json:"url"`
	Info           *string  `json:"info"`
	RuntimeMinutes int      `json:"runtime"`
	Times          []string `json:"times"`
	LocalTimes     []string `json:"local_times"`
	MilitaryTimes  []string `json:"military_times"`
	Warnings       []string `json:"warnings"`
}

// Theatre is a venue together with the movies it lists.
type Theatre struct {
	ID          *string  `json:"tid"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	PhoneNumber *string  `json:"phone_number"`
	URL         *string  `json:"url"`
	Info        string   `json:"info"`
	Movies      []Movie  `json:"showtimes"`
	Warnings    []string `json:"warnings"`
}

// Render returns a copy of theatres whose movies expose either the raw listing
// times or the normalized 24-hour times in their Times field. Times is never
// nil in the result.
func Render(theatres []Theatre, military bool) []Theatre {
	out := make([]Theatre, len(theatres))
	for i, t := range theatres {
		movies := make([]Movie, len(t.Movies))
		for j, m := range t.Movies {
			if military {
				m.Times = cloneStrings(m.MilitaryTimes)
			} else {
				m.Times = cloneStrings(m.LocalTimes)
			}
			movies[j] = m
		}
		t.Movies = movies
		out[i] = t
	}
	return out
}

// Strip clears the rendered Times field. Use Encode to serialize the result.
func Strip(theatres []Theatre) []Theatre {
	out := make([]Theatre, len(theatres))
	for i, t := range theatres {
		movies := make([]Movie, len(t.Movies))
		for j, m := range t.Movies {
			m.Times = nil
			movies[j] = m
		}
		t.Movies = movies
		out[i] = t
	}
	return out
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneStrings(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Snapshot is one crawl result addressed by its query key.
type Snapshot struct {
	Key       string
	CrawledAt time.Time
	Theatres  []Theatre
}
