package showtime

import (
	"encoding/json"
	"fmt"
)

// storedMovie is the cached form of a Movie. Rendered times are derived per
// request and never stored.
type storedMovie struct {
	ID             *string  `json:"mid"`
	Name           string   `json:"name"`
	URL            *string  `json:"url"`
	Info           *string  `json:"info"`
	RuntimeMinutes int      `json:"runtime"`
	LocalTimes     []string `json:"local_times"`
	MilitaryTimes  []string `json:"military_times"`
	Warnings       []string `json:"warnings"`
}

type storedTheatre struct {
	ID          *string       `json:"tid"`
	Name        string        `json:"name"`
	Address     string        `json:"address"`
	PhoneNumber *string       `json:"phone_number"`
	URL         *string       `json:"url"`
	Info        string        `json:"info"`
	Movies      []storedMovie `json:"showtimes"`
	Warnings    []string      `json:"warnings"`
}

// Encode serializes theatres in their canonical cached form.
func Encode(theatres []Theatre) ([]byte, error) {
	out := make([]storedTheatre, len(theatres))
	for i, t := range theatres {
		movies := make([]storedMovie, len(t.Movies))
		for j, m := range t.Movies {
			movies[j] = storedMovie{
				ID:             m.ID,
				Name:           m.Name,
				URL:            m.URL,
				Info:           m.Info,
				RuntimeMinutes: m.RuntimeMinutes,
				LocalTimes:     m.LocalTimes,
				MilitaryTimes:  m.MilitaryTimes,
				Warnings:       m.Warnings,
			}
		}
		out[i] = storedTheatre{
			ID:          t.ID,
			Name:        t.Name,
			Address:     t.Address,
			PhoneNumber: t.PhoneNumber,
			URL:         t.URL,
			Info:        t.Info,
			Movies:      movies,
			Warnings:    t.Warnings,
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode theatres: %w", err)
	}
	return data, nil
}

// Decode parses data written by Encode.
func Decode(data []byte) ([]Theatre, error) {
	var stored []storedTheatre
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode theatres: %w", err)
	}
	out := make([]Theatre, len(stored))
	for i, t := range stored {
		movies := make([]Movie, len(t.Movies))
		for j, m := range t.Movies {
			movies[j] = Movie{
				ID:             m.ID,
				Name:           m.Name,
				URL:            m.URL,
				Info:           m.Info,
				RuntimeMinutes: m.RuntimeMinutes,
				LocalTimes:     m.LocalTimes,
				MilitaryTimes:  m.MilitaryTimes,
				Warnings:       m.Warnings,
			}
		}
		out[i] = Theatre{
			ID:          t.ID,
			Name:        t.Name,
			Address:     t.Address,
			PhoneNumber: t.PhoneNumber,
			URL:         t.URL,
			Info:        t.Info,
			Movies:      movies,
			Warnings:    t.Warnings,
		}
	}
	return out, nil
}
