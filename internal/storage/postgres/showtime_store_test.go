package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/showtimes/internal/showtime"
)

func sampleSnapshot() showtime.Snapshot {
	return showtime.Snapshot{
		Key:       "chicagoil:0",
		CrawledAt: time.Unix(1700000000, 0).UTC(),
		Theatres: []showtime.Theatre{
			{
				ID:      showtime.StringPtr("a1b2c3"),
				Name:    "Music Box Theatre",
				Address: "3733 N Southport Ave, Chicago, IL",
				Movies: []showtime.Movie{
					{
						ID:             showtime.StringPtr("m1"),
						Name:           "Heat",
						RuntimeMinutes: 170,
						LocalTimes:     []string{"11:00", "12:30", "1:15"},
						MilitaryTimes:  []string{"11:00", "12:30", "13:15"},
						Warnings:       []string{"movie 1 of theatre 0: showtime \"noonish\" not recognized"},
					},
				},
			},
		},
	}
}

func TestSaveShowtimesReplacesRowsInOneBatch(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewShowtimeStore(mock)
	require.NoError(t, err)
	snap := sampleSnapshot()
	theatre := snap.Theatres[0]
	movie := theatre.Movies[0]

	mock.ExpectBegin()
	batch := mock.ExpectBatch()
	batch.ExpectExec("DELETE FROM showtime_movies").WithArgs(snap.Key).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	batch.ExpectExec("DELETE FROM showtime_theatres").WithArgs(snap.Key).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	batch.ExpectExec("INSERT INTO showtime_theatres").
		WithArgs(snap.Key, 0, theatre.ID, theatre.Name, theatre.Address,
			theatre.PhoneNumber, theatre.URL, theatre.Info, []string{}, snap.CrawledAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO showtime_movies").
		WithArgs(snap.Key, 0, 0, movie.ID, movie.Name, movie.URL, movie.Info,
			movie.RuntimeMinutes, movie.LocalTimes, movie.MilitaryTimes, movie.Warnings).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveShowtimes(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveShowtimesRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewShowtimeStore(mock)
	require.NoError(t, err)

	mock.ExpectBegin()
	batch := mock.ExpectBatch()
	batch.ExpectExec("DELETE FROM showtime_movies").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	batch.ExpectExec("DELETE FROM showtime_theatres").WillReturnResult(pgxmock.NewResult("DELETE", 0))
	batch.ExpectExec("INSERT INTO showtime_theatres").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO showtime_movies").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = store.SaveShowtimes(context.Background(), sampleSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Contains(t, err.Error(), "chicagoil:0")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveShowtimesRequiresKey(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewShowtimeStore(mock)
	require.NoError(t, err)
	assert.Error(t, store.SaveShowtimes(context.Background(), showtime.Snapshot{}))
}
