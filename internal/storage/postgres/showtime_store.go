package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/showtimes/internal/showtime"
)

// ShowtimeStore mirrors crawled listings into relational tables.
type ShowtimeStore struct {
	pool pool
}

// NewShowtimeStore wraps an existing pool.
func NewShowtimeStore(p pool) (*ShowtimeStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ShowtimeStore{pool: p}, nil
}

// SaveShowtimes replaces every row for snap.Key in a single transaction.
func (s *ShowtimeStore) SaveShowtimes(ctx context.Context, snap showtime.Snapshot) error {
	if snap.Key == "" {
		return fmt.Errorf("snapshot key is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := writeSnapshot(ctx, tx, snap); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// writeSnapshot queues every statement for snap into one batch so the mirror
// costs a single round trip regardless of listing size.
func writeSnapshot(ctx context.Context, tx pgx.Tx, snap showtime.Snapshot) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM showtime_movies WHERE query_key = $1`, snap.Key)
	batch.Queue(`DELETE FROM showtime_theatres WHERE query_key = $1`, snap.Key)
	for i, theatre := range snap.Theatres {
		batch.Queue(`
INSERT INTO showtime_theatres (query_key, position, tid, name, address, phone_number, url, info, warnings, crawled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			snap.Key, i, theatre.ID, theatre.Name, theatre.Address,
			theatre.PhoneNumber, theatre.URL, theatre.Info, nonNil(theatre.Warnings), snap.CrawledAt,
		)
		for j, movie := range theatre.Movies {
			batch.Queue(`
INSERT INTO showtime_movies (query_key, theatre_position, position, mid, name, url, info, runtime_minutes, local_times, military_times, warnings)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				snap.Key, i, j, movie.ID, movie.Name, movie.URL, movie.Info,
				movie.RuntimeMinutes, nonNil(movie.LocalTimes), nonNil(movie.MilitaryTimes), nonNil(movie.Warnings),
			)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write snapshot %q: %w", snap.Key, err)
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
