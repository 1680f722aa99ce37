// Package showtime holds the value types shared by the extraction, crawl and
// cache layers: theatres, movies, and the validated query that addresses a
// cached result set.
//
// Times scraped from listings carry no meridiem marker. Normalize converts a
// single movie's list of showings into 24-hour values using the ordering of the
// listing; Render picks which representation a response exposes.
package showtime
