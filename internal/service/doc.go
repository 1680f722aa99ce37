// Package service answers showtime queries from the cache, crawling the
// listing source and repopulating the cache on a miss.
package service
