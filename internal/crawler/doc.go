// Package crawler walks a paginated showtimes listing. Each page is fetched,
// extracted, and searched for a "Next" navigation link; pages are visited
// strictly in sequence and their theatres concatenated in fetch order.
//
// The crawl stops when no "Next" link remains, when a link points back to a
// page already visited, or when Config.MaxPages pages have been fetched.
package crawler
