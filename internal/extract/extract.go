package extract

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/showtimes/internal/showtime"
)

// ErrStructure marks a block that lacks a required section.
var ErrStructure = errors.New("unexpected listing structure")

const (
	theatreSelector  = ".theater"
	nextLinkText     = "Next"
	navbarSelector   = "#navbar td a"
	titleBarSelector = "#title_bar"
	infoSeparator    = " - "
)

var (
	theatreIDPattern = regexp.MustCompile(`tid=(\w+)`)
	movieIDPattern   = regexp.MustCompile(`mid=(\w+)`)
	showtimePattern  = regexp.MustCompile(`\d{1,2}:\d{2}`)
	spaceRun         = regexp.MustCompile(`\s{2,}`)
)

// Page is the extraction result for a single listing page.
type Page struct {
	Theatres []showtime.Theatre
	Warnings []string
}

// Theatres extracts every theatre block on the page in document order.
func Theatres(doc *goquery.Document) Page {
	var page Page
	doc.Find(theatreSelector).Each(func(i int, s *goquery.Selection) {
		theatre, err := parseTheatre(s)
		if err != nil {
			page.Warnings = append(page.Warnings, fmt.Sprintf("skipped theatre block %d: %v", i, err))
			return
		}
		page.Theatres = append(page.Theatres, theatre)
	})
	return page
}

// NextPageURL returns the absolute URL of the navigation bar's "Next" link, or
// an empty string when the page is the last one.
func NextPageURL(doc *goquery.Document, pageURL string) (string, error) {
	var href string
	doc.Find(navbarSelector).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(strings.TrimSpace(a.Text()), nextLinkText) {
			return true
		}
		href, _ = a.Attr("href")
		return false
	})
	if href == "" {
		return "", nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse page url: %w", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("parse next link %q: %w", href, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// TitleBar returns the listing's heading text, e.g. "Showtimes for Chicago, IL".
func TitleBar(doc *goquery.Document) string {
	return cleanText(doc.Find(titleBarSelector).First().Text())
}

func parseTheatre(s *goquery.Selection) (showtime.Theatre, error) {
	desc := s.Find(".desc").First()
	if desc.Length() == 0 {
		return showtime.Theatre{}, fmt.Errorf("%w: no description block", ErrStructure)
	}
	listing := s.Find(".showtimes").First()
	if listing.Length() == 0 {
		return showtime.Theatre{}, fmt.Errorf("%w: no showtimes block", ErrStructure)
	}

	var warnings []string
	nameEl := desc.Find(".name a").First()
	if nameEl.Length() == 0 {
		// Single-theatre result pages render the name without a deep link.
		nameEl = desc.Find(".name").First()
		if nameEl.Length() == 0 {
			return showtime.Theatre{}, fmt.Errorf("%w: no theatre name", ErrStructure)
		}
		warnings = append(warnings, cleanText(nameEl.Text())+" may not be properly scraped")
	}

	theatre := showtime.Theatre{Name: cleanText(nameEl.Text())}
	if href, ok := nameEl.Attr("href"); ok && href != "" {
		theatre.URL = &href
		if id := matchID(theatreIDPattern, href); id != "" {
			theatre.ID = &id
		} else {
			warnings = append(warnings, "could not scrape theatre id (tid)")
		}
	} else {
		warnings = append(warnings, "could not scrape theatre url")
	}

	theatre.Info = cleanText(desc.Find(".info").First().Text())
	address, phone, ok := splitInfo(theatre.Info)
	theatre.Address = address
	theatre.PhoneNumber = showtime.StringPtr(phone)
	if !ok {
		warnings = append(warnings, fmt.Sprintf("theatre info has more entries than expected: %q", theatre.Info))
	}

	listing.Find(".movie").Each(func(_ int, m *goquery.Selection) {
		theatre.Movies = append(theatre.Movies, parseMovie(m))
	})
	if theatre.Movies == nil {
		theatre.Movies = []showtime.Movie{}
	}
	theatre.Warnings = nonNil(warnings)
	return theatre, nil
}

func parseMovie(s *goquery.Selection) showtime.Movie {
	var warnings []string
	movie := showtime.Movie{Name: cleanText(s.Find(".name").First().Text())}
	if movie.Name == "" {
		warnings = append(warnings, "could not scrape movie name")
	}

	if href, ok := s.Find(".name a").First().Attr("href"); ok && href != "" {
		movie.URL = &href
		if id := matchID(movieIDPattern, href); id != "" {
			movie.ID = &id
		} else {
			warnings = append(warnings, "could not scrape movie id (mid)")
		}
	} else {
		warnings = append(warnings, "could not scrape movie url")
	}

	runtime, info, _ := strings.Cut(cleanText(s.Find(".info").First().Text()), infoSeparator)
	movie.Info = showtime.StringPtr(strings.TrimSpace(info))
	minutes, runtimeWarnings := parseRuntime(movie.Name, strings.TrimSpace(runtime))
	movie.RuntimeMinutes = minutes
	warnings = append(warnings, runtimeWarnings...)

	times := s.Find(".times").First()
	if times.Length() == 0 {
		warnings = append(warnings, "no showtimes listed")
	}
	raw := []string{}
	times.Find(`span[style^="color"]`).Each(func(_ int, span *goquery.Selection) {
		text := span.Text()
		if match := showtimePattern.FindString(text); match != "" {
			raw = append(raw, match)
			return
		}
		warnings = append(warnings, fmt.Sprintf("couldn't extract showtime from input %q", text))
	})
	movie.LocalTimes = raw

	military, err := showtime.Normalize(raw)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("couldn't normalize showtimes: %v", err))
		military = append([]string{}, raw...)
	}
	movie.MilitaryTimes = military
	movie.Warnings = nonNil(warnings)
	return movie
}

// splitInfo separates "address - phone". More than one separator keeps the
// remainder in the phone field and reports ok=false.
func splitInfo(info string) (address, phone string, ok bool) {
	address, phone, _ = strings.Cut(info, infoSeparator)
	return strings.TrimSpace(address), strings.TrimSpace(phone), !strings.Contains(phone, infoSeparator)
}

func matchID(pattern *regexp.Regexp, href string) string {
	m := pattern.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanText(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
