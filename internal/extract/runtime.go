package extract

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	runtimeHours   = regexp.MustCompile(`(\d)(?:hr|:)`)
	runtimeMinutes = regexp.MustCompile(`(\d{1,2})min`)
)

// parseRuntime reads strings such as "1hr 54min" or "2:05min". Each part that
// cannot be found contributes zero and a warning.
func parseRuntime(movieName, runtime string) (int, []string) {
	var (
		total    int
		warnings []string
	)
	if m := runtimeHours.FindStringSubmatch(runtime); m != nil {
		hours, _ := strconv.Atoi(m[1])
		total += hours * 60
	} else {
		warnings = append(warnings, fmt.Sprintf("couldn't extract hours from %s's runtime (%s)", movieName, runtime))
	}
	if m := runtimeMinutes.FindStringSubmatch(runtime); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		total += minutes
	} else {
		warnings = append(warnings, fmt.Sprintf("couldn't extract minutes from %s's runtime (%s)", movieName, runtime))
	}
	return total, warnings
}
