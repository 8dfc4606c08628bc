// Package areawatch tails the game client log and turns raw area-entry
// lines into semantic map-run transitions.
//
// A single background goroutine polls the log file for appended bytes,
// parses matching lines into events, classifies each area code and applies
// the transition rules. All other goroutines observe the monitor only
// through a copy-returning Status accessor.
package areawatch

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Event is one parsed area-entry log line. Events are immutable after
// creation.
type Event struct {
	Time     time.Time
	Level    int
	AreaCode string
	Seed     int
	Line     string
}

// areaLine matches the client's area generation line:
//
//	2025/07/03 22:13:55 123456 [INFO Client 1234] Generating level 65 area "MapSteppe" with seed 314159
var areaLine = regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2}) (\d{2}):(\d{2}):(\d{2})\b.*Generating level (\d+) area "([^"]+)" with seed (\d+)`)

// ParseLine attempts to parse an area-entry line. Unrecognized lines
// return false; they are not errors.
func ParseLine(line string) (Event, bool) {
	line = strings.TrimRight(line, "\r\n")
	m := areaLine.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	sec, _ := strconv.Atoi(m[6])
	level, _ := strconv.Atoi(m[7])
	seed, _ := strconv.Atoi(m[9])

	return Event{
		Time:     time.Date(year, time.Month(month), day, hour, minute, sec, 0, time.Local),
		Level:    level,
		AreaCode: m[8],
		Seed:     seed,
		Line:     line,
	}, true
}
