package timesync

import (
	"fmt"
	"strings"
	"time"
)

// epochs at or above this magnitude are read as milliseconds; as seconds
// they would lie past the year 5000
const millisThreshold = 100_000_000_000

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// EpochTime converts an epoch field to a time in time.UTC. Both second and
// millisecond epochs are accepted.
func EpochTime(v int64) time.Time {
	if v >= millisThreshold || v <= -millisThreshold {
		return time.UnixMilli(v).UTC()
	}
	return time.Unix(v, 0).UTC()
}

// ParseDateTime parses an RFC 3339 datetime, or a zone-less datetime as
// written by older app builds. hasZone reports whether the text carried an
// explicit offset.
func ParseDateTime(s string) (t time.Time, hasZone bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("invalid datetime %q", s)
}

// WallClock returns the wall-clock reading of t expressed in time.UTC
func WallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
