package testutils

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stamp is the session timestamp used by the builders
const Stamp = "2023-11-14-23-13-20"

// Epochs matching Stamp: UTC 22:13:20, local wall clock one hour ahead
const (
	UTCEpoch   int64 = 1700000000
	LocalEpoch int64 = 1700003600
)

// GPSName and AccName return the member names for a session stamp
func GPSName(stamp string) string { return fmt.Sprintf("data-%s.gps", stamp) }
func AccName(stamp string) string { return fmt.Sprintf("data-%s.acc", stamp) }

// Archive builds in-memory zip containers
type Archive struct {
	names []string
	data  map[string][]byte
}

// NewArchive creates an empty archive builder
func NewArchive() *Archive {
	return &Archive{data: make(map[string][]byte)}
}

// Add adds a member whose content is the given lines, each newline-terminated
func (a *Archive) Add(name string, lines ...string) *Archive {
	return a.AddRaw(name, []byte(Lines(lines...)))
}

// AddRaw adds a member with exact content
func (a *Archive) AddRaw(name string, data []byte) *Archive {
	if _, ok := a.data[name]; !ok {
		a.names = append(a.names, name)
	}
	a.data[name] = data
	return a
}

// Build writes the zip; members keep the order they were added in
func (a *Archive) Build() ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range a.names {
		f, err := w.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(a.data[name]); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustBuild is Build for tests that cannot proceed without the archive
func (a *Archive) MustBuild() []byte {
	data, err := a.Build()
	if err != nil {
		panic(fmt.Sprintf("build archive: %v", err))
	}
	return data
}

// SessionArchive builds a standard two-member archive at Stamp. A nil slice
// leaves that member out.
func SessionArchive(gpsLines, accLines []string) []byte {
	a := NewArchive()
	if gpsLines != nil {
		a.Add(GPSName(Stamp), gpsLines...)
	}
	if accLines != nil {
		a.Add(AccName(Stamp), accLines...)
	}
	return a.MustBuild()
}

// Lines joins lines with a trailing newline after each
func Lines(lines ...string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// HeaderLines returns one of each metadata record
func HeaderLines() []string {
	return []string{"U,runner42", "V,3", "A,2.4.1", "I,a1b2c3,Pixel"}
}

// AccHeaderLines is HeaderLines without the GPS-only app version
func AccHeaderLines() []string {
	return []string{"U,runner42", "V,3", "I,a1b2c3,Pixel"}
}

// GpsAnchorLine formats a GPS "H" record with consistent datetime strings
func GpsAnchorLine(utcEpoch int64, lat, lon, ele float64, localEpoch int64) string {
	utc := time.Unix(utcEpoch, 0).UTC()
	zone := time.FixedZone("", int(localEpoch-utcEpoch))
	return strings.Join([]string{
		"H",
		strconv.FormatInt(utcEpoch, 10),
		formatFloat(lat),
		formatFloat(lon),
		formatFloat(ele),
		strconv.FormatInt(localEpoch, 10),
		utc.Format(time.RFC3339),
		utc.In(zone).Format(time.RFC3339),
	}, ",")
}

// GpsDeltaLine formats a GPS "D" record
func GpsDeltaLine(deltaMs int64, field2, field3 string, eleMm, speed float64, heading string) string {
	return strings.Join([]string{
		"D",
		strconv.FormatInt(deltaMs, 10),
		field2,
		field3,
		formatFloat(eleMm),
		formatFloat(speed),
		heading,
	}, ",")
}

// AccAnchorLine formats an accelerometer "H" record with a zone-less
// local datetime string
func AccAnchorLine(counterMs, localEpoch int64) string {
	local := time.Unix(localEpoch, 0).UTC()
	return strings.Join([]string{
		"H",
		strconv.FormatInt(counterMs, 10),
		strconv.FormatInt(localEpoch, 10),
		local.Format("2006-01-02T15:04:05.000"),
	}, ",")
}

// AccDeltaLine formats an accelerometer "D" record
func AccDeltaLine(deltaMs int64, x, y, z string) string {
	return strings.Join([]string{"D", strconv.FormatInt(deltaMs, 10), x, y, z}, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for condition")
		case <-ticker.C:
			if condition() {
				return nil
			}
		}
	}
}
