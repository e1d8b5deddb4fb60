package types

import (
	"math"
	"time"
)

// FileType identifies which archive member a record came from
type FileType int

const (
	// FileContainer is used for diagnostics that belong to the archive itself
	FileContainer FileType = iota
	FileGPS
	FileAcc
)

func (f FileType) String() string {
	switch f {
	case FileGPS:
		return "gps"
	case FileAcc:
		return "acc"
	default:
		return "container"
	}
}

// Kind is the single-character record tag in the first field of a line
type Kind byte

const (
	KindUser       Kind = 'U'
	KindVersion    Kind = 'V'
	KindAppVersion Kind = 'A'
	KindDevice     Kind = 'I'
	KindAnchor     Kind = 'H'
	KindDelta      Kind = 'D'
)

func (k Kind) String() string {
	return string(rune(k))
}

// IsHeader reports whether the kind carries session metadata
func (k Kind) IsHeader() bool {
	switch k {
	case KindUser, KindVersion, KindAppVersion, KindDevice:
		return true
	}
	return false
}

// RawRecord is one classified line. Fields[0] is the tag itself so that
// field indices match their position on the line.
type RawRecord struct {
	File       FileType
	Kind       Kind
	Fields     []string
	LineNumber int
}

// Field returns the raw field at index i, or "" when absent
func (r *RawRecord) Field(i int) string {
	if i < 0 || i >= len(r.Fields) {
		return ""
	}
	return r.Fields[i]
}

// Header holds the per-file metadata records
type Header struct {
	Username      string   `json:"username,omitempty"`
	FormatVersion string   `json:"format_version,omitempty"`
	AppVersion    string   `json:"app_version,omitempty"`
	DeviceID      []string `json:"device_id,omitempty"`
}

// Session describes one archive's worth of paired data
type Session struct {
	Stamp      string    `json:"stamp"`
	CapturedAt time.Time `json:"captured_at"`
	GPS        Header    `json:"gps_header"`
	Acc        Header    `json:"acc_header"`
}

// GpsAnchor is a decoded GPS "H" record. Local is the local wall-clock
// reading expressed in time.UTC so that both streams share one clock basis.
type GpsAnchor struct {
	UTCEpoch   int64
	LocalEpoch int64
	UTC        time.Time
	Local      time.Time
	Latitude   float64
	Longitude  float64
	ElevationM float64
	UTCText    string
	LocalText  string
	Line       int
}

// Offset is local_epoch - utc_epoch
func (a GpsAnchor) Offset() time.Duration {
	return a.Local.Sub(a.UTC)
}

// GpsDelta is a decoded GPS "D" record
type GpsDelta struct {
	DeltaMs          int64
	Field2           string
	Field3           string
	DeltaElevationMm float64
	SpeedMps         float64
	Heading          string
	Line             int
}

// AccAnchor is a decoded accelerometer "H" record
type AccAnchor struct {
	MonotonicMs int64
	LocalEpoch  int64
	Local       time.Time
	LocalText   string
	Line        int
}

// AccDelta is a decoded accelerometer "D" record
type AccDelta struct {
	DeltaMs int64
	X       string
	Y       string
	Z       string
	Line    int
}

// Confidence marks how far the interpretation of a field can be trusted
type Confidence string

const (
	Confirmed Confidence = "confirmed"
	Probable  Confidence = "probable"
	Unknown   Confidence = "unknown"
)

// Value is a field resolved through the field interpreter
type Value struct {
	Raw        string     `json:"raw"`
	Value      float64    `json:"value"`
	Numeric    bool       `json:"numeric"`
	Meaning    string     `json:"meaning,omitempty"`
	Unit       string     `json:"unit,omitempty"`
	Confidence Confidence `json:"confidence"`
}

// TrackPoint is one absolute GPS fix
type TrackPoint struct {
	UTC        time.Time `json:"utc"`
	Local      time.Time `json:"local"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ElevationM float64   `json:"elevation_m"`
	SpeedMps   float64   `json:"speed_mps"`
	Heading    Value     `json:"heading"`
	Field2     Value     `json:"field_2"`
	Field3     Value     `json:"field_3"`
	DeltaMs    int64     `json:"delta_ms"`
	FromAnchor bool      `json:"from_anchor"`
	Line       int       `json:"line"`
}

// Sample is one absolute accelerometer reading
type Sample struct {
	Local     time.Time `json:"local"`
	X         Value     `json:"x"`
	Y         Value     `json:"y"`
	Z         Value     `json:"z"`
	ElapsedMs int64     `json:"elapsed_ms"`
	Line      int       `json:"line"`
}

// StreamStatus reports how decoding of one member went
type StreamStatus struct {
	Present      bool   `json:"present"`
	Failed       bool   `json:"failed"`
	Error        string `json:"error,omitempty"`
	Records      int    `json:"records"`
	SkippedLines []int  `json:"skipped_lines,omitempty"`

	Err     error                `json:"-"`
	Skipped []*RecordFormatError `json:"-"`
}

// Track is the canonical output handed to exporters
type Track struct {
	Session  Session              `json:"session"`
	Points   []TrackPoint         `json:"points"`
	Samples  []Sample             `json:"samples"`
	Warnings []ConsistencyWarning `json:"warnings"`
	GPS      StreamStatus         `json:"gps"`
	Acc      StreamStatus         `json:"acc"`
}

// SamplesBetween returns the samples whose local instant lies in [from, to]
func (t *Track) SamplesBetween(from, to time.Time) []Sample {
	var out []Sample
	for _, s := range t.Samples {
		if s.Local.Before(from) || s.Local.After(to) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Summary condenses a track for transport and persistence
type Summary struct {
	SessionID   string    `json:"session_id"`
	Digest      string    `json:"digest"`
	Stamp       string    `json:"stamp"`
	Points      int       `json:"points"`
	Samples     int       `json:"samples"`
	Warnings    int       `json:"warnings"`
	MaxSpeedMps float64   `json:"max_speed_mps"`
	DistanceM   float64   `json:"distance_m"`
	StartUTC    time.Time `json:"start_utc"`
	EndUTC      time.Time `json:"end_utc"`
	GPSError    string    `json:"gps_error,omitempty"`
	AccError    string    `json:"acc_error,omitempty"`
}

// Summarize computes the summary of a decoded track
func (t *Track) Summarize() Summary {
	s := Summary{
		Stamp:    t.Session.Stamp,
		Points:   len(t.Points),
		Samples:  len(t.Samples),
		Warnings: len(t.Warnings),
		GPSError: t.GPS.Error,
		AccError: t.Acc.Error,
	}
	for i, p := range t.Points {
		if p.SpeedMps > s.MaxSpeedMps {
			s.MaxSpeedMps = p.SpeedMps
		}
		if s.StartUTC.IsZero() || p.UTC.Before(s.StartUTC) {
			s.StartUTC = p.UTC
		}
		if p.UTC.After(s.EndUTC) {
			s.EndUTC = p.UTC
		}
		if i > 0 {
			s.DistanceM += haversineM(t.Points[i-1], p)
		}
	}
	return s
}

// haversineM calculates the great-circle distance between two points in meters
func haversineM(p1, p2 TrackPoint) float64 {
	const earthRadius = 6371000.0

	lat1Rad := p1.Latitude * math.Pi / 180
	lat2Rad := p2.Latitude * math.Pi / 180
	deltaLat := (p2.Latitude - p1.Latitude) * math.Pi / 180
	deltaLon := (p2.Longitude - p1.Longitude) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// ArchiveMessage carries a submitted archive over the transport
type ArchiveMessage struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Data        []byte    `json:"data"`
	SubmittedAt time.Time `json:"submitted_at"`
}
