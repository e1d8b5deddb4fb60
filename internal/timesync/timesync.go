package timesync

import (
	"time"

	"github.com/saviobatista/trackrescue/internal/types"
)

// Tolerance bounds how far the redundant time representations may disagree
type Tolerance struct {
	// Epoch applies to local_epoch - utc_epoch across anchors
	Epoch time.Duration
	// Text applies to datetime strings against their epoch field, and to the
	// accelerometer counter against the wall clock
	Text time.Duration
}

// DefaultTolerance is exact for epochs and one second for datetime strings
func DefaultTolerance() Tolerance {
	return Tolerance{Epoch: 0, Text: time.Second}
}

// Synchronizer tracks the UTC/local offset of one file and checks every
// anchor against it. It never rejects an anchor; disagreements are returned
// as warnings.
type Synchronizer struct {
	file       types.FileType
	tol        Tolerance
	offset     time.Duration
	haveOffset bool
	lastGps    *types.GpsAnchor
	lastAcc    *types.AccAnchor
}

// New creates a synchronizer for one stream
func New(file types.FileType, tol Tolerance) *Synchronizer {
	return &Synchronizer{file: file, tol: tol}
}

// Offset returns the session offset fixed by the first GPS anchor
func (s *Synchronizer) Offset() (time.Duration, bool) {
	return s.offset, s.haveOffset
}

// ObserveGpsAnchor validates the three time representations of a GPS anchor
// and checks that anchors move forward in time
func (s *Synchronizer) ObserveGpsAnchor(a types.GpsAnchor) []types.ConsistencyWarning {
	var warnings []types.ConsistencyWarning

	if t, _, err := ParseDateTime(a.UTCText); err == nil {
		if diff := absDuration(t.Sub(a.UTC)); diff > s.tol.Text {
			warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnUTCTextMismatch,
				"utc datetime %q is %s away from utc epoch %d", a.UTCText, diff, a.UTCEpoch))
		}
	}

	anchorOffset := a.Offset()
	if t, hasZone, err := ParseDateTime(a.LocalText); err == nil {
		if diff := absDuration(WallClock(t).Sub(a.Local)); diff > s.tol.Text {
			warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnLocalTextMismatch,
				"local datetime %q is %s away from local epoch %d", a.LocalText, diff, a.LocalEpoch))
		}
		if hasZone {
			_, zoneOffset := t.Zone()
			if diff := absDuration(time.Duration(zoneOffset)*time.Second - anchorOffset); diff > s.tol.Text {
				warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnLocalZoneMismatch,
					"local datetime zone %ds disagrees with epoch offset %s", zoneOffset, anchorOffset))
			}
		}
	}

	if prev := s.lastGps; prev != nil && a.UTC.Before(prev.UTC) {
		warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnTimeRegression,
			"utc time went back from %s (line %d) to %s", prev.UTC.Format(time.RFC3339Nano), prev.Line, a.UTC.Format(time.RFC3339Nano)))
	}
	anchor := a
	s.lastGps = &anchor

	if !s.haveOffset {
		s.offset = anchorOffset
		s.haveOffset = true
		return warnings
	}
	if diff := absDuration(anchorOffset - s.offset); diff > s.tol.Epoch {
		warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnOffsetMismatch,
			"local-utc offset %s differs from session offset %s", anchorOffset, s.offset))
	}
	return warnings
}

// ObserveAccAnchor validates an accelerometer anchor against its datetime
// string and against the previous anchor's counter
func (s *Synchronizer) ObserveAccAnchor(a types.AccAnchor) []types.ConsistencyWarning {
	var warnings []types.ConsistencyWarning

	if t, _, err := ParseDateTime(a.LocalText); err == nil {
		if diff := absDuration(WallClock(t).Sub(a.Local)); diff > s.tol.Text {
			warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnLocalTextMismatch,
				"local datetime %q is %s away from local epoch %d", a.LocalText, diff, a.LocalEpoch))
		}
	}

	if prev := s.lastAcc; prev != nil {
		counterAdvance := time.Duration(a.MonotonicMs-prev.MonotonicMs) * time.Millisecond
		wallAdvance := a.Local.Sub(prev.Local)
		switch {
		case counterAdvance < 0:
			warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnCounterRegression,
				"counter went from %d to %d", prev.MonotonicMs, a.MonotonicMs))
		case absDuration(counterAdvance-wallAdvance) > s.tol.Text:
			warnings = append(warnings, types.NewWarning(s.file, a.Line, types.WarnCounterDrift,
				"counter advanced %s while the wall clock advanced %s", counterAdvance, wallAdvance))
		}
	}
	anchor := a
	s.lastAcc = &anchor

	return warnings
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
