package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"
)

func TestKind(t *testing.T) {
	for _, k := range []Kind{KindUser, KindVersion, KindAppVersion, KindDevice} {
		if !k.IsHeader() {
			t.Errorf("Expected %s to be a header kind", k)
		}
	}
	for _, k := range []Kind{KindAnchor, KindDelta, Kind('X')} {
		if k.IsHeader() {
			t.Errorf("Expected %s not to be a header kind", k)
		}
	}
	if KindAnchor.String() != "H" {
		t.Errorf("Expected H, got %s", KindAnchor)
	}
}

func TestFileTypeString(t *testing.T) {
	tests := map[FileType]string{FileGPS: "gps", FileAcc: "acc", FileContainer: "container"}
	for ft, want := range tests {
		if ft.String() != want {
			t.Errorf("Expected %s, got %s", want, ft)
		}
	}
}

func TestErrors(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantFatal bool
		wantText  string
	}{
		{
			"container",
			&ContainerError{Code: CodeAmbiguousMember, Member: "b.gps", Err: cause},
			CodeAmbiguousMember, true, "container: ambiguous_member (b.gps): boom",
		},
		{
			"wrapped container",
			fmt.Errorf("decode: %w", &ContainerError{Code: CodeUnreadable, Err: cause}),
			CodeUnreadable, true, "decode: container: unreadable_archive: boom",
		},
		{
			"format with field",
			&RecordFormatError{File: FileGPS, Line: 3, Code: CodeBadNumber, Field: 5, Err: cause},
			CodeBadNumber, false, "gps line 3 field 5: bad_number: boom",
		},
		{
			"format without field",
			&RecordFormatError{File: FileAcc, Line: 9, Code: CodeUnknownTag, Err: cause},
			CodeUnknownTag, false, "acc line 9: unknown_tag: boom",
		},
		{
			"sequencing",
			&SequencingError{File: FileGPS, Line: 2, Code: CodeDeltaBeforeAnchor},
			CodeDeltaBeforeAnchor, false, "gps line 2: delta_before_anchor",
		},
		{"plain", cause, "", false, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.wantCode {
				t.Errorf("CodeOf() = %q, want %q", got, tt.wantCode)
			}
			if got := IsFatal(tt.err); got != tt.wantFatal {
				t.Errorf("IsFatal() = %v, want %v", got, tt.wantFatal)
			}
			if !strings.HasPrefix(tt.err.Error(), tt.wantText) {
				t.Errorf("Error() = %q, want prefix %q", tt.err.Error(), tt.wantText)
			}
		})
	}

	if !errors.Is(&RecordFormatError{Err: cause}, cause) {
		t.Error("RecordFormatError should unwrap to its cause")
	}
}

func TestWarningString(t *testing.T) {
	w := NewWarning(FileGPS, 12, WarnOffsetMismatch, "offset %s", time.Hour)
	if w.Stream != "gps" || w.Message != "offset 1h0m0s" {
		t.Errorf("NewWarning() = %+v", w)
	}
	if got := w.String(); got != "gps line 12: offset_mismatch: offset 1h0m0s" {
		t.Errorf("String() = %q", got)
	}

	note := NewWarning(FileContainer, 0, WarnMissingMember, "missing a .acc file in archive")
	if got := note.String(); got != "container: missing_member: missing a .acc file in archive" {
		t.Errorf("String() = %q", got)
	}
}

func TestRawRecordField(t *testing.T) {
	r := &RawRecord{Fields: []string{"U", "runner"}}
	if r.Field(1) != "runner" || r.Field(2) != "" || r.Field(-1) != "" {
		t.Errorf("Field() returned unexpected values")
	}
}

func TestSamplesBetween(t *testing.T) {
	base := time.Date(2023, 11, 14, 23, 13, 20, 0, time.UTC)
	track := &Track{}
	for i := 0; i < 5; i++ {
		track.Samples = append(track.Samples, Sample{Local: base.Add(time.Duration(i) * time.Second), Line: i + 1})
	}

	got := track.SamplesBetween(base.Add(time.Second), base.Add(3*time.Second))
	if len(got) != 3 || got[0].Line != 2 || got[2].Line != 4 {
		t.Errorf("SamplesBetween() = %+v, want lines 2-4 inclusive", got)
	}
	if got := track.SamplesBetween(base.Add(time.Hour), base.Add(2*time.Hour)); len(got) != 0 {
		t.Errorf("SamplesBetween() = %d samples, want none", len(got))
	}
}

func TestSummarize(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	track := &Track{
		Session: Session{Stamp: "2023-11-14-23-13-20"},
		Points: []TrackPoint{
			{UTC: start, Latitude: 0, Longitude: 0, SpeedMps: 1},
			{UTC: start.Add(time.Second), Latitude: 0, Longitude: 1, SpeedMps: 4.5},
			{UTC: start.Add(2 * time.Second), Latitude: 0, Longitude: 1, SpeedMps: 2},
		},
		Samples:  make([]Sample, 4),
		Warnings: make([]ConsistencyWarning, 1),
		Acc:      StreamStatus{Failed: true, Error: "acc line 2: delta_before_anchor"},
	}

	s := track.Summarize()
	if s.Points != 3 || s.Samples != 4 || s.Warnings != 1 || s.Stamp != track.Session.Stamp {
		t.Errorf("Summarize() = %+v", s)
	}
	if s.MaxSpeedMps != 4.5 {
		t.Errorf("Expected max speed 4.5, got %v", s.MaxSpeedMps)
	}
	if !s.StartUTC.Equal(start) || !s.EndUTC.Equal(start.Add(2*time.Second)) {
		t.Errorf("Expected %v to %v, got %v to %v", start, start.Add(2*time.Second), s.StartUTC, s.EndUTC)
	}
	// one degree of longitude at the equator
	if math.Abs(s.DistanceM-111195) > 1 {
		t.Errorf("Expected distance ~111195m, got %v", s.DistanceM)
	}
	if s.AccError == "" || s.GPSError != "" {
		t.Errorf("Expected only the acc error, got %q / %q", s.GPSError, s.AccError)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := (&Track{}).Summarize()
	if s.Points != 0 || !s.StartUTC.IsZero() || s.DistanceM != 0 {
		t.Errorf("Summarize() = %+v", s)
	}
}
