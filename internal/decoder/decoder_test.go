package decoder

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/saviobatista/trackrescue/internal/stats"
	"github.com/saviobatista/trackrescue/internal/testutils"
	"github.com/saviobatista/trackrescue/internal/types"
)

func gpsLines(extra ...string) []string {
	lines := append(testutils.HeaderLines(),
		testutils.GpsAnchorLine(testutils.UTCEpoch, 46.5, 7, 1200, testutils.LocalEpoch),
		testutils.GpsDeltaLine(500, "?", "?", -150, 3.2, "180"),
	)
	return append(lines, extra...)
}

func accLines(extra ...string) []string {
	lines := append(testutils.AccHeaderLines(),
		testutils.AccAnchorLine(5000, testutils.LocalEpoch),
		testutils.AccDeltaLine(20, "0.1", "9.8", "-0.2"),
	)
	return append(lines, extra...)
}

func TestDecode(t *testing.T) {
	s := stats.New()
	opts := DefaultOptions()
	opts.Stats = s

	track, err := Decode(testutils.SessionArchive(gpsLines(), accLines()), opts)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(track.Points) != 2 || len(track.Samples) != 1 {
		t.Errorf("Decode() = %d points, %d samples; want 2, 1", len(track.Points), len(track.Samples))
	}
	if len(track.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", track.Warnings)
	}
	if track.Session.Stamp != testutils.Stamp || track.Session.GPS.Username != "runner42" || track.Session.Acc.FormatVersion != "3" {
		t.Errorf("Session = %+v", track.Session)
	}
	if !track.GPS.Present || track.GPS.Failed || track.GPS.Records != 6 {
		t.Errorf("GPS status = %+v", track.GPS)
	}
	if !track.Acc.Present || track.Acc.Failed || track.Acc.Records != 5 {
		t.Errorf("Acc status = %+v", track.Acc)
	}

	got := s.GetStats()
	if got["archives_decoded"] != uint64(1) || got["points_emitted"] != uint64(2) || got["samples_emitted"] != uint64(1) {
		t.Errorf("stats = %v", got)
	}
	if got["records_parsed"] != uint64(11) {
		t.Errorf("records_parsed = %v, want 11", got["records_parsed"])
	}
}

func TestDecode_StreamFailureIsIsolated(t *testing.T) {
	gps := []string{"U,runner", testutils.GpsDeltaLine(500, "?", "?", 0, 0, "0")}

	s := stats.New()
	opts := DefaultOptions()
	opts.Stats = s
	track, err := Decode(testutils.SessionArchive(gps, accLines()), opts)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if !track.GPS.Failed || types.CodeOf(track.GPS.Err) != types.CodeDeltaBeforeAnchor || track.GPS.Error == "" {
		t.Errorf("GPS status = %+v, want failed with delta_before_anchor", track.GPS)
	}
	if track.Points == nil || len(track.Points) != 0 {
		t.Errorf("Points = %v, want empty non-nil", track.Points)
	}
	if track.Acc.Failed || len(track.Samples) != 1 {
		t.Errorf("Acc = %+v with %d samples, want decoded", track.Acc, len(track.Samples))
	}
	if got := s.GetStats()["streams_failed"]; got != uint64(1) {
		t.Errorf("streams_failed = %v, want 1", got)
	}
}

func TestDecode_MissingAcc(t *testing.T) {
	track, err := Decode(testutils.SessionArchive(gpsLines(), nil), DefaultOptions())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(track.Points) != 2 || track.Samples == nil || len(track.Samples) != 0 {
		t.Errorf("Decode() = %d points, samples %v", len(track.Points), track.Samples)
	}
	if track.Acc.Present {
		t.Error("Acc.Present = true for a missing member")
	}
	if len(track.Warnings) != 1 || track.Warnings[0].Code != types.WarnMissingMember {
		t.Errorf("Warnings = %v, want one missing_member note", track.Warnings)
	}

	opts := DefaultOptions()
	opts.RequireBoth = true
	if _, err := Decode(testutils.SessionArchive(gpsLines(), nil), opts); !types.IsFatal(err) {
		t.Errorf("Decode(RequireBoth) error = %v, want container error", err)
	}
}

func TestDecode_ContainerErrorCountsFailure(t *testing.T) {
	s := stats.New()
	opts := DefaultOptions()
	opts.Stats = s

	if _, err := Decode([]byte("nope"), opts); types.CodeOf(err) != types.CodeUnreadable {
		t.Errorf("Decode() error = %v, want unreadable_archive", err)
	}
	if got := s.GetStats()["archives_failed"]; got != uint64(1) {
		t.Errorf("archives_failed = %v, want 1", got)
	}
}

func TestDecode_WarningOrder(t *testing.T) {
	archive := testutils.NewArchive().
		Add("notes.txt", "hello").
		Add(testutils.GPSName(testutils.Stamp), gpsLines("D,90000,?,?,0,0,0")...).
		Add(testutils.AccName(testutils.Stamp), accLines(testutils.AccDeltaLine(-1, "0", "0", "0"))...).
		MustBuild()

	// run a few times; the streams decode concurrently but the order is fixed
	for i := 0; i < 5; i++ {
		track, err := Decode(archive, DefaultOptions())
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		var streams []string
		for _, w := range track.Warnings {
			streams = append(streams, w.Stream)
		}
		want := []string{"container", "gps", "acc"}
		if len(streams) != len(want) {
			t.Fatalf("warning streams = %v, want %v", streams, want)
		}
		for j := range want {
			if streams[j] != want[j] {
				t.Errorf("warning streams = %v, want %v", streams, want)
				break
			}
		}
	}
}

func TestDecode_Deterministic(t *testing.T) {
	archive := testutils.SessionArchive(gpsLines("D,1000,?,?,10,3.3,181"), accLines(testutils.AccDeltaLine(20, "0.2", "9.7", "-0.1")))

	var first []byte
	for i := 0; i < 3; i++ {
		track, err := Decode(archive, DefaultOptions())
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		out, err := json.Marshal(track)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		if first == nil {
			first = out
			continue
		}
		if !bytes.Equal(first, out) {
			t.Fatalf("decode %d differs from the first", i)
		}
	}
}

func TestDecode_StrictSkippedLines(t *testing.T) {
	archive := testutils.SessionArchive(gpsLines("D,bad,?,?,0,0,0", "D,900,?,?,0,0,0"), accLines())

	track, err := Decode(archive, DefaultOptions())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(track.GPS.SkippedLines) != 1 || track.GPS.SkippedLines[0] != 7 || len(track.Points) != 3 {
		t.Errorf("lenient: skipped %v with %d points", track.GPS.SkippedLines, len(track.Points))
	}

	opts := DefaultOptions()
	opts.Strict = true
	track, err = Decode(archive, opts)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !track.GPS.Failed || len(track.Points) != 0 || len(track.Samples) != 1 {
		t.Errorf("strict: GPS = %+v, %d points, %d samples", track.GPS, len(track.Points), len(track.Samples))
	}
}
