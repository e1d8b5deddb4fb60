package acc

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/saviobatista/trackrescue/internal/interp"
	"github.com/saviobatista/trackrescue/internal/parser"
	"github.com/saviobatista/trackrescue/internal/testutils"
	"github.com/saviobatista/trackrescue/internal/types"
)

func decode(opts Options, lines ...string) Result {
	return Decode(strings.NewReader(testutils.Lines(lines...)), opts)
}

func TestDecode_CumulativeElapsed(t *testing.T) {
	lines := append(testutils.AccHeaderLines(),
		testutils.AccAnchorLine(5000, testutils.LocalEpoch),
		testutils.AccDeltaLine(20, "0.1", "9.8", "-0.2"),
		testutils.AccDeltaLine(30, "0.2", "9.7", "-0.1"),
		testutils.AccAnchorLine(65000, testutils.LocalEpoch+60),
		testutils.AccDeltaLine(10, "0", "9.81", "0"),
	)
	res := decode(Options{}, lines...)

	if res.Err != nil {
		t.Fatalf("Decode() error = %v", res.Err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	if len(res.Samples) != 3 {
		t.Fatalf("Decode() produced %d samples, want 3", len(res.Samples))
	}

	base := time.Unix(testutils.LocalEpoch, 0)
	tests := []struct {
		elapsed int64
		local   time.Time
	}{
		{20, base.Add(20 * time.Millisecond)},
		{50, base.Add(50 * time.Millisecond)},
		{10, base.Add(60*time.Second + 10*time.Millisecond)},
	}
	for i, tt := range tests {
		s := res.Samples[i]
		if s.ElapsedMs != tt.elapsed || !s.Local.Equal(tt.local) {
			t.Errorf("sample %d = elapsed %d at %v, want %d at %v", i, s.ElapsedMs, s.Local, tt.elapsed, tt.local)
		}
	}
	if res.Header.Username != "runner42" || len(res.Header.DeviceID) != 2 {
		t.Errorf("Header = %+v", res.Header)
	}
}

func TestDecode_AxesPassThrough(t *testing.T) {
	res := decode(Options{}, testutils.AccAnchorLine(0, testutils.LocalEpoch), testutils.AccDeltaLine(20, "0.1", "9.8", "x"))
	if len(res.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(res.Samples))
	}
	s := res.Samples[0]
	if s.X.Raw != "0.1" || s.X.Value != 0.1 || s.X.Confidence != types.Unknown {
		t.Errorf("X = %+v", s.X)
	}
	if s.Y.Value != 9.8 || s.Y.Meaning != "accel_y_vertical" {
		t.Errorf("Y = %+v", s.Y)
	}
	if s.Z.Raw != "x" || s.Z.Numeric {
		t.Errorf("Z = %+v, want raw text kept", s.Z)
	}
}

func TestDecode_SwappedAxesPolicy(t *testing.T) {
	p := interp.Default()
	p.Register(interp.Key{File: types.FileAcc, Kind: types.KindDelta, Field: 2},
		interp.Rule{Meaning: "accel_y_vertical", Role: interp.RoleAxisY, Confidence: types.Probable, Interpret: interp.Passthrough})
	p.Register(interp.Key{File: types.FileAcc, Kind: types.KindDelta, Field: 3},
		interp.Rule{Meaning: "accel_x", Role: interp.RoleAxisX, Confidence: types.Probable, Interpret: interp.Passthrough})

	res := decode(Options{Policy: p}, testutils.AccAnchorLine(0, testutils.LocalEpoch), testutils.AccDeltaLine(20, "1", "2", "3"))
	s := res.Samples[0]
	if s.X.Value != 2 || s.Y.Value != 1 || s.Z.Value != 3 {
		t.Errorf("axes = %v,%v,%v; want 2,1,3", s.X.Value, s.Y.Value, s.Z.Value)
	}
}

func TestDecode_Warnings(t *testing.T) {
	res := decode(Options{AnchorInterval: 100 * time.Millisecond},
		testutils.AccAnchorLine(0, testutils.LocalEpoch),
		testutils.AccDeltaLine(60, "0", "0", "0"),
		testutils.AccDeltaLine(60, "0", "0", "0"),
		testutils.AccDeltaLine(-200, "0", "0", "0"),
	)
	if len(res.Samples) != 3 {
		t.Fatalf("samples = %d, want 3", len(res.Samples))
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want 2", res.Warnings)
	}
	for i, line := range []int{3, 4} {
		if w := res.Warnings[i]; w.Code != types.WarnDeltaOutOfRange || w.Line != line || w.Stream != "acc" {
			t.Errorf("warning %d = %+v", i, w)
		}
	}
}

func TestDecode_CounterRegression(t *testing.T) {
	res := decode(Options{},
		testutils.AccAnchorLine(65000, testutils.LocalEpoch),
		testutils.AccAnchorLine(5000, testutils.LocalEpoch+60),
	)
	if len(res.Warnings) != 1 || res.Warnings[0].Code != types.WarnCounterRegression {
		t.Errorf("warnings = %v, want counter_regression", res.Warnings)
	}
	if len(res.Samples) != 0 || res.Records != 2 {
		t.Errorf("samples = %d, records = %d", len(res.Samples), res.Records)
	}
}

func TestDecode_DeltaBeforeAnchor(t *testing.T) {
	res := decode(Options{}, "U,runner", testutils.AccDeltaLine(20, "0", "0", "0"))
	var se *types.SequencingError
	if !errors.As(res.Err, &se) || se.File != types.FileAcc {
		t.Fatalf("Err = %v, want acc sequencing error", res.Err)
	}
	if res.Samples != nil {
		t.Errorf("Samples = %v, want none", res.Samples)
	}
}

func TestDecode_AppVersionIsNotAnAccRecord(t *testing.T) {
	res := decode(Options{}, "A,2.4.1", testutils.AccAnchorLine(0, testutils.LocalEpoch))
	if res.Err != nil || len(res.Skipped) != 1 || res.Skipped[0].Code != types.CodeUnknownTag {
		t.Errorf("err = %v, skipped = %v; want one unknown_tag", res.Err, res.Skipped)
	}
}

func TestReconstructor_Elapsed(t *testing.T) {
	r := NewReconstructor(Options{})
	if r.State() != AwaitingHeaders {
		t.Fatalf("initial state = %d", r.State())
	}

	for n, line := range []string{
		testutils.AccAnchorLine(0, testutils.LocalEpoch),
		testutils.AccDeltaLine(25, "0", "0", "0"),
		testutils.AccDeltaLine(25, "0", "0", "0"),
	} {
		rec, err := parser.ParseLine(line, types.FileAcc, n+1)
		if err != nil {
			t.Fatalf("ParseLine(%q) error = %v", line, err)
		}
		if err := r.Feed(rec); err != nil {
			t.Fatalf("Feed(%q) error = %v", line, err)
		}
	}
	if r.State() != HaveAnchor || r.Elapsed() != 50*time.Millisecond {
		t.Errorf("state = %d, elapsed = %v; want have anchor, 50ms", r.State(), r.Elapsed())
	}

	res := r.Finish()
	if r.State() != Done || res.KindCounts[types.KindAnchor] != 1 || res.KindCounts[types.KindDelta] != 2 {
		t.Errorf("state = %d, KindCounts = %v", r.State(), res.KindCounts)
	}
}

func TestDecode_PartialAxisRemap(t *testing.T) {
	p := interp.Default()
	p.Register(interp.Key{File: types.FileAcc, Kind: types.KindDelta, Field: 2},
		interp.Rule{Meaning: "accel_y_vertical", Role: interp.RoleAxisY, Confidence: types.Probable, Interpret: interp.Passthrough})
	p.Register(interp.Key{File: types.FileAcc, Kind: types.KindDelta, Field: 3},
		interp.Rule{Meaning: "unassigned", Confidence: types.Unknown})

	res := decode(Options{Policy: p}, testutils.AccAnchorLine(0, testutils.LocalEpoch), testutils.AccDeltaLine(10, "1.5", "2.5", "3.5"))
	if len(res.Samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(res.Samples))
	}
	s := res.Samples[0]
	if s.Y.Raw != "1.5" || s.Y.Confidence != types.Probable {
		t.Errorf("Y = %+v, want field 2 by role", s.Y)
	}
	if s.X.Raw != "2.5" || s.X.Confidence != types.Unknown {
		t.Errorf("X = %+v, want field 3 in the free axis", s.X)
	}
	if s.Z.Raw != "3.5" {
		t.Errorf("Z = %+v, want field 4", s.Z)
	}
}

func TestDecode_AxesAlwaysTagged(t *testing.T) {
	// two fields claim the same axis; the loser still lands in a free axis
	p := interp.NewPolicy()
	for field := 2; field <= 4; field++ {
		p.Register(interp.Key{File: types.FileAcc, Kind: types.KindDelta, Field: field},
			interp.Rule{Role: interp.RoleAxisZ, Confidence: types.Unknown})
	}

	res := decode(Options{Policy: p}, testutils.AccAnchorLine(0, testutils.LocalEpoch), testutils.AccDeltaLine(10, "1", "2", "3"))
	s := res.Samples[0]
	if s.Z.Raw != "1" || s.X.Raw != "2" || s.Y.Raw != "3" {
		t.Errorf("axes = %q,%q,%q; want 2,3,1", s.X.Raw, s.Y.Raw, s.Z.Raw)
	}
	for _, v := range []types.Value{s.X, s.Y, s.Z} {
		if v.Confidence == "" {
			t.Errorf("value %+v has no confidence", v)
		}
	}
}

func TestDecode_SkippedAnchorDropsItsDeltas(t *testing.T) {
	res := decode(Options{},
		testutils.AccAnchorLine(0, testutils.LocalEpoch),
		testutils.AccDeltaLine(20, "0", "0", "0"),
		"H,abc,1700003660,2023-11-14T23:14:20.000",
		testutils.AccDeltaLine(20, "0", "0", "0"),
		testutils.AccAnchorLine(120000, testutils.LocalEpoch+120),
		testutils.AccDeltaLine(20, "0", "0", "0"),
	)
	if res.Err != nil {
		t.Fatalf("Decode() error = %v", res.Err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != types.WarnStaleAnchor || res.Warnings[0].Line != 4 {
		t.Fatalf("warnings = %v, want one stale_anchor at line 4", res.Warnings)
	}
	if len(res.Samples) != 2 {
		t.Fatalf("samples = %d, want 2", len(res.Samples))
	}
	want := time.Unix(testutils.LocalEpoch+120, 0).Add(20 * time.Millisecond)
	if last := res.Samples[1]; !last.Local.Equal(want) || last.ElapsedMs != 20 {
		t.Errorf("last sample = %v (%dms), want %v (20ms)", last.Local, last.ElapsedMs, want)
	}
}
