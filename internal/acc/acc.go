package acc

import (
	"io"
	"time"

	"github.com/saviobatista/trackrescue/internal/interp"
	"github.com/saviobatista/trackrescue/internal/parser"
	"github.com/saviobatista/trackrescue/internal/timesync"
	"github.com/saviobatista/trackrescue/internal/types"
)

// DefaultAnchorInterval is the nominal counter advance between "H" records
const DefaultAnchorInterval = 60 * time.Second

// State of the reconstructor
type State int

const (
	AwaitingHeaders State = iota
	AwaitingAnchor
	HaveAnchor
	Done
)

// Options configures a reconstructor
type Options struct {
	Policy         *interp.Policy
	Tolerance      timesync.Tolerance
	AnchorInterval time.Duration
	Strict         bool
}

// Result is the outcome of reconstructing one accelerometer stream
type Result struct {
	Header     types.Header
	Samples    []types.Sample
	Warnings   []types.ConsistencyWarning
	KindCounts map[types.Kind]int
	Records    int
	Skipped    []*types.RecordFormatError
	Err        error
}

// Reconstructor turns accelerometer records into absolute samples. Delta
// times accumulate from the most recent anchor.
type Reconstructor struct {
	opts    Options
	state   State
	sync    *timesync.Synchronizer
	anchor  types.AccAnchor
	elapsed time.Duration
	// staleLine is the line of a skipped anchor that superseded anchor
	staleLine int
	header    types.Header
	samples   []types.Sample
	warnings  []types.ConsistencyWarning
	counts    map[types.Kind]int
}

// NewReconstructor creates a reconstructor in the AwaitingHeaders state
func NewReconstructor(opts Options) *Reconstructor {
	if opts.Policy == nil {
		opts.Policy = interp.Default()
	}
	if opts.AnchorInterval <= 0 {
		opts.AnchorInterval = DefaultAnchorInterval
	}
	if opts.Tolerance == (timesync.Tolerance{}) {
		opts.Tolerance = timesync.DefaultTolerance()
	}
	return &Reconstructor{
		opts:   opts,
		state:  AwaitingHeaders,
		sync:   timesync.New(types.FileAcc, opts.Tolerance),
		counts: make(map[types.Kind]int),
	}
}

// State returns the current state
func (r *Reconstructor) State() State {
	return r.state
}

// Elapsed returns the time accumulated since the current anchor
func (r *Reconstructor) Elapsed() time.Duration {
	return r.elapsed
}

// Feed applies one classified record
func (r *Reconstructor) Feed(rec *types.RawRecord) error {
	switch {
	case rec.Kind.IsHeader():
		if r.state == HaveAnchor {
			r.warn(rec.LineNumber, types.WarnLateHeader, "%s header after the first anchor", rec.Kind)
		}
		if !parser.ApplyHeader(&r.header, rec) {
			r.warn(rec.LineNumber, types.WarnDuplicateHeader, "repeated %s header ignored", rec.Kind)
		}
		if r.state == AwaitingHeaders {
			r.state = AwaitingAnchor
		}

	case rec.Kind == types.KindAnchor:
		anchor, err := parser.DecodeAccAnchor(rec)
		if err != nil {
			return err
		}
		r.warnings = append(r.warnings, r.sync.ObserveAccAnchor(anchor)...)
		r.anchor = anchor
		r.elapsed = 0
		r.staleLine = 0
		r.state = HaveAnchor

	case rec.Kind == types.KindDelta:
		if r.staleLine > 0 {
			r.warn(rec.LineNumber, types.WarnStaleAnchor, "delta dropped: its anchor at line %d was malformed", r.staleLine)
			break
		}
		if r.state != HaveAnchor {
			return &types.SequencingError{File: types.FileAcc, Line: rec.LineNumber, Code: types.CodeDeltaBeforeAnchor}
		}
		delta, err := parser.DecodeAccDelta(rec)
		if err != nil {
			return err
		}
		r.feedDelta(delta)
	}
	r.counts[rec.Kind]++
	return nil
}

func (r *Reconstructor) feedDelta(delta types.AccDelta) {
	step := time.Duration(delta.DeltaMs) * time.Millisecond
	r.elapsed += step
	switch {
	case step < 0:
		r.warn(delta.Line, types.WarnDeltaOutOfRange, "negative delta %dms", delta.DeltaMs)
	case r.elapsed >= r.opts.AnchorInterval:
		r.warn(delta.Line, types.WarnDeltaOutOfRange, "%s elapsed since anchor at line %d exceeds %s",
			r.elapsed, r.anchor.Line, r.opts.AnchorInterval)
	}

	sample := types.Sample{
		Local:     r.anchor.Local.Add(r.elapsed),
		ElapsedMs: r.elapsed.Milliseconds(),
		Line:      delta.Line,
	}
	r.placeAxes(&sample, []string{delta.X, delta.Y, delta.Z})
	r.samples = append(r.samples, sample)
}

// placeAxes resolves fields 2, 3 and 4. Fields whose rule names an axis go
// there first; the rest fill the remaining axes in field order.
func (r *Reconstructor) placeAxes(sample *types.Sample, raws []string) {
	axes := []*types.Value{&sample.X, &sample.Y, &sample.Z}
	filled := make([]bool, len(axes))
	values := make([]types.Value, len(raws))
	placed := make([]bool, len(raws))

	for i, raw := range raws {
		field := i + 2
		values[i] = r.opts.Policy.Resolve(key(field), raw)
		rule, _ := r.opts.Policy.Lookup(key(field))
		axis := axisOf(rule.Role)
		if axis < 0 || filled[axis] {
			continue
		}
		*axes[axis] = values[i]
		filled[axis] = true
		placed[i] = true
	}

	next := 0
	for i := range raws {
		if placed[i] {
			continue
		}
		for next < len(axes) && filled[next] {
			next++
		}
		if next == len(axes) {
			break
		}
		*axes[next] = values[i]
		filled[next] = true
	}

	for i, ok := range filled {
		if !ok {
			*axes[i] = types.Value{Confidence: types.Unknown}
		}
	}
}

func axisOf(role interp.Role) int {
	switch role {
	case interp.RoleAxisX:
		return 0
	case interp.RoleAxisY:
		return 1
	case interp.RoleAxisZ:
		return 2
	}
	return -1
}

// Skip is told about every line skipped in lenient mode. Once an anchor is
// skipped, deltas are dropped with a warning until the next valid anchor.
func (r *Reconstructor) Skip(fe *types.RecordFormatError) {
	if fe.Kind == types.KindAnchor {
		r.staleLine = fe.Line
	}
}

// Finish moves to Done and returns what was reconstructed
func (r *Reconstructor) Finish() Result {
	r.state = Done
	return Result{
		Header:     r.header,
		Samples:    r.samples,
		Warnings:   r.warnings,
		KindCounts: r.counts,
	}
}

func (r *Reconstructor) warn(line int, code, format string, args ...interface{}) {
	r.warnings = append(r.warnings, types.NewWarning(types.FileAcc, line, code, format, args...))
}

func key(field int) interp.Key {
	return interp.Key{File: types.FileAcc, Kind: types.KindDelta, Field: field}
}

// Decode reconstructs a whole accelerometer member
func Decode(rd io.Reader, opts Options) Result {
	r := NewReconstructor(opts)
	outcome, err := parser.EachWithSkip(rd, types.FileAcc, opts.Strict, r.Feed, r.Skip)

	res := r.Finish()
	res.Records = outcome.Records
	res.Skipped = outcome.Skipped
	if err != nil {
		res.Err = err
		res.Samples = nil
	}
	return res
}
