package gps

import (
	"io"
	"time"

	"github.com/saviobatista/trackrescue/internal/interp"
	"github.com/saviobatista/trackrescue/internal/parser"
	"github.com/saviobatista/trackrescue/internal/timesync"
	"github.com/saviobatista/trackrescue/internal/types"
)

// DefaultAnchorInterval is the nominal spacing of "H" records
const DefaultAnchorInterval = 60 * time.Second

// State of the reconstructor
type State int

const (
	AwaitingHeaders State = iota
	AwaitingAnchor
	HaveAnchor
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingHeaders:
		return "awaiting_headers"
	case AwaitingAnchor:
		return "awaiting_anchor"
	case HaveAnchor:
		return "have_anchor"
	default:
		return "done"
	}
}

// Options configures a reconstructor
type Options struct {
	Policy         *interp.Policy
	Tolerance      timesync.Tolerance
	AnchorInterval time.Duration
	Strict         bool
}

// Result is the outcome of reconstructing one GPS stream
type Result struct {
	Header     types.Header
	Points     []types.TrackPoint
	Warnings   []types.ConsistencyWarning
	KindCounts map[types.Kind]int
	Records    int
	Skipped    []*types.RecordFormatError
	Err        error
}

// Reconstructor turns GPS records into absolute track points. It holds the
// most recent anchor; every delta is resolved against it.
type Reconstructor struct {
	opts   Options
	state  State
	sync   *timesync.Synchronizer
	anchor types.GpsAnchor
	// staleLine is the line of a skipped anchor that superseded anchor
	staleLine int
	header    types.Header
	points    []types.TrackPoint
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
		sync:   timesync.New(types.FileGPS, opts.Tolerance),
		counts: make(map[types.Kind]int),
	}
}

// State returns the current state
func (r *Reconstructor) State() State {
	return r.state
}

// Feed applies one classified record
func (r *Reconstructor) Feed(rec *types.RawRecord) error {
	switch {
	case rec.Kind.IsHeader():
		r.feedHeader(rec)
	case rec.Kind == types.KindAnchor:
		if err := r.feedAnchor(rec); err != nil {
			return err
		}
	case rec.Kind == types.KindDelta:
		if err := r.feedDelta(rec); err != nil {
			return err
		}
	}
	r.counts[rec.Kind]++
	return nil
}

func (r *Reconstructor) feedHeader(rec *types.RawRecord) {
	if r.state == HaveAnchor {
		r.warn(rec.LineNumber, types.WarnLateHeader, "%s header after the first anchor", rec.Kind)
	}
	if !parser.ApplyHeader(&r.header, rec) {
		r.warn(rec.LineNumber, types.WarnDuplicateHeader, "repeated %s header ignored", rec.Kind)
	}
	if r.state == AwaitingHeaders {
		r.state = AwaitingAnchor
	}
}

func (r *Reconstructor) feedAnchor(rec *types.RawRecord) error {
	anchor, err := parser.DecodeGpsAnchor(rec)
	if err != nil {
		return err
	}
	r.warnings = append(r.warnings, r.sync.ObserveGpsAnchor(anchor)...)
	r.anchor = anchor
	r.staleLine = 0
	r.state = HaveAnchor

	// the anchor itself is kept as a zero-delta point
	r.points = append(r.points, types.TrackPoint{
		UTC:        anchor.UTC,
		Local:      anchor.Local,
		Latitude:   anchor.Latitude,
		Longitude:  anchor.Longitude,
		ElevationM: anchor.ElevationM,
		Heading:    types.Value{Confidence: types.Unknown},
		Field2:     types.Value{Confidence: types.Unknown},
		Field3:     types.Value{Confidence: types.Unknown},
		FromAnchor: true,
		Line:       anchor.Line,
	})
	return nil
}

func (r *Reconstructor) feedDelta(rec *types.RawRecord) error {
	if r.staleLine > 0 {
		r.warn(rec.LineNumber, types.WarnStaleAnchor, "delta dropped: its anchor at line %d was malformed", r.staleLine)
		return nil
	}
	if r.state != HaveAnchor {
		return &types.SequencingError{File: types.FileGPS, Line: rec.LineNumber, Code: types.CodeDeltaBeforeAnchor}
	}
	delta, err := parser.DecodeGpsDelta(rec)
	if err != nil {
		return err
	}

	offset := time.Duration(delta.DeltaMs) * time.Millisecond
	if offset < 0 || offset >= r.opts.AnchorInterval {
		r.warn(delta.Line, types.WarnDeltaOutOfRange, "delta %dms outside [0, %s) of anchor at line %d",
			delta.DeltaMs, r.opts.AnchorInterval, r.anchor.Line)
	}

	point := types.TrackPoint{
		UTC:        r.anchor.UTC.Add(offset),
		Local:      r.anchor.Local.Add(offset),
		Latitude:   r.anchor.Latitude,
		Longitude:  r.anchor.Longitude,
		ElevationM: r.anchor.ElevationM + delta.DeltaElevationMm/1000,
		SpeedMps:   delta.SpeedMps,
		Field2:     r.resolve(2, delta.Field2),
		Field3:     r.resolve(3, delta.Field3),
		Heading:    r.resolve(6, delta.Heading),
		DeltaMs:    delta.DeltaMs,
		Line:       delta.Line,
	}
	r.applyRole(&point, 2, point.Field2)
	r.applyRole(&point, 3, point.Field3)
	r.applyRole(&point, 6, point.Heading)

	r.points = append(r.points, point)
	return nil
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
		Points:     r.points,
		Warnings:   r.warnings,
		KindCounts: r.counts,
	}
}

// applyRole applies a position offset when the policy gives the field that role
func (r *Reconstructor) applyRole(p *types.TrackPoint, field int, v types.Value) {
	if !v.Numeric || v.Confidence == types.Unknown {
		return
	}
	rule, _ := r.opts.Policy.Lookup(key(field))
	switch rule.Role {
	case interp.RoleLatitudeOffset:
		p.Latitude += v.Value
	case interp.RoleLongitudeOffset:
		p.Longitude += v.Value
	}
}

func (r *Reconstructor) resolve(field int, raw string) types.Value {
	return r.opts.Policy.Resolve(key(field), raw)
}

func (r *Reconstructor) warn(line int, code, format string, args ...interface{}) {
	r.warnings = append(r.warnings, types.NewWarning(types.FileGPS, line, code, format, args...))
}

func key(field int) interp.Key {
	return interp.Key{File: types.FileGPS, Kind: types.KindDelta, Field: field}
}

// Decode reconstructs a whole GPS member. A format error in strict mode or a
// sequencing error aborts the stream: the result then carries the error and
// no points.
func Decode(rd io.Reader, opts Options) Result {
	r := NewReconstructor(opts)
	outcome, err := parser.EachWithSkip(rd, types.FileGPS, opts.Strict, r.Feed, r.Skip)

	res := r.Finish()
	res.Records = outcome.Records
	res.Skipped = outcome.Skipped
	if err != nil {
		res.Err = err
		res.Points = nil
	}
	return res
}
