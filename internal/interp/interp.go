// Package interp resolves record fields whose meaning has not been
// established. Every resolved value carries a confidence tag, and fields
// tagged Unknown are always passed through untransformed.
package interp

import (
	"math"
	"strconv"
	"strings"

	"github.com/saviobatista/trackrescue/internal/types"
)

// Role tells a reconstructor what it may do with a resolved value
type Role int

const (
	RoleNone Role = iota
	RoleLatitudeOffset
	RoleLongitudeOffset
	RoleHeading
	RoleAxisX
	RoleAxisY
	RoleAxisZ
)

// Key addresses one field position of one record kind. Field 0 is the tag.
type Key struct {
	File  types.FileType
	Kind  types.Kind
	Field int
}

// Func converts a raw field into a value
type Func func(raw string) (float64, bool)

// Rule is the interpretation of one field
type Rule struct {
	Meaning    string
	Unit       string
	Role       Role
	Confidence types.Confidence
	Interpret  Func
}

// Policy is a replaceable mapping from field keys to rules
type Policy struct {
	rules map[Key]Rule
}

// NewPolicy creates an empty policy; every field resolves as Unknown
func NewPolicy() *Policy {
	return &Policy{rules: make(map[Key]Rule)}
}

// Register sets the rule for a key, replacing any previous one
func (p *Policy) Register(k Key, r Rule) {
	p.rules[k] = r
}

// Lookup returns the rule registered for a key
func (p *Policy) Lookup(k Key) (Rule, bool) {
	r, ok := p.rules[k]
	return r, ok
}

// Clone returns an independent copy that can be amended
func (p *Policy) Clone() *Policy {
	c := NewPolicy()
	for k, r := range p.rules {
		c.rules[k] = r
	}
	return c
}

// Resolve interprets a raw field under the policy
func (p *Policy) Resolve(k Key, raw string) types.Value {
	r, ok := p.rules[k]
	if !ok {
		r = Rule{Confidence: types.Unknown}
	}

	fn := r.Interpret
	if fn == nil || r.Confidence == types.Unknown || r.Confidence == "" {
		fn = Passthrough
	}
	confidence := r.Confidence
	if confidence == "" {
		confidence = types.Unknown
	}

	v, numeric := fn(raw)
	return types.Value{
		Raw:        raw,
		Value:      v,
		Numeric:    numeric,
		Meaning:    r.Meaning,
		Unit:       r.Unit,
		Confidence: confidence,
	}
}

// Passthrough reads the raw text as a number without any conversion
func Passthrough(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Scaled multiplies the numeric reading by factor
func Scaled(factor float64) Func {
	return func(raw string) (float64, bool) {
		v, ok := Passthrough(raw)
		if !ok {
			return 0, false
		}
		return v * factor, true
	}
}

// Default is the conservative policy: nothing beyond what the field layout
// itself establishes
func Default() *Policy {
	p := NewPolicy()

	p.Register(Key{types.FileGPS, types.KindDelta, 2}, Rule{Meaning: "unconfirmed", Confidence: types.Unknown})
	p.Register(Key{types.FileGPS, types.KindDelta, 3}, Rule{Meaning: "unconfirmed", Confidence: types.Unknown})
	p.Register(Key{types.FileGPS, types.KindDelta, 6}, Rule{
		Meaning:    "heading",
		Unit:       "deg",
		Role:       RoleHeading,
		Confidence: types.Probable,
		Interpret:  Passthrough,
	})

	p.Register(Key{types.FileAcc, types.KindDelta, 2}, Rule{Meaning: "accel_x", Role: RoleAxisX, Confidence: types.Unknown})
	p.Register(Key{types.FileAcc, types.KindDelta, 3}, Rule{Meaning: "accel_y_vertical", Role: RoleAxisY, Confidence: types.Unknown})
	p.Register(Key{types.FileAcc, types.KindDelta, 4}, Rule{Meaning: "accel_z", Role: RoleAxisZ, Confidence: types.Unknown})

	return p
}

// SourceNotes extends Default with the reading used by the first recovery
// tool: GPS delta fields 2 and 3 are latitude/longitude changes in
// microdegrees since the anchor
func SourceNotes() *Policy {
	p := Default()
	p.Register(Key{types.FileGPS, types.KindDelta, 2}, Rule{
		Meaning:    "latitude_offset",
		Unit:       "deg",
		Role:       RoleLatitudeOffset,
		Confidence: types.Probable,
		Interpret:  Scaled(1e-6),
	})
	p.Register(Key{types.FileGPS, types.KindDelta, 3}, Rule{
		Meaning:    "longitude_offset",
		Unit:       "deg",
		Role:       RoleLongitudeOffset,
		Confidence: types.Probable,
		Interpret:  Scaled(1e-6),
	})
	return p
}

// ByName returns a built-in policy by name
func ByName(name string) (*Policy, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default(), true
	case "source-notes", "source_notes":
		return SourceNotes(), true
	}
	return nil, false
}
