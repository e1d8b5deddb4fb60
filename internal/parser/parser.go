package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/saviobatista/trackrescue/internal/types"
)

// FieldType is the lexical type a schema expects at one field position
type FieldType int

const (
	// FieldText accepts anything
	FieldText FieldType = iota
	// FieldInt must parse as a base-10 int64
	FieldInt
	// FieldFloat must parse as a finite float64
	FieldFloat
	// FieldRaw is an unconfirmed field, kept verbatim for the interpreter
	FieldRaw
)

// Schema describes a record kind within one file type. Types[0] is the tag.
type Schema struct {
	MinFields int
	MaxFields int // -1 means unbounded
	Types     []FieldType
}

func (s Schema) typeAt(i int) FieldType {
	if i < len(s.Types) {
		return s.Types[i]
	}
	return FieldText
}

var headerSchemas = map[types.Kind]Schema{
	types.KindUser:    {MinFields: 2, MaxFields: 2},
	types.KindVersion: {MinFields: 2, MaxFields: 2},
	types.KindDevice:  {MinFields: 2, MaxFields: -1},
}

var schemas = map[types.FileType]map[types.Kind]Schema{
	types.FileGPS: {
		types.KindUser:       headerSchemas[types.KindUser],
		types.KindVersion:    headerSchemas[types.KindVersion],
		types.KindAppVersion: {MinFields: 2, MaxFields: 2},
		types.KindDevice:     headerSchemas[types.KindDevice],
		// H,utc_epoch,lat,lon,ele_m,local_epoch,utc_datetime,local_datetime
		types.KindAnchor: {MinFields: 8, MaxFields: 8, Types: []FieldType{
			FieldText, FieldInt, FieldFloat, FieldFloat, FieldFloat, FieldInt, FieldText, FieldText,
		}},
		// D,delta_ms,?,?,delta_ele_mm,speed_mps,heading
		types.KindDelta: {MinFields: 7, MaxFields: 7, Types: []FieldType{
			FieldText, FieldInt, FieldRaw, FieldRaw, FieldFloat, FieldFloat, FieldRaw,
		}},
	},
	types.FileAcc: {
		types.KindUser:    headerSchemas[types.KindUser],
		types.KindVersion: headerSchemas[types.KindVersion],
		types.KindDevice:  headerSchemas[types.KindDevice],
		// H,monotonic_ms,local_epoch,local_datetime
		types.KindAnchor: {MinFields: 4, MaxFields: 4, Types: []FieldType{
			FieldText, FieldInt, FieldInt, FieldText,
		}},
		// D,delta_ms,x,y,z
		types.KindDelta: {MinFields: 5, MaxFields: 5, Types: []FieldType{
			FieldText, FieldInt, FieldRaw, FieldRaw, FieldRaw,
		}},
	},
}

// SchemaFor returns the expected layout of a record kind in a file type
func SchemaFor(ft types.FileType, kind types.Kind) (Schema, bool) {
	s, ok := schemas[ft][kind]
	return s, ok
}

// ParseLine splits one line into fields, classifies it by its tag and
// validates it against the schema for the file type
func ParseLine(line string, ft types.FileType, lineNo int) (*types.RawRecord, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	tag := fields[0]
	if len(tag) != 1 {
		return nil, formatError(ft, lineNo, types.CodeUnknownTag, 0, fmt.Errorf("invalid record tag %q", tag))
	}
	kind := types.Kind(tag[0])

	schema, ok := SchemaFor(ft, kind)
	if !ok {
		return nil, formatError(ft, lineNo, types.CodeUnknownTag, 0, fmt.Errorf("unknown record tag %q for %s file", tag, ft))
	}

	if len(fields) < schema.MinFields || (schema.MaxFields >= 0 && len(fields) > schema.MaxFields) {
		fe := formatError(ft, lineNo, types.CodeFieldCount, 0,
			fmt.Errorf("invalid %s record: expected %s fields, got %d", kind, expectedCount(schema), len(fields)))
		fe.Kind = kind
		return nil, fe
	}

	for i := 1; i < len(fields); i++ {
		if err := checkField(schema.typeAt(i), fields[i]); err != nil {
			fe := formatError(ft, lineNo, types.CodeBadNumber, i, err)
			fe.Kind = kind
			return nil, fe
		}
	}

	return &types.RawRecord{
		File:       ft,
		Kind:       kind,
		Fields:     fields,
		LineNumber: lineNo,
	}, nil
}

func checkField(t FieldType, s string) error {
	switch t {
	case FieldInt:
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return fmt.Errorf("invalid integer %q", s)
		}
	case FieldFloat:
		if _, err := parseFloat(s); err != nil {
			return err
		}
	}
	return nil
}

func parseFloat(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func expectedCount(s Schema) string {
	switch {
	case s.MaxFields < 0:
		return fmt.Sprintf("at least %d", s.MinFields)
	case s.MinFields == s.MaxFields:
		return strconv.Itoa(s.MinFields)
	default:
		return fmt.Sprintf("%d-%d", s.MinFields, s.MaxFields)
	}
}

func formatError(ft types.FileType, line int, code string, field int, err error) *types.RecordFormatError {
	return &types.RecordFormatError{File: ft, Line: line, Code: code, Field: field, Err: err}
}
