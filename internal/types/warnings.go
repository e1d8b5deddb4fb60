package types

import "fmt"

// Warning codes
const (
	WarnOffsetMismatch    = "offset_mismatch"
	WarnUTCTextMismatch   = "utc_text_mismatch"
	WarnLocalTextMismatch = "local_text_mismatch"
	WarnLocalZoneMismatch = "local_zone_mismatch"
	WarnDeltaOutOfRange   = "delta_out_of_range"
	WarnCounterRegression = "counter_regression"
	WarnCounterDrift      = "counter_drift"
	WarnDuplicateHeader   = "duplicate_header"
	WarnLateHeader        = "late_header"
	WarnMissingMember     = "missing_member"
	WarnIgnoredMember     = "ignored_member"
	WarnStampMismatch     = "stamp_mismatch"
	WarnMemberName        = "member_name"
	WarnStaleAnchor       = "stale_anchor"
	WarnTimeRegression    = "time_regression"
)

// ConsistencyWarning is a non-fatal diagnostic recorded during decode
type ConsistencyWarning struct {
	File    FileType `json:"-"`
	Stream  string   `json:"stream"`
	Line    int      `json:"line,omitempty"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}

// NewWarning builds a warning against a line of the given stream
func NewWarning(file FileType, line int, code, format string, args ...interface{}) ConsistencyWarning {
	return ConsistencyWarning{
		File:    file,
		Stream:  file.String(),
		Line:    line,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (w ConsistencyWarning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s line %d: %s: %s", w.Stream, w.Line, w.Code, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Stream, w.Code, w.Message)
}
