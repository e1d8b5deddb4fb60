package types

import (
	"errors"
	"fmt"
)

// Container error codes
const (
	CodeUnreadable      = "unreadable_archive"
	CodeMissingMember   = "missing_member"
	CodeAmbiguousMember = "ambiguous_member"
)

// Record format error codes
const (
	CodeUnknownTag = "unknown_tag"
	CodeFieldCount = "field_count"
	CodeBadNumber  = "bad_number"
	CodeBadTime    = "bad_time"
)

// Sequencing error codes
const (
	CodeDeltaBeforeAnchor = "delta_before_anchor"
)

// ContainerError aborts the whole decode
type ContainerError struct {
	Code   string
	Member string
	Err    error
}

func (e *ContainerError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("container: %s (%s): %v", e.Code, e.Member, e.Err)
	}
	return fmt.Sprintf("container: %s: %v", e.Code, e.Err)
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// RecordFormatError is raised when a line does not match its schema
type RecordFormatError struct {
	File FileType
	Line int
	// Kind is zero when the tag itself could not be classified
	Kind  Kind
	Code  string
	Field int
	Err   error
}

func (e *RecordFormatError) Error() string {
	if e.Field > 0 {
		return fmt.Sprintf("%s line %d field %d: %s: %v", e.File, e.Line, e.Field, e.Code, e.Err)
	}
	return fmt.Sprintf("%s line %d: %s: %v", e.File, e.Line, e.Code, e.Err)
}

func (e *RecordFormatError) Unwrap() error {
	return e.Err
}

// SequencingError is raised when a delta cannot be resolved against an anchor
type SequencingError struct {
	File FileType
	Line int
	Code string
}

func (e *SequencingError) Error() string {
	return fmt.Sprintf("%s line %d: %s: delta record without a preceding anchor", e.File, e.Line, e.Code)
}

// IsFatal reports whether err aborts the whole decode rather than one stream
func IsFatal(err error) bool {
	var ce *ContainerError
	return errors.As(err, &ce)
}

// CodeOf returns the taxonomy code carried by err, or ""
func CodeOf(err error) string {
	var ce *ContainerError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var fe *RecordFormatError
	if errors.As(err, &fe) {
		return fe.Code
	}
	var se *SequencingError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
