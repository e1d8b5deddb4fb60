package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/saviobatista/trackrescue/internal/types"
)

// Line is one non-blank line of a member
type Line struct {
	Text   string
	Number int
	// Terminated is false only for a final line without a trailing newline
	Terminated bool
}

// Scanner reads lines and remembers whether each one was newline-terminated
type Scanner struct {
	r      *bufio.Reader
	number int
	cur    Line
	err    error
	done   bool
}

// NewScanner creates a line scanner over r
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 64*1024)}
}

// Scan advances to the next non-blank line
func (s *Scanner) Scan() bool {
	for !s.done {
		text, err := s.r.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("read error: %w", err)
			s.done = true
			return false
		}
		if errors.Is(err, io.EOF) {
			s.done = true
			if text == "" {
				return false
			}
		}

		s.number++
		terminated := strings.HasSuffix(text, "\n")
		text = strings.TrimRight(text, "\r\n")
		if strings.TrimSpace(text) == "" {
			continue
		}
		s.cur = Line{Text: text, Number: s.number, Terminated: terminated}
		return true
	}
	return false
}

// Line returns the current line
func (s *Scanner) Line() Line {
	return s.cur
}

// Err returns the first read error
func (s *Scanner) Err() error {
	return s.err
}

// Outcome summarises a pass over one member
type Outcome struct {
	Records int
	Skipped []*types.RecordFormatError
}

// Each classifies every line of r and hands the records to fn in order.
//
// A line that fails to classify, or that fn rejects with a
// *types.RecordFormatError, aborts the pass in strict mode and is skipped in
// lenient mode. A final unterminated line that fails either way is treated
// as the end of the stream. Any other error returned by fn aborts the pass.
func Each(r io.Reader, ft types.FileType, strict bool, fn func(*types.RawRecord) error) (Outcome, error) {
	return EachWithSkip(r, ft, strict, fn, nil)
}

// EachWithSkip is Each, additionally reporting every line skipped in lenient
// mode to onSkip at its position in the stream
func EachWithSkip(r io.Reader, ft types.FileType, strict bool, fn func(*types.RawRecord) error,
	onSkip func(*types.RecordFormatError)) (Outcome, error) {
	var out Outcome
	scanner := NewScanner(r)
	for scanner.Scan() {
		line := scanner.Line()

		rec, err := ParseLine(line.Text, ft, line.Number)
		if err == nil {
			err = fn(rec)
		}
		if err == nil {
			out.Records++
			continue
		}

		var fe *types.RecordFormatError
		if !errors.As(err, &fe) {
			return out, err
		}
		if !line.Terminated {
			break
		}
		if strict {
			return out, fe
		}
		out.Skipped = append(out.Skipped, fe)
		if onSkip != nil {
			onSkip(fe)
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}
