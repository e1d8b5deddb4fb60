package container

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/saviobatista/trackrescue/internal/types"
)

const (
	// StampLayout is the session timestamp embedded in member names
	StampLayout = "2006-01-02-15-04-05"

	maxMemberBytes = 256 << 20
)

var memberPattern = regexp.MustCompile(`^data-(\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2})\.(gps|acc)$`)

// Options controls how strictly the archive layout is enforced
type Options struct {
	// RequireBoth turns a missing .gps or .acc member into a ContainerError
	RequireBoth bool
}

// Member is one raw archive member
type Member struct {
	Name  string
	Stamp string
	Data  []byte
}

// Reader exposes the member as a line-oriented byte stream
func (m *Member) Reader() io.Reader {
	return bytes.NewReader(m.Data)
}

// Container holds the located members of one session archive
type Container struct {
	GPS   *Member
	Acc   *Member
	Notes []types.ConsistencyWarning
}

// Stamp returns the shared session timestamp, preferring the GPS member
func (c *Container) Stamp() string {
	if c.GPS != nil && c.GPS.Stamp != "" {
		return c.GPS.Stamp
	}
	if c.Acc != nil {
		return c.Acc.Stamp
	}
	return ""
}

// CapturedAt parses the session timestamp; the zero time is returned when absent
func (c *Container) CapturedAt() time.Time {
	t, err := time.Parse(StampLayout, c.Stamp())
	if err != nil {
		return time.Time{}
	}
	return t
}

// Open reads an archive from disk and loads it
func Open(filename string, opts Options) (*Container, error) {
	//nolint:gosec // filename is supplied by the operator
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, &types.ContainerError{Code: types.CodeUnreadable, Err: fmt.Errorf("failed to read archive: %w", err)}
	}
	return Load(data, opts)
}

// Load locates the .gps and .acc members inside archive bytes
func Load(data []byte, opts Options) (*Container, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &types.ContainerError{Code: types.CodeUnreadable, Err: fmt.Errorf("failed to open zip: %w", err)}
	}

	c := &Container{}
	for _, zipFile := range zipReader.File {
		if zipFile.FileInfo().IsDir() {
			continue
		}

		base := path.Base(zipFile.Name)
		var slot **Member
		switch {
		case strings.HasSuffix(base, ".gps"):
			slot = &c.GPS
		case strings.HasSuffix(base, ".acc"):
			slot = &c.Acc
		default:
			c.Notes = append(c.Notes, types.NewWarning(types.FileContainer, 0, types.WarnIgnoredMember,
				"ignoring unrecognized member %s", zipFile.Name))
			continue
		}

		if *slot != nil {
			return nil, &types.ContainerError{
				Code:   types.CodeAmbiguousMember,
				Member: zipFile.Name,
				Err:    fmt.Errorf("already matched %s", (*slot).Name),
			}
		}

		content, err := readZipFile(zipFile)
		if err != nil {
			return nil, &types.ContainerError{Code: types.CodeUnreadable, Member: zipFile.Name, Err: err}
		}

		member := &Member{Name: zipFile.Name, Data: content}
		if m := memberPattern.FindStringSubmatch(base); m != nil {
			member.Stamp = m[1]
		} else {
			c.Notes = append(c.Notes, types.NewWarning(types.FileContainer, 0, types.WarnMemberName,
				"member %s does not follow data-YYYY-MM-DD-hh-mm-ss naming; session time unknown", zipFile.Name))
		}
		*slot = member
	}

	if c.GPS == nil && c.Acc == nil {
		return nil, &types.ContainerError{Code: types.CodeMissingMember, Err: fmt.Errorf("archive has neither a .gps nor a .acc member")}
	}
	for _, missing := range c.missing() {
		if opts.RequireBoth {
			return nil, &types.ContainerError{Code: types.CodeMissingMember, Err: fmt.Errorf("missing a %s file in archive", missing)}
		}
		c.Notes = append(c.Notes, types.NewWarning(types.FileContainer, 0, types.WarnMissingMember,
			"missing a %s file in archive", missing))
	}

	if c.GPS != nil && c.Acc != nil && c.GPS.Stamp != c.Acc.Stamp {
		c.Notes = append(c.Notes, types.NewWarning(types.FileContainer, 0, types.WarnStampMismatch,
			"member timestamps differ: %q vs %q", c.GPS.Stamp, c.Acc.Stamp))
	}

	return c, nil
}

func (c *Container) missing() []string {
	var out []string
	if c.GPS == nil {
		out = append(out, ".gps")
	}
	if c.Acc == nil {
		out = append(out, ".acc")
	}
	return out
}

func readZipFile(zipFile *zip.File) ([]byte, error) {
	if zipFile.UncompressedSize64 > maxMemberBytes {
		return nil, fmt.Errorf("zip entry too large: %d", zipFile.UncompressedSize64)
	}
	reader, err := zipFile.Open()
	if err != nil {
		return nil, fmt.Errorf("open zip entry: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(reader, maxMemberBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read zip entry: %w", err)
	}
	if len(data) > maxMemberBytes {
		return nil, fmt.Errorf("zip entry too large: %d", len(data))
	}
	return data, nil
}
