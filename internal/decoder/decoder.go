package decoder

import (
	"sync"
	"time"

	"github.com/saviobatista/trackrescue/internal/acc"
	"github.com/saviobatista/trackrescue/internal/container"
	"github.com/saviobatista/trackrescue/internal/gps"
	"github.com/saviobatista/trackrescue/internal/interp"
	"github.com/saviobatista/trackrescue/internal/stats"
	"github.com/saviobatista/trackrescue/internal/timesync"
	"github.com/saviobatista/trackrescue/internal/types"
)

// Options controls a decode
type Options struct {
	// Strict aborts a stream on its first malformed line instead of skipping it
	Strict bool
	// RequireBoth makes a missing .gps or .acc member fatal
	RequireBoth    bool
	Policy         *interp.Policy
	Tolerance      timesync.Tolerance
	AnchorInterval time.Duration
	// Stats is optional
	Stats *stats.Stats
}

// DefaultOptions returns lenient options with the conservative policy
func DefaultOptions() Options {
	return Options{
		Policy:         interp.Default(),
		Tolerance:      timesync.DefaultTolerance(),
		AnchorInterval: gps.DefaultAnchorInterval,
	}
}

// Decode loads an archive and reconstructs both streams. Only a
// *types.ContainerError is returned as an error; stream failures are
// reported in Track.GPS and Track.Acc.
func Decode(data []byte, opts Options) (*types.Track, error) {
	start := time.Now()
	c, err := container.Load(data, container.Options{RequireBoth: opts.RequireBoth})
	if err != nil {
		if opts.Stats != nil {
			opts.Stats.IncrementArchivesFailed()
		}
		return nil, err
	}
	track := DecodeContainer(c, opts)
	if opts.Stats != nil {
		opts.Stats.RecordDecode(time.Since(start))
	}
	return track, nil
}

// DecodeContainer reconstructs the GPS and accelerometer members on two
// goroutines and combines them once both have finished
func DecodeContainer(c *container.Container, opts Options) *types.Track {
	if opts.Policy == nil {
		opts.Policy = interp.Default()
	}

	var (
		wg        sync.WaitGroup
		gpsResult gps.Result
		accResult acc.Result
	)

	if c.GPS != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gpsResult = gps.Decode(c.GPS.Reader(), gps.Options{
				Policy:         opts.Policy,
				Tolerance:      opts.Tolerance,
				AnchorInterval: opts.AnchorInterval,
				Strict:         opts.Strict,
			})
		}()
	}
	if c.Acc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			accResult = acc.Decode(c.Acc.Reader(), acc.Options{
				Policy:         opts.Policy,
				Tolerance:      opts.Tolerance,
				AnchorInterval: opts.AnchorInterval,
				Strict:         opts.Strict,
			})
		}()
	}
	wg.Wait()

	track := &types.Track{
		Session: types.Session{
			Stamp:      c.Stamp(),
			CapturedAt: c.CapturedAt(),
			GPS:        gpsResult.Header,
			Acc:        accResult.Header,
		},
		Points:   gpsResult.Points,
		Samples:  accResult.Samples,
		Warnings: []types.ConsistencyWarning{},
		GPS:      streamStatus(c.GPS != nil, gpsResult.Records, gpsResult.Skipped, gpsResult.Err),
		Acc:      streamStatus(c.Acc != nil, accResult.Records, accResult.Skipped, accResult.Err),
	}
	if track.Points == nil {
		track.Points = []types.TrackPoint{}
	}
	if track.Samples == nil {
		track.Samples = []types.Sample{}
	}

	// fixed order regardless of which goroutine finished first
	track.Warnings = append(track.Warnings, c.Notes...)
	track.Warnings = append(track.Warnings, gpsResult.Warnings...)
	track.Warnings = append(track.Warnings, accResult.Warnings...)

	if s := opts.Stats; s != nil {
		s.IncrementArchivesDecoded()
		s.AddRecordsParsed(gpsResult.Records + accResult.Records)
		s.AddRecordsSkipped(len(gpsResult.Skipped) + len(accResult.Skipped))
		s.AddKindCounts(gpsResult.KindCounts)
		s.AddKindCounts(accResult.KindCounts)
		s.AddPoints(len(track.Points))
		s.AddSamples(len(track.Samples))
		s.AddWarnings(len(track.Warnings))
		if track.GPS.Failed {
			s.IncrementStreamsFailed()
		}
		if track.Acc.Failed {
			s.IncrementStreamsFailed()
		}
	}

	return track
}

func streamStatus(present bool, records int, skipped []*types.RecordFormatError, err error) types.StreamStatus {
	status := types.StreamStatus{
		Present: present,
		Records: records,
		Skipped: skipped,
		Err:     err,
	}
	for _, fe := range skipped {
		status.SkippedLines = append(status.SkippedLines, fe.Line)
	}
	if err != nil {
		status.Failed = true
		status.Error = err.Error()
	}
	return status
}
