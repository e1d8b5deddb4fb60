package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/saviobatista/trackrescue/internal/config"
	"github.com/saviobatista/trackrescue/internal/decoder"
	"github.com/saviobatista/trackrescue/internal/interp"
	"github.com/saviobatista/trackrescue/internal/nats"
	"github.com/saviobatista/trackrescue/internal/storage"
	"github.com/saviobatista/trackrescue/internal/timesync"
	"github.com/saviobatista/trackrescue/internal/trackjson"
	"github.com/saviobatista/trackrescue/internal/types"
)

// exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitContainer   = 3
	exitStreamError = 4
)

// ArchivePublisher submits archives to the decoding service
type ArchivePublisher interface {
	PublishArchive(msg *types.ArchiveMessage) error
	MaxPayload() int64
	Close()
}

// connect is replaced in tests
var connect = func(url string) (ArchivePublisher, error) {
	client, err := nats.New(url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

type options struct {
	input       string
	outputDir   string
	printJSON   bool
	policy      string
	strict      bool
	requireBoth bool
	tolerance   time.Duration
	interval    time.Duration
	submit      bool
	natsURL     string
}

func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("trackdecode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.input, "i", "", "Archive to decode (zip with a .gps and a .acc member)")
	fs.StringVar(&o.outputDir, "o", "", "Write the canonical track as gzip JSON under this directory")
	fs.BoolVar(&o.printJSON, "json", false, "Print the canonical track JSON to stdout")
	fs.StringVar(&o.policy, "policy", cfg.Policy, "Field interpretation policy: default or source-notes")
	fs.BoolVar(&o.strict, "strict", cfg.Strict, "Abort a stream on its first malformed line")
	fs.BoolVar(&o.requireBoth, "require-both", cfg.RequireBoth, "Fail when the .gps or .acc member is missing")
	fs.DurationVar(&o.tolerance, "tolerance", cfg.Tolerance, "Allowed disagreement between datetime strings and epochs")
	fs.DurationVar(&o.interval, "anchor-interval", cfg.AnchorInterval, "Nominal spacing of anchor records")
	fs.BoolVar(&o.submit, "submit", false, "Publish the archive to the decoding service instead of decoding locally")
	fs.StringVar(&o.natsURL, "nats", cfg.NATSURL, "NATS server used with -submit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.input == "" {
		fs.Usage()
		return nil, fmt.Errorf("-i is required")
	}
	return o, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(exitFailure)
	}
	os.Exit(run(os.Args[1:], cfg, os.Stdout, os.Stderr))
}

func run(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	logger := log.New(stderr, "", log.LstdFlags)

	o, err := parseFlags(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		logger.Printf("%v", err)
		return exitUsage
	}

	if o.submit {
		if err := submit(o); err != nil {
			logger.Printf("Failed to submit archive: %v", err)
			return exitFailure
		}
		logger.Printf("Submitted %s to %s", o.input, nats.SubjectArchive)
		return exitOK
	}

	policy, ok := interp.ByName(o.policy)
	if !ok {
		logger.Printf("Unknown field policy %q", o.policy)
		return exitUsage
	}

	//nolint:gosec // the archive path is supplied by the operator
	data, err := os.ReadFile(o.input)
	if err != nil {
		logger.Printf("Failed to read archive: %v", err)
		return exitFailure
	}

	track, err := decoder.Decode(data, decoder.Options{
		Strict:         o.strict,
		RequireBoth:    o.requireBoth,
		Policy:         policy,
		Tolerance:      timesync.Tolerance{Text: o.tolerance},
		AnchorInterval: o.interval,
	})
	if err != nil {
		logger.Printf("Cannot decode %s: %v", o.input, err)
		return exitContainer
	}

	canonical, err := trackjson.Encode(track)
	if err != nil {
		logger.Printf("Failed to encode track: %v", err)
		return exitFailure
	}
	digest := trackjson.DigestBytes(canonical)

	for _, w := range track.Warnings {
		logger.Printf("warning: %s", w)
	}

	if o.printJSON {
		if _, err := stdout.Write(append(canonical, '\n')); err != nil {
			logger.Printf("Failed to write track: %v", err)
			return exitFailure
		}
	} else {
		summary := track.Summarize()
		summary.Digest = digest
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			logger.Printf("Failed to encode summary: %v", err)
			return exitFailure
		}
		fmt.Fprintln(stdout, string(out))
	}

	if o.outputDir != "" {
		path, err := storage.New(o.outputDir).WriteTrack(track.Session.Stamp, digest, canonical)
		if err != nil {
			logger.Printf("Failed to store track: %v", err)
			return exitFailure
		}
		logger.Printf("Wrote %s", path)
	}

	if track.GPS.Failed || track.Acc.Failed {
		for _, s := range []types.StreamStatus{track.GPS, track.Acc} {
			if s.Failed {
				logger.Printf("stream failed: %s", s.Error)
			}
		}
		return exitStreamError
	}
	return exitOK
}

func submit(o *options) error {
	//nolint:gosec // the archive path is supplied by the operator
	data, err := os.ReadFile(o.input)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}

	client, err := connect(o.natsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	msg := &types.ArchiveMessage{
		ID:          uuid.New().String(),
		Name:        filepath.Base(o.input),
		Data:        data,
		SubmittedAt: time.Now().UTC(),
	}
	// base64 in JSON grows the payload by a third
	if limit := client.MaxPayload(); limit > 0 && int64(len(data))*4/3+1024 > limit {
		return fmt.Errorf("archive of %d bytes exceeds the server payload limit of %d bytes", len(data), limit)
	}
	return client.PublishArchive(msg)
}
