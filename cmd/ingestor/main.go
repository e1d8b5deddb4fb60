package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/saviobatista/trackrescue/internal/config"
	"github.com/saviobatista/trackrescue/internal/db"
	"github.com/saviobatista/trackrescue/internal/decoder"
	"github.com/saviobatista/trackrescue/internal/interp"
	"github.com/saviobatista/trackrescue/internal/nats"
	"github.com/saviobatista/trackrescue/internal/redis"
	"github.com/saviobatista/trackrescue/internal/stats"
	"github.com/saviobatista/trackrescue/internal/storage"
	"github.com/saviobatista/trackrescue/internal/timesync"
	"github.com/saviobatista/trackrescue/internal/trackjson"
	"github.com/saviobatista/trackrescue/internal/types"
)

// DBClient interface for testability
type DBClient interface {
	StoreTrack(archiveName string, summary types.Summary, track *types.Track) error
	FindByDigest(digest string) (*types.Summary, error)
}

// RedisClient interface for testability
type RedisClient interface {
	StoreTrack(ctx context.Context, archiveDigest string, canonical []byte) error
	StoreSummary(ctx context.Context, archiveDigest string, summary types.Summary) error
	GetSummary(ctx context.Context, archiveDigest string) (*types.Summary, error)
	MarkProcessing(ctx context.Context, archiveDigest string) (bool, error)
	ReleaseProcessing(ctx context.Context, archiveDigest string) error
}

// Publisher announces finished decodes
type Publisher interface {
	PublishDecoded(summary *types.Summary) error
}

// TrackWriter stores canonical track documents
type TrackWriter interface {
	WriteTrack(stamp, digest string, canonical []byte) (string, error)
}

// Ingestor decodes submitted archives and fans the result out to the stores
type Ingestor struct {
	db      DBClient
	redis   RedisClient
	pub     Publisher
	writer  TrackWriter
	options decoder.Options
	stats   *stats.Stats
}

// NewIngestor creates an ingestor; opts.Stats is replaced by its own counters
func NewIngestor(db DBClient, redis RedisClient, pub Publisher, writer TrackWriter, opts decoder.Options) *Ingestor {
	s := stats.New()
	opts.Stats = s
	return &Ingestor{
		db:      db,
		redis:   redis,
		pub:     pub,
		writer:  writer,
		options: opts,
		stats:   s,
	}
}

// Start begins statistics logging and persistence
func (i *Ingestor) Start(ctx context.Context) {
	if store, ok := i.db.(stats.Store); ok {
		i.stats.SetStore(store)
		go i.stats.StartPersistence(ctx, 5*time.Minute)
	}
	go i.logStats(ctx)
}

// HandleArchive decodes one submission. A returned error asks for
// redelivery; archives that can never decode are logged and dropped.
func (i *Ingestor) HandleArchive(msg *types.ArchiveMessage) error {
	ctx := context.Background()
	archiveDigest := trackjson.DigestBytes(msg.Data)

	cached, err := i.redis.GetSummary(ctx, archiveDigest)
	if err != nil {
		log.Printf("Warning: Failed to get cached summary: %v", err)
	}
	if cached != nil {
		log.Printf("Archive %s already decoded as session %s", msg.Name, cached.SessionID)
		return i.pub.PublishDecoded(cached)
	}

	claimed, err := i.redis.MarkProcessing(ctx, archiveDigest)
	if err != nil {
		log.Printf("Warning: Failed to claim archive: %v", err)
	} else if !claimed {
		return fmt.Errorf("archive %s is being decoded by another worker", msg.Name)
	}
	defer func() {
		if err := i.redis.ReleaseProcessing(ctx, archiveDigest); err != nil {
			log.Printf("Warning: Failed to release archive claim: %v", err)
		}
	}()

	track, err := decoder.Decode(msg.Data, i.options)
	if err != nil {
		log.Printf("Rejecting archive %s (%s): %v", msg.Name, msg.ID, err)
		return nil
	}
	for _, w := range track.Warnings {
		log.Printf("Archive %s: %s", msg.Name, w)
	}

	canonical, err := trackjson.Encode(track)
	if err != nil {
		return fmt.Errorf("failed to encode track: %w", err)
	}
	if err := trackjson.Validate(canonical); err != nil {
		return fmt.Errorf("encoded track is invalid: %w", err)
	}
	digest := trackjson.DigestBytes(canonical)

	summary := track.Summarize()
	summary.Digest = digest

	existing, err := i.db.FindByDigest(digest)
	if err != nil {
		return fmt.Errorf("failed to look up track: %w", err)
	}
	if existing != nil {
		summary = *existing
	} else {
		summary.SessionID = uuid.New().String()
		if err := i.db.StoreTrack(msg.Name, summary, track); err != nil {
			return fmt.Errorf("failed to store track: %w", err)
		}
	}

	path, err := i.writer.WriteTrack(track.Session.Stamp, digest, canonical)
	if err != nil {
		return fmt.Errorf("failed to write track: %w", err)
	}
	log.Printf("Decoded %s into session %s (%d points, %d samples, %d warnings) at %s",
		msg.Name, summary.SessionID, summary.Points, summary.Samples, summary.Warnings, path)

	if err := i.redis.StoreTrack(ctx, archiveDigest, canonical); err != nil {
		log.Printf("Warning: Failed to cache track in Redis: %v", err)
	}
	if err := i.redis.StoreSummary(ctx, archiveDigest, summary); err != nil {
		log.Printf("Warning: Failed to cache summary in Redis: %v", err)
	}

	return i.pub.PublishDecoded(&summary)
}

// logStats periodically logs statistics
func (i *Ingestor) logStats(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", i.stats)
		}
	}
}

// decoderOptions maps configuration onto decode options
func decoderOptions(cfg *config.Config) (decoder.Options, error) {
	policy, ok := interp.ByName(cfg.Policy)
	if !ok {
		return decoder.Options{}, fmt.Errorf("unknown field policy %q", cfg.Policy)
	}
	return decoder.Options{
		Strict:         cfg.Strict,
		RequireBoth:    cfg.RequireBoth,
		Policy:         policy,
		Tolerance:      timesync.Tolerance{Text: cfg.Tolerance},
		AnchorInterval: cfg.AnchorInterval,
	}, nil
}

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*nats.Client, *db.Client, *redis.Client, error) {
	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		natsClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		natsClient.Close()
		if closeErr := dbClient.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", closeErr)
		}
		return nil, nil, nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return natsClient, dbClient, redisClient, nil
}

func closeClients(natsClient *nats.Client, dbClient *db.Client, redisClient *redis.Client) {
	natsClient.Close()
	if err := dbClient.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing dbClient: %v\n", err)
	}
	if err := redisClient.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing redisClient: %v\n", err)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	opts, err := decoderOptions(cfg)
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		os.Exit(1)
	}

	natsClient, dbClient, redisClient, err := createClients(cfg)
	if err != nil {
		log.Printf("Failed to create clients: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingestor := NewIngestor(dbClient, redisClient, natsClient, storage.New(cfg.OutputDir), opts)
	ingestor.Start(ctx)

	if err := natsClient.SubscribeArchives(ingestor.HandleArchive); err != nil {
		log.Printf("Failed to subscribe to archives: %v", err)
		closeClients(natsClient, dbClient, redisClient)
		os.Exit(1)
	}
	log.Printf("Waiting for archives on %s", nats.SubjectArchive)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	closeClients(natsClient, dbClient, redisClient)
}
