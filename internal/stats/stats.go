package stats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/saviobatista/trackrescue/internal/types"
)

// KindOrder fixes the index of each record kind in KindCounts
var KindOrder = []types.Kind{
	types.KindUser, types.KindVersion, types.KindAppVersion,
	types.KindDevice, types.KindAnchor, types.KindDelta,
}

// Store persists a statistics snapshot
type Store interface {
	StoreDecodeStats(stats map[string]interface{}) error
}

// Stats tracks decode statistics. Both stream decoders update it
// concurrently.
type Stats struct {
	// Archive counts
	ArchivesDecoded uint64
	ArchivesFailed  uint64

	// Record counts
	RecordsParsed  uint64
	RecordsSkipped uint64
	StreamsFailed  uint64

	// Output counts
	PointsEmitted  uint64
	SamplesEmitted uint64
	Warnings       uint64

	// Record kind counts, indexed as KindOrder
	KindCounts [6]uint64

	// Timing
	LastDecodeTime time.Time
	ProcessingTime time.Duration

	startedAt time.Time
	store     Store

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	now := time.Now()
	return &Stats{
		LastDecodeTime: now,
		startedAt:      now,
	}
}

// SetStore sets the persistence target
func (s *Stats) SetStore(store Store) {
	s.mu.Lock()
	s.store = store
	s.mu.Unlock()
}

// Persist stores the current statistics
func (s *Stats) Persist() error {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()
	if store == nil {
		return fmt.Errorf("statistics store not set")
	}

	return store.StoreDecodeStats(s.GetStats())
}

func (s *Stats) IncrementArchivesDecoded() {
	atomic.AddUint64(&s.ArchivesDecoded, 1)
}

func (s *Stats) IncrementArchivesFailed() {
	atomic.AddUint64(&s.ArchivesFailed, 1)
}

func (s *Stats) IncrementStreamsFailed() {
	atomic.AddUint64(&s.StreamsFailed, 1)
}

func (s *Stats) AddRecordsParsed(n int) {
	atomic.AddUint64(&s.RecordsParsed, uint64(n))
}

func (s *Stats) AddRecordsSkipped(n int) {
	atomic.AddUint64(&s.RecordsSkipped, uint64(n))
}

func (s *Stats) AddPoints(n int) {
	atomic.AddUint64(&s.PointsEmitted, uint64(n))
}

func (s *Stats) AddSamples(n int) {
	atomic.AddUint64(&s.SamplesEmitted, uint64(n))
}

func (s *Stats) AddWarnings(n int) {
	atomic.AddUint64(&s.Warnings, uint64(n))
}

// AddKindCounts merges per-kind record counts
func (s *Stats) AddKindCounts(counts map[types.Kind]int) {
	for i, k := range KindOrder {
		if n := counts[k]; n > 0 {
			atomic.AddUint64(&s.KindCounts[i], uint64(n))
		}
	}
}

// RecordDecode marks the end of one archive decode
func (s *Stats) RecordDecode(duration time.Duration) {
	s.mu.Lock()
	s.LastDecodeTime = time.Now()
	s.ProcessingTime += duration
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kinds [6]uint64
	for i := range kinds {
		kinds[i] = atomic.LoadUint64(&s.KindCounts[i])
	}

	return map[string]interface{}{
		"archives_decoded": atomic.LoadUint64(&s.ArchivesDecoded),
		"archives_failed":  atomic.LoadUint64(&s.ArchivesFailed),
		"records_parsed":   atomic.LoadUint64(&s.RecordsParsed),
		"records_skipped":  atomic.LoadUint64(&s.RecordsSkipped),
		"streams_failed":   atomic.LoadUint64(&s.StreamsFailed),
		"points_emitted":   atomic.LoadUint64(&s.PointsEmitted),
		"samples_emitted":  atomic.LoadUint64(&s.SamplesEmitted),
		"warnings":         atomic.LoadUint64(&s.Warnings),
		"kind_counts":      kinds,
		"last_decode_time": s.LastDecodeTime,
		"processing_time":  s.ProcessingTime,
		"uptime":           time.Since(s.startedAt),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Archives Decoded: %d\n"+
			"Archives Failed: %d\n"+
			"Records Parsed: %d\n"+
			"Records Skipped: %d\n"+
			"Streams Failed: %d\n"+
			"Points Emitted: %d\n"+
			"Samples Emitted: %d\n"+
			"Warnings: %d\n"+
			"Last Decode Time: %s\n"+
			"Processing Time: %s\n"+
			"Uptime: %s",
		stats["archives_decoded"],
		stats["archives_failed"],
		stats["records_parsed"],
		stats["records_skipped"],
		stats["streams_failed"],
		stats["points_emitted"],
		stats["samples_emitted"],
		stats["warnings"],
		stats["last_decode_time"],
		stats["processing_time"],
		stats["uptime"],
	)
}

// StartPersistence starts periodic persistence of statistics
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist final statistics: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist statistics: %v", err)
			}
		}
	}
}
