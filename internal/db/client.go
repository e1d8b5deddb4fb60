package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/saviobatista/trackrescue/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// StoreTrack stores a decoded session with its points, samples and warnings
// in one transaction. summary.SessionID must be set.
func (c *Client) StoreTrack(archiveName string, summary types.Summary, track *types.Track) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	header := track.Session.GPS
	if header.Username == "" && header.DeviceID == nil {
		header = track.Session.Acc
	}

	query := `
		INSERT INTO decode_sessions (
			session_id, digest, archive_name, stamp, captured_at,
			username, format_version, app_version, device_id,
			points, samples, warnings, max_speed_mps, distance_m,
			start_utc, end_utc, gps_error, acc_error, decoded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	if _, err := tx.Exec(query,
		summary.SessionID, summary.Digest, archiveName, summary.Stamp, nullTime(track.Session.CapturedAt),
		header.Username, header.FormatVersion, header.AppVersion, pq.Array(header.DeviceID),
		summary.Points, summary.Samples, summary.Warnings, summary.MaxSpeedMps, summary.DistanceM,
		nullTime(summary.StartUTC), nullTime(summary.EndUTC), summary.GPSError, summary.AccError, time.Now(),
	); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	points := make([][]interface{}, len(track.Points))
	for i, p := range track.Points {
		row := []interface{}{
			summary.SessionID, i, p.UTC, p.Local, p.Latitude, p.Longitude, p.ElevationM, p.SpeedMps,
		}
		row = append(row, valueArgs(p.Heading)...)
		row = append(row, valueArgs(p.Field2)...)
		row = append(row, valueArgs(p.Field3)...)
		points[i] = append(row, p.FromAnchor, p.Line)
	}
	pointColumns := []string{
		"session_id", "seq", "utc", "local", "latitude", "longitude", "elevation_m", "speed_mps",
	}
	pointColumns = append(pointColumns, valueColumns("heading")...)
	pointColumns = append(pointColumns, valueColumns("field2")...)
	pointColumns = append(pointColumns, valueColumns("field3")...)
	pointColumns = append(pointColumns, "from_anchor", "line")
	if err := copyRows(tx, "track_points", pointColumns, points); err != nil {
		return err
	}

	samples := make([][]interface{}, len(track.Samples))
	for i, s := range track.Samples {
		row := []interface{}{summary.SessionID, i, s.Local}
		row = append(row, valueArgs(s.X)...)
		row = append(row, valueArgs(s.Y)...)
		row = append(row, valueArgs(s.Z)...)
		samples[i] = append(row, s.ElapsedMs, s.Line)
	}
	sampleColumns := []string{"session_id", "seq", "local"}
	sampleColumns = append(sampleColumns, valueColumns("x")...)
	sampleColumns = append(sampleColumns, valueColumns("y")...)
	sampleColumns = append(sampleColumns, valueColumns("z")...)
	sampleColumns = append(sampleColumns, "elapsed_ms", "line")
	if err := copyRows(tx, "accel_samples", sampleColumns, samples); err != nil {
		return err
	}

	warnings := make([][]interface{}, len(track.Warnings))
	for i, w := range track.Warnings {
		warnings[i] = []interface{}{summary.SessionID, i, w.Stream, w.Line, w.Code, w.Message}
	}
	if err := copyRows(tx, "decode_warnings", []string{
		"session_id", "seq", "stream", "line", "code", "message",
	}, warnings); err != nil {
		return err
	}

	return tx.Commit()
}

// valueColumns names the columns holding one interpreted field: the raw text
// plus the meaning and confidence it was resolved with
func valueColumns(prefix string) []string {
	return []string{prefix + "_raw", prefix + "_meaning", prefix + "_confidence"}
}

func valueArgs(v types.Value) []interface{} {
	return []interface{}{v.Raw, v.Meaning, string(v.Confidence)}
}

// copyRows bulk loads rows with COPY FROM STDIN
func copyRows(tx *sql.Tx, table string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy into %s: %w", table, err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.Exec(row...); err != nil {
			return fmt.Errorf("failed to copy row into %s: %w", table, err)
		}
	}
	if _, err := stmt.Exec(); err != nil {
		return fmt.Errorf("failed to flush copy into %s: %w", table, err)
	}
	return nil
}

// FindByDigest returns the summary of a previously stored decode, or nil
func (c *Client) FindByDigest(digest string) (*types.Summary, error) {
	query := `
		SELECT session_id, digest, stamp, points, samples, warnings,
			max_speed_mps, distance_m, start_utc, end_utc, gps_error, acc_error
		FROM decode_sessions
		WHERE digest = $1
	`
	var (
		s        types.Summary
		startUTC sql.NullTime
		endUTC   sql.NullTime
	)
	err := c.db.QueryRow(query, digest).Scan(
		&s.SessionID, &s.Digest, &s.Stamp, &s.Points, &s.Samples, &s.Warnings,
		&s.MaxSpeedMps, &s.DistanceM, &startUTC, &endUTC, &s.GPSError, &s.AccError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.StartUTC = startUTC.Time
	s.EndUTC = endUTC.Time
	return &s, nil
}

// StoreDecodeStats stores decode statistics
func (c *Client) StoreDecodeStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO decode_stats (
			time, archives_decoded, archives_failed, records_parsed, records_skipped,
			streams_failed, points_emitted, samples_emitted, warnings, kind_counts,
			processing_time_ms, uptime_seconds
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
	`

	kinds := stats["kind_counts"].([6]uint64)
	kindsArray := make([]int64, len(kinds))
	for i, v := range kinds {
		kindsArray[i] = int64(v)
	}

	processingTime := stats["processing_time"].(time.Duration).Milliseconds()
	uptime := stats["uptime"].(time.Duration).Seconds()

	_, err := c.db.Exec(query,
		time.Now(),
		stats["archives_decoded"],
		stats["archives_failed"],
		stats["records_parsed"],
		stats["records_skipped"],
		stats["streams_failed"],
		stats["points_emitted"],
		stats["samples_emitted"],
		stats["warnings"],
		pq.Array(kindsArray),
		processingTime,
		int64(uptime),
	)

	return err
}

// GetDecodeStats retrieves decode statistics for a time range
func (c *Client) GetDecodeStats(start, end time.Time) ([]map[string]interface{}, error) {
	query := `
		SELECT
			time, archives_decoded, archives_failed, records_parsed, records_skipped,
			streams_failed, points_emitted, samples_emitted, warnings, kind_counts,
			processing_time_ms, uptime_seconds
		FROM decode_stats
		WHERE time BETWEEN $1 AND $2
		ORDER BY time DESC
	`

	rows, err := c.db.Query(query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []map[string]interface{}
	for rows.Next() {
		var (
			timestamp        time.Time
			archivesDecoded  int64
			archivesFailed   int64
			recordsParsed    int64
			recordsSkipped   int64
			streamsFailed    int64
			pointsEmitted    int64
			samplesEmitted   int64
			warnings         int64
			kindCounts       []int64
			processingTimeMs int64
			uptimeSeconds    int64
		)

		if err := rows.Scan(
			&timestamp,
			&archivesDecoded,
			&archivesFailed,
			&recordsParsed,
			&recordsSkipped,
			&streamsFailed,
			&pointsEmitted,
			&samplesEmitted,
			&warnings,
			pq.Array(&kindCounts),
			&processingTimeMs,
			&uptimeSeconds,
		); err != nil {
			return nil, err
		}

		kinds := [6]uint64{}
		for i, v := range kindCounts {
			if i < len(kinds) {
				kinds[i] = uint64(v)
			}
		}

		stats = append(stats, map[string]interface{}{
			"time":             timestamp,
			"archives_decoded": archivesDecoded,
			"archives_failed":  archivesFailed,
			"records_parsed":   recordsParsed,
			"records_skipped":  recordsSkipped,
			"streams_failed":   streamsFailed,
			"points_emitted":   pointsEmitted,
			"samples_emitted":  samplesEmitted,
			"warnings":         warnings,
			"kind_counts":      kinds,
			"processing_time":  time.Duration(processingTimeMs) * time.Millisecond,
			"uptime_seconds":   uptimeSeconds,
		})
	}

	return stats, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
