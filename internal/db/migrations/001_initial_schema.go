package migrations

import "time"

// InitialSchema creates the decoded session tables
var InitialSchema = &Migration{
	ID:   "001_initial_schema",
	Name: "001_initial_schema",
	UpSQL: `
		-- One row per decoded archive
		CREATE TABLE IF NOT EXISTS decode_sessions (
			session_id UUID PRIMARY KEY,
			digest TEXT NOT NULL UNIQUE,
			archive_name TEXT NOT NULL,
			stamp TEXT NOT NULL,
			captured_at TIMESTAMP,
			username TEXT,
			format_version TEXT,
			app_version TEXT,
			device_id TEXT[],
			points INTEGER NOT NULL,
			samples INTEGER NOT NULL,
			warnings INTEGER NOT NULL,
			max_speed_mps DOUBLE PRECISION NOT NULL,
			distance_m DOUBLE PRECISION NOT NULL,
			start_utc TIMESTAMPTZ,
			end_utc TIMESTAMPTZ,
			gps_error TEXT,
			acc_error TEXT,
			decoded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		-- Raw text is kept for every field whose meaning is unconfirmed
		CREATE TABLE IF NOT EXISTS track_points (
			session_id UUID NOT NULL REFERENCES decode_sessions (session_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			utc TIMESTAMPTZ NOT NULL,
			local TIMESTAMP NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			elevation_m DOUBLE PRECISION NOT NULL,
			speed_mps DOUBLE PRECISION NOT NULL,
			heading_raw TEXT,
			heading_meaning TEXT,
			heading_confidence TEXT NOT NULL,
			field2_raw TEXT,
			field2_meaning TEXT,
			field2_confidence TEXT NOT NULL,
			field3_raw TEXT,
			field3_meaning TEXT,
			field3_confidence TEXT NOT NULL,
			from_anchor BOOLEAN NOT NULL,
			line INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		CREATE TABLE IF NOT EXISTS accel_samples (
			session_id UUID NOT NULL REFERENCES decode_sessions (session_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			local TIMESTAMP NOT NULL,
			x_raw TEXT,
			x_meaning TEXT,
			x_confidence TEXT NOT NULL,
			y_raw TEXT,
			y_meaning TEXT,
			y_confidence TEXT NOT NULL,
			z_raw TEXT,
			z_meaning TEXT,
			z_confidence TEXT NOT NULL,
			elapsed_ms BIGINT NOT NULL,
			line INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		CREATE TABLE IF NOT EXISTS decode_warnings (
			session_id UUID NOT NULL REFERENCES decode_sessions (session_id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			stream TEXT NOT NULL,
			line INTEGER,
			code TEXT NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (session_id, seq)
		);

		-- Create statistics table
		CREATE TABLE IF NOT EXISTS decode_stats (
			time TIMESTAMPTZ NOT NULL,
			archives_decoded BIGINT NOT NULL,
			archives_failed BIGINT NOT NULL,
			records_parsed BIGINT NOT NULL,
			records_skipped BIGINT NOT NULL,
			streams_failed BIGINT NOT NULL,
			points_emitted BIGINT NOT NULL,
			samples_emitted BIGINT NOT NULL,
			warnings BIGINT NOT NULL,
			kind_counts BIGINT[] NOT NULL,
			processing_time_ms BIGINT NOT NULL,
			uptime_seconds BIGINT NOT NULL
		);
	`,
	DownSQL: `
		DROP TABLE IF EXISTS decode_stats;
		DROP TABLE IF EXISTS decode_warnings;
		DROP TABLE IF EXISTS accel_samples;
		DROP TABLE IF EXISTS track_points;
		DROP TABLE IF EXISTS decode_sessions;
	`,
	CreatedAt: time.Now(),
}
