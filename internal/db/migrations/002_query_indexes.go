package migrations

// QueryIndexes adds lookup indexes and a daily statistics view
var QueryIndexes = &Migration{
	ID:   "002_query_indexes",
	Name: "002_query_indexes",
	UpSQL: `
	CREATE INDEX IF NOT EXISTS idx_decode_sessions_captured_at ON decode_sessions (captured_at);
	CREATE INDEX IF NOT EXISTS idx_decode_sessions_device_id ON decode_sessions USING GIN (device_id);
	CREATE INDEX IF NOT EXISTS idx_decode_warnings_code ON decode_warnings (code);
	CREATE INDEX IF NOT EXISTS idx_decode_stats_time ON decode_stats (time DESC);

	CREATE OR REPLACE VIEW decode_stats_daily AS
	SELECT
		date_trunc('day', time) AS day,
		MAX(archives_decoded) AS archives_decoded,
		MAX(archives_failed) AS archives_failed,
		MAX(records_parsed) AS records_parsed,
		MAX(records_skipped) AS records_skipped,
		MAX(streams_failed) AS streams_failed
	FROM decode_stats
	GROUP BY day;
	`,
	DownSQL: `
	DROP VIEW IF EXISTS decode_stats_daily;
	DROP INDEX IF EXISTS idx_decode_stats_time;
	DROP INDEX IF EXISTS idx_decode_warnings_code;
	DROP INDEX IF EXISTS idx_decode_sessions_device_id;
	DROP INDEX IF EXISTS idx_decode_sessions_captured_at;
	`,
}
