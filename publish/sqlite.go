package publish

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/OriD-19/perf_overlay/aggregator"
)

// SQLite persists window reports for later inspection
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite opens (or creates) the database at dbPath and creates the
// reports table if needed. The caller must Close it.
func NewSQLite(dbPath string, log *zap.Logger) (*SQLite, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLite{db: db, log: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS reports (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    agent_id     TEXT NOT NULL,
    window_start INTEGER NOT NULL,
    window_end   INTEGER NOT NULL,
    samples      INTEGER NOT NULL,
    cpu_ms       REAL NOT NULL,
    gpu_ms       REAL NOT NULL,
    fps          REAL NOT NULL,
    min_frame_ms REAL NOT NULL,
    max_frame_ms REAL NOT NULL,
    p50_frame_ms REAL NOT NULL,
    p95_frame_ms REAL NOT NULL,
    p99_frame_ms REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_window_end ON reports(window_end);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create reports table: %w", err)
	}
	s.log.Debug("sqlite migration applied")
	return nil
}

// Publish implements Sink.
func (s *SQLite) Publish(ctx context.Context, report *aggregator.WindowReport) error {
	return s.Save(ctx, report)
}

// Save stores a single report
func (s *SQLite) Save(ctx context.Context, r *aggregator.WindowReport) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO reports (agent_id, window_start, window_end, samples, cpu_ms, gpu_ms, fps,
                     min_frame_ms, max_frame_ms, p50_frame_ms, p95_frame_ms, p99_frame_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.AgentID, r.WindowStart.UnixNano(), r.WindowEnd.UnixNano(), r.SampleCount,
		r.Metrics.CPUMs, r.Metrics.GPUMs, r.Metrics.FPS,
		r.MinFrameMs, r.MaxFrameMs, r.P50FrameMs, r.P95FrameMs, r.P99FrameMs,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	s.log.Debug("report persisted", zap.Time("window_end", r.WindowEnd), zap.Int("samples", r.SampleCount))
	return nil
}

// Query returns the reports whose window ended in [from, to], oldest first
func (s *SQLite) Query(ctx context.Context, from, to time.Time) ([]aggregator.WindowReport, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT agent_id, window_start, window_end, samples, cpu_ms, gpu_ms, fps,
       min_frame_ms, max_frame_ms, p50_frame_ms, p95_frame_ms, p99_frame_ms
FROM reports
WHERE window_end BETWEEN ? AND ?
ORDER BY window_end ASC, id ASC`, from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var out []aggregator.WindowReport
	for rows.Next() {
		var (
			r          aggregator.WindowReport
			start, end int64
		)
		if err := rows.Scan(&r.AgentID, &start, &end, &r.SampleCount,
			&r.Metrics.CPUMs, &r.Metrics.GPUMs, &r.Metrics.FPS,
			&r.MinFrameMs, &r.MaxFrameMs, &r.P50FrameMs, &r.P95FrameMs, &r.P99FrameMs); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		r.WindowStart = time.Unix(0, start)
		r.WindowEnd = time.Unix(0, end)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// Close shuts down the database connection
func (s *SQLite) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
