// Package metrics records engine telemetry in sqlite: turn latencies,
// analysis outcomes, research spend, sleep quality. The dashboard
// reads aggregates; nothing in the consciousness path depends on it.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lyralabs/lyra/pkg/clock"
)

// Metric names the engine emits.
const (
	MetricTurnLatencyMS    = "turn_latency_ms"
	MetricAnalysisApplied  = "analysis_applied"
	MetricAnalysisFailed   = "analysis_failed"
	MetricResearchCredits  = "research_credits_used"
	MetricSleepQuality     = "sleep_quality"
	MetricDreamsGenerated  = "dreams_generated"
	MetricRitualInvocation = "ritual_invocation"
)

// Store persists metric points. Timestamps come from the engine clock
// so tests and the rest of the system share one time source.
type Store struct {
	db    *sql.DB
	clock *clock.Service
}

// Open creates/opens the telemetry database at path.
func Open(path string, clk *clock.Service) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create metrics db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	// Single process writes telemetry. One shared connection avoids
	// writer lock contention under concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, clock: clk}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS engine_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			metric TEXT NOT NULL,
			value REAL NOT NULL,
			labels_json TEXT NOT NULL DEFAULT '{}',
			created_at_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS engine_metrics_metric_idx ON engine_metrics(metric, created_at_ms DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init metrics schema: %w", err)
		}
	}
	return nil
}

// AddMetric records one point.
func (s *Store) AddMetric(ctx context.Context, metric string, value float64, labels map[string]string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO engine_metrics(metric, value, labels_json, created_at_ms)
VALUES(?, ?, ?, ?)`, metric, value, encodeLabels(labels), s.clock.NowMilli())
	if err != nil {
		return fmt.Errorf("add metric: %w", err)
	}
	return nil
}

// Point is one recorded metric sample.
type Point struct {
	Metric      string
	Value       float64
	Labels      map[string]string
	CreatedAtMS int64
}

// Recent returns the newest points for a metric, newest first.
func (s *Store) Recent(ctx context.Context, metric string, limit int) ([]Point, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT metric, value, labels_json, created_at_ms
FROM engine_metrics
WHERE metric = ?
ORDER BY created_at_ms DESC, id DESC
LIMIT ?`, metric, limit)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var p Point
		var labels string
		if err := rows.Scan(&p.Metric, &p.Value, &labels, &p.CreatedAtMS); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		p.Labels = decodeLabels(labels)
		out = append(out, p)
	}
	return out, rows.Err()
}

// Summary aggregates one metric over a trailing window.
type Summary struct {
	Count int
	Sum   float64
	Avg   float64
	Max   float64
}

// Summarize aggregates a metric over the last window duration.
func (s *Store) Summarize(ctx context.Context, metric string, window time.Duration) (Summary, error) {
	since := s.clock.NowMilli() - window.Milliseconds()
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(value),0), COALESCE(AVG(value),0), COALESCE(MAX(value),0)
FROM engine_metrics
WHERE metric = ? AND created_at_ms >= ?`, metric, since)

	var sum Summary
	if err := row.Scan(&sum.Count, &sum.Sum, &sum.Avg, &sum.Max); err != nil {
		return Summary{}, fmt.Errorf("summarize metric: %w", err)
	}
	return sum, nil
}

// Prune drops points older than the retention window.
func (s *Store) Prune(ctx context.Context, retain time.Duration) error {
	cutoff := s.clock.NowMilli() - retain.Milliseconds()
	_, err := s.db.ExecContext(ctx, `DELETE FROM engine_metrics WHERE created_at_ms < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("prune metrics: %w", err)
	}
	return nil
}

func encodeLabels(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(m))
	for _, k := range keys {
		ordered[k] = m[k]
	}
	raw, err := json.Marshal(ordered)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func decodeLabels(raw string) map[string]string {
	if raw == "" || raw == "{}" {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
