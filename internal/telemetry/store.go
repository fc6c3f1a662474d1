package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// maxZeroResultRows bounds the persisted zero-result history.
const maxZeroResultRows = 100

// Kinds of rows kept in daily_counts.
const (
	kindQueryType = "query_type"
	kindLatency   = "latency"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_counts (
	day  TEXT    NOT NULL,
	kind TEXT    NOT NULL,
	key  TEXT    NOT NULL,
	n    INTEGER NOT NULL,
	PRIMARY KEY (day, kind, key)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS term_counts (
	term      TEXT    PRIMARY KEY,
	n         INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS term_counts_by_n ON term_counts(n DESC);

CREATE TABLE IF NOT EXISTS zero_result_queries (
	seq   INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT    NOT NULL,
	at    INTEGER NOT NULL
);
`

// SQLiteMetricsStore implements QueryMetricsStore on a local SQLite file.
type SQLiteMetricsStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteMetricsStore opens the telemetry database at path, creating
// the file and its tables on first use.
func OpenSQLiteMetricsStore(path string) (*SQLiteMetricsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open telemetry database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create telemetry schema: %w", err)
	}
	return &SQLiteMetricsStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteMetricsStore) Path() string { return s.path }

// SaveBatch adds one flush worth of increments in a single transaction.
// Either all of b lands or none of it does.
func (s *SQLiteMetricsStore) SaveBatch(day string, b Batch) error {
	if b.Empty() {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		if err := addDaily(tx, day, kindQueryType, b.QueryTypes); err != nil {
			return err
		}
		if err := addDaily(tx, day, kindLatency, b.Latencies); err != nil {
			return err
		}
		if err := addTerms(tx, b.Terms, time.Now().Unix()); err != nil {
			return err
		}
		return addZeroResults(tx, b.ZeroResults)
	})
}

func (s *SQLiteMetricsStore) inTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin telemetry write: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit telemetry write: %w", err)
	}
	return nil
}

func addDaily[K ~string](tx *sql.Tx, day, kind string, counts map[K]int64) error {
	if len(counts) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO daily_counts (day, kind, key, n) VALUES (?, ?, ?, ?)
		ON CONFLICT (day, kind, key) DO UPDATE SET n = n + excluded.n`)
	if err != nil {
		return fmt.Errorf("prepare %s counts: %w", kind, err)
	}
	defer stmt.Close()

	for k, n := range counts {
		if _, err := stmt.Exec(day, kind, string(k), n); err != nil {
			return fmt.Errorf("save %s %q: %w", kind, k, err)
		}
	}
	return nil
}

func addTerms(tx *sql.Tx, terms map[string]int64, now int64) error {
	if len(terms) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO term_counts (term, n, last_seen) VALUES (?, ?, ?)
		ON CONFLICT (term) DO UPDATE SET n = n + excluded.n, last_seen = excluded.last_seen`)
	if err != nil {
		return fmt.Errorf("prepare term counts: %w", err)
	}
	defer stmt.Close()

	for term, n := range terms {
		if _, err := stmt.Exec(term, n, now); err != nil {
			return fmt.Errorf("save term %q: %w", term, err)
		}
	}
	return nil
}

func addZeroResults(tx *sql.Tx, events []QueryEvent) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if _, err := tx.Exec(`INSERT INTO zero_result_queries (query, at) VALUES (?, ?)`,
			e.Query, e.Timestamp.Unix()); err != nil {
			return fmt.Errorf("save zero-result query: %w", err)
		}
	}
	_, err := tx.Exec(`DELETE FROM zero_result_queries
		WHERE seq <= (SELECT MAX(seq) FROM zero_result_queries) - ?`, maxZeroResultRows)
	if err != nil {
		return fmt.Errorf("trim zero-result queries: %w", err)
	}
	return nil
}

// GetQueryTypeCounts sums query type counts for days in [from, to].
func (s *SQLiteMetricsStore) GetQueryTypeCounts(from, to string) (map[QueryType]int64, error) {
	return sumDaily[QueryType](s.db, kindQueryType, from, to)
}

// GetLatencyCounts sums latency bucket counts for days in [from, to].
func (s *SQLiteMetricsStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	return sumDaily[LatencyBucket](s.db, kindLatency, from, to)
}

func sumDaily[K ~string](db *sql.DB, kind, from, to string) (map[K]int64, error) {
	rows, err := db.Query(`SELECT key, SUM(n) FROM daily_counts
		WHERE kind = ? AND day >= ? AND day <= ? GROUP BY key`, kind, from, to)
	if err != nil {
		return nil, fmt.Errorf("query %s counts: %w", kind, err)
	}
	defer rows.Close()

	out := make(map[K]int64)
	for rows.Next() {
		var (
			key string
			n   int64
		)
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("scan %s counts: %w", kind, err)
		}
		out[K(key)] = n
	}
	return out, rows.Err()
}

// GetTopTerms returns the most frequent terms, ties broken alphabetically.
func (s *SQLiteMetricsStore) GetTopTerms(limit int) ([]TermCount, error) {
	rows, err := s.db.Query(`SELECT term, n FROM term_counts ORDER BY n DESC, term LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query top terms: %w", err)
	}
	defer rows.Close()

	var out []TermCount
	for rows.Next() {
		var tc TermCount
		if err := rows.Scan(&tc.Term, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan top terms: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// GetZeroResultQueries returns up to limit zero-result queries, newest first.
func (s *SQLiteMetricsStore) GetZeroResultQueries(limit int) ([]string, error) {
	rows, err := s.db.Query(`SELECT query FROM zero_result_queries ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query zero-result queries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan zero-result queries: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *SQLiteMetricsStore) Close() error {
	return s.db.Close()
}
