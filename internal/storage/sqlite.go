package storage

import (
	"database/sql"
	"time"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

type DB interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Store persists the analyze request log so usage stays visible
// across restarts.
type Store struct{ db DB }

func OpenSQLite(dsn string) (DB, error) {
	return sql.Open("sqlite3", dsn)
}

func InitSchema(db DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS analyze_requests(
		ticker TEXT, username TEXT, tier TEXT, outcome TEXT, error_kind TEXT, ts INTEGER
	)`)
	return err
}

func NewStore(db DB) *Store { return &Store{db: db} }

// LogRequest records one analyze request. outcome is "ok" or "error",
// errorKind is empty on success, tier names which cache tier served.
func (s *Store) LogRequest(ticker, username, tier, outcome, errorKind string, ts time.Time) error {
	_, err := s.db.Exec(`INSERT INTO analyze_requests(ticker,username,tier,outcome,error_kind,ts) VALUES(?,?,?,?,?,?)`,
		ticker, username, tier, outcome, errorKind, ts.Unix())
	return err
}

// TickerCount is one row of the usage breakdown.
type TickerCount struct {
	Ticker string
	Count  int
}

// TopTickers returns the most analyzed tickers since the given time.
func (s *Store) TopTickers(since time.Time, limit int) ([]TickerCount, error) {
	rows, err := s.db.Query(`SELECT ticker, COUNT(*) AS n FROM analyze_requests
		WHERE ts>=? AND outcome='ok' GROUP BY ticker ORDER BY n DESC LIMIT ?`,
		since.Unix(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickerCount
	for rows.Next() {
		var tc TickerCount
		if err := rows.Scan(&tc.Ticker, &tc.Count); err == nil && tc.Ticker != "" {
			out = append(out, tc)
		}
	}
	return out, nil
}

// Stats summarizes the request log since the given time.
type Stats struct {
	Total    int
	Errors   int
	ByTier   map[string]int
	ByErrVal map[string]int
}

func (s *Store) StatsSince(since time.Time) (*Stats, error) {
	st := &Stats{ByTier: map[string]int{}, ByErrVal: map[string]int{}}

	rows, err := s.db.Query(`SELECT tier, outcome, error_kind FROM analyze_requests WHERE ts>=?`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tier, outcome, kind string
		if err := rows.Scan(&tier, &outcome, &kind); err != nil {
			continue
		}
		st.Total++
		if outcome != "ok" {
			st.Errors++
			if kind != "" {
				st.ByErrVal[kind]++
			}
			continue
		}
		st.ByTier[tier]++
	}
	return st, nil
}
