package ledger

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"tradeview/internal/model"
)

// SQLiteStore persists the ledger to a single local SQLite database. One
// mutex covers RecordTrade and Reset so a trade write and a reset can never
// interleave.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database, runs migrations and seeds
// the starting cash if the account row is absent.
func NewSQLiteStore(dbPath string, defaultCash float64) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL keeps reads cheap while the session writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(defaultCash); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] ledger opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate(defaultCash float64) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			ts_utc     TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			side       TEXT NOT NULL CHECK(side IN ('BUY','SELL')),
			qty        REAL NOT NULL CHECK(qty > 0),
			price      REAL NOT NULL CHECK(price > 0),
			order_type TEXT NOT NULL,
			note       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_utc)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key='initial_cash'`).Scan(&v)
	if err == sql.ErrNoRows {
		_, err = s.db.Exec(`INSERT INTO meta(key,value) VALUES('initial_cash', ?)`,
			strconv.FormatFloat(defaultCash, 'g', -1, 64))
	}
	return err
}

// RecordTrade validates the trade, checks the sell side against the held
// quantity and appends it in a single committed transaction. The returned id
// is assigned by SQLite and is monotonic.
func (s *SQLiteStore) RecordTrade(t model.Trade) (int64, error) {
	if err := ValidateTrade(t); err != nil {
		return 0, err
	}
	if t.Time.IsZero() {
		t.Time = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if t.Side == model.SideSell {
		var held float64
		err := tx.QueryRow(
			`SELECT COALESCE(SUM(CASE WHEN side='BUY' THEN qty ELSE -qty END), 0)
			 FROM trades WHERE symbol = ?`, t.Symbol).Scan(&held)
		if err != nil {
			return 0, fmt.Errorf("sum position: %w", err)
		}
		if t.Quantity > held+1e-9 {
			return 0, fmt.Errorf("sell %g %s with %g held: %w",
				t.Quantity, t.Symbol, held, ErrInsufficientPosition)
		}
	}

	res, err := tx.Exec(
		`INSERT INTO trades(ts_utc, symbol, side, qty, price, order_type, note)
		 VALUES (?,?,?,?,?,?,?)`,
		t.Time.UTC().Format(time.RFC3339), t.Symbol, string(t.Side),
		t.Quantity, t.Price, string(t.OrderType), t.Note,
	)
	if err != nil {
		return 0, fmt.Errorf("insert trade: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("trade id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit trade: %w", err)
	}
	return id, nil
}

// ListTrades returns trades ordered by timestamp then id.
func (s *SQLiteStore) ListTrades(symbol string) ([]model.Trade, error) {
	query := `SELECT id, ts_utc, symbol, side, qty, price, order_type, COALESCE(note,'')
	          FROM trades`
	args := []interface{}{}
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY ts_utc ASC, id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		var t model.Trade
		var ts, side, orderType string
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &side, &t.Quantity, &t.Price, &orderType, &t.Note); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Time, err = time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse trade timestamp %q: %w", ts, err)
		}
		t.Side = model.Side(side)
		t.OrderType = model.OrderType(orderType)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Reset removes all trades and reinitializes starting cash in one
// transaction. The id sequence restarts as well, matching a fresh ledger.
func (s *SQLiteStore) Reset(startingCash float64) error {
	if startingCash < 0 {
		return fmt.Errorf("starting cash must not be negative, got %v", startingCash)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM trades`); err != nil {
		return fmt.Errorf("clear trades: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sqlite_sequence WHERE name='trades'`); err != nil {
		return fmt.Errorf("reset id sequence: %w", err)
	}
	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('initial_cash', ?)`,
		strconv.FormatFloat(startingCash, 'g', -1, 64)); err != nil {
		return fmt.Errorf("set initial cash: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	log.Printf("[INFO] ledger reset, starting cash %.2f", startingCash)
	return nil
}

// InitialCash returns the configured starting cash.
func (s *SQLiteStore) InitialCash() (float64, error) {
	var v string
	if err := s.db.QueryRow(`SELECT value FROM meta WHERE key='initial_cash'`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read initial cash: %w", err)
	}
	cash, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse initial cash %q: %w", v, err)
	}
	return cash, nil
}

// SetInitialCash updates starting cash without touching trades.
func (s *SQLiteStore) SetInitialCash(v float64) error {
	if v < 0 {
		return fmt.Errorf("starting cash must not be negative, got %v", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('initial_cash', ?)`,
		strconv.FormatFloat(v, 'g', -1, 64))
	if err != nil {
		return fmt.Errorf("set initial cash: %w", err)
	}
	return nil
}

// Cash returns starting cash plus all signed trade flows.
func (s *SQLiteStore) Cash() (float64, error) {
	initial, err := s.InitialCash()
	if err != nil {
		return 0, err
	}
	var flow float64
	err = s.db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN side='BUY' THEN -qty*price ELSE qty*price END), 0)
		 FROM trades`).Scan(&flow)
	if err != nil {
		return 0, fmt.Errorf("sum cash flow: %w", err)
	}
	return initial + flow, nil
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing ledger")
	return s.db.Close()
}
