package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const defaultRecentLimit = 20

// Store 是以 SQL 儲存的成績帳本，支援 sqlite 與 postgres
type Store struct {
	db       *sql.DB
	postgres bool
}

// New 開啟（必要時建立）dbPath 的 sqlite 帳本
func New(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgres 連線至 postgres 帳本並確保資料表存在
func NewPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db, postgres: true}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.postgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS rounds (
  ` + idColumn + `,
  room_id TEXT NOT NULL,
  room_name TEXT NOT NULL,
  round INTEGER NOT NULL,
  revolution BOOLEAN NOT NULL DEFAULT FALSE,
  played_at TIMESTAMP NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS round_results (
  round_id BIGINT NOT NULL REFERENCES rounds(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  name TEXT NOT NULL,
  role TEXT NOT NULL,
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  PRIMARY KEY (round_id, position)
)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_played_at ON rounds(played_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// rebind 將 ? 佔位符改寫為 postgres 格式
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) RecordRound(ctx context.Context, rec RoundRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var roundID int64
	insert := `INSERT INTO rounds(room_id, room_name, round, revolution, played_at) VALUES(?, ?, ?, ?, ?)`
	args := []any{rec.RoomID, rec.RoomName, rec.Round, rec.Revolution, rec.PlayedAt.UTC()}
	if s.postgres {
		if err := tx.QueryRowContext(ctx, s.rebind(insert+` RETURNING id`), args...).Scan(&roundID); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, insert, args...)
		if err != nil {
			return fmt.Errorf("insert round: %w", err)
		}
		if roundID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("round id: %w", err)
		}
	}

	for _, r := range rec.Results {
		if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO round_results(round_id, position, name, role, score, total) VALUES(?, ?, ?, ?, ?, ?)`),
			roundID, r.Position, r.Name, r.Role, r.Score, r.Total); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent 由新到舊回傳最近的回合
func (s *Store) Recent(ctx context.Context, limit int) ([]RoundRecord, error) {
	limit = normalizeLimit(limit)
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id, room_id, room_name, round, revolution, played_at FROM rounds ORDER BY played_at DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	var (
		records []RoundRecord
		ids     []int64
	)
	for rows.Next() {
		var (
			id  int64
			rec RoundRecord
		)
		if err := rows.Scan(&id, &rec.RoomID, &rec.RoomName, &rec.Round, &rec.Revolution, &rec.PlayedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan round: %w", err)
		}
		ids = append(ids, id)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	_ = rows.Close()

	for i, id := range ids {
		results, err := s.results(ctx, id)
		if err != nil {
			return nil, err
		}
		records[i].Results = results
	}
	return records, nil
}

func (s *Store) results(ctx context.Context, roundID int64) ([]PlayerResult, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT position, name, role, score, total FROM round_results WHERE round_id = ? ORDER BY position`), roundID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()
	var out []PlayerResult
	for rows.Next() {
		var r PlayerResult
		if err := rows.Scan(&r.Position, &r.Name, &r.Role, &r.Score, &r.Total); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > 200 {
		return 200
	}
	return limit
}
