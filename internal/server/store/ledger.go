package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

var ErrEmptyRecord = errors.New("round record has no results")

// RoundRecord 表示帳本中一筆已結束的回合
type RoundRecord struct {
	RoomID     string         `json:"roomId"`
	RoomName   string         `json:"roomName"`
	Round      int            `json:"round"`
	Revolution bool           `json:"revolution"`
	PlayedAt   time.Time      `json:"playedAt"`
	Results    []PlayerResult `json:"results"`
}

type PlayerResult struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Score    int    `json:"score"`
	Total    int    `json:"total"`
}

func (r RoundRecord) validate() error {
	if len(r.Results) == 0 {
		return ErrEmptyRecord
	}
	if r.RoomID == "" {
		return fmt.Errorf("round record has no room id")
	}
	return nil
}

// Ledger 記錄已結束的回合
type Ledger interface {
	RecordRound(ctx context.Context, rec RoundRecord) error
	Recent(ctx context.Context, limit int) ([]RoundRecord, error)
	Close() error
}

// Open 依 mode 建立帳本：memory、sqlite（位於 dataDir）或 postgres（dsn）
func Open(ctx context.Context, mode, dataDir, dsn string) (Ledger, error) {
	switch mode {
	case "memory":
		return NewMemory(), nil
	case "sqlite", "":
		return New(filepath.Join(dataDir, "dalmuti.db"))
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown ledger mode %q", mode)
	}
}

// Memory 將紀錄保存在記憶體中
type Memory struct {
	mu      sync.Mutex
	records []RoundRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RecordRound(_ context.Context, rec RoundRecord) error {
	if err := rec.validate(); err != nil {
		return err
	}
	rec.Results = append([]PlayerResult(nil), rec.Results...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]RoundRecord, error) {
	limit = normalizeLimit(limit)
	m.mu.Lock()
	out := append([]RoundRecord(nil), m.records...)
	m.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].PlayedAt.After(out[j].PlayedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}
