package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"dalmuti/internal/game"
)

// Server 保存程序設定。每個旗標依序退回環境變數與內建預設值
type Server struct {
	Addr        string
	WebDir      string
	DataDir     string
	Ledger      string
	DatabaseDSN string
	GameConfig  string
	Debug       bool
}

// ParseServer 從 args（不含程式名稱）讀取設定
func ParseServer(args []string) (Server, error) {
	var s Server
	fs := flag.NewFlagSet("dalmuti", flag.ContinueOnError)
	fs.StringVar(&s.Addr, "addr", envString("DALMUTI_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&s.WebDir, "web", envString("DALMUTI_WEB_DIR", "web"), "static web assets directory")
	fs.StringVar(&s.DataDir, "data", envString("DALMUTI_DATA_DIR", "data"), "data directory for the sqlite ledger")
	fs.StringVar(&s.Ledger, "ledger", envString("DALMUTI_LEDGER", "sqlite"), "results ledger: memory, sqlite or postgres")
	fs.StringVar(&s.DatabaseDSN, "dsn", envString("DALMUTI_DATABASE_DSN", ""), "postgres DSN for the postgres ledger")
	fs.StringVar(&s.GameConfig, "game-config", envString("DALMUTI_GAME_CONFIG", ""), "optional game config JSON file")
	fs.BoolVar(&s.Debug, "debug", envBool("DALMUTI_DEBUG", false), "development logging")
	if err := fs.Parse(args); err != nil {
		return Server{}, err
	}
	s.Ledger = strings.ToLower(strings.TrimSpace(s.Ledger))
	switch s.Ledger {
	case "memory", "sqlite", "postgres":
	default:
		return Server{}, fmt.Errorf("unknown ledger mode %q", s.Ledger)
	}
	if s.Ledger == "postgres" && strings.TrimSpace(s.DatabaseDSN) == "" {
		return Server{}, fmt.Errorf("postgres ledger needs -dsn or DALMUTI_DATABASE_DSN")
	}
	return s, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

// GameConfig 調整房間節奏與遊戲規則表
type GameConfig struct {
	TurnDurationSeconds int        `json:"turn_duration_seconds"`
	RoundDelaySeconds   int        `json:"round_delay_seconds"`
	AbandonAfterSeconds int        `json:"abandon_after_seconds"`
	TimerEnabled        bool       `json:"timer_enabled"`
	Rules               game.Rules `json:"rules"`
}

func DefaultGameConfig() *GameConfig {
	return &GameConfig{
		TurnDurationSeconds: 30,
		RoundDelaySeconds:   5,
		AbandonAfterSeconds: 600,
		TimerEnabled:        true,
		Rules:               game.DefaultRules(),
	}
}

// LoadGameConfig 以預設值為基礎讀取 path，規則表中的項目會取代同人數的預設項目。
// path 為空時直接回傳預設值
func LoadGameConfig(path string) (*GameConfig, error) {
	cfg := DefaultGameConfig()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read game config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
		}
	}
	if cfg.TurnDurationSeconds <= 0 || cfg.RoundDelaySeconds < 0 || cfg.AbandonAfterSeconds <= 0 {
		return nil, fmt.Errorf("game config durations must be positive")
	}
	if err := cfg.Rules.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *GameConfig) TurnDuration() time.Duration {
	return time.Duration(c.TurnDurationSeconds) * time.Second
}

func (c *GameConfig) RoundDelay() time.Duration {
	return time.Duration(c.RoundDelaySeconds) * time.Second
}

func (c *GameConfig) AbandonAfter() time.Duration {
	return time.Duration(c.AbandonAfterSeconds) * time.Second
}
