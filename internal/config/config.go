package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/iamasit07/hextron/backend/internal/domain"
)

type Config struct {
	Port           string   `env:"PORT" envDefault:"8002"`
	LogLevel       string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string   `env:"LOG_FORMAT" envDefault:"text"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:","`

	DatabaseURL          string `env:"DATABASE_URL"`
	DBMaxOpenConns       int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns       int    `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	DBConnMaxLifetimeMin int    `env:"DB_CONN_MAX_LIFETIME_MINUTES" envDefault:"5"`

	RedisURL      string        `env:"REDIS_URL"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	LiveMatchTTL  time.Duration `env:"LIVE_MATCH_TTL" envDefault:"10m"`

	MatchmakingTimeout time.Duration `env:"MATCHMAKING_TIMEOUT" envDefault:"5m"`
	CleanupInterval    time.Duration `env:"CLEANUP_INTERVAL" envDefault:"30s"`

	Game GameSettings
}

// GameSettings shapes every match the server creates.
type GameSettings struct {
	Rows          int           `env:"GAME_ROWS" envDefault:"20"`
	Cols          int           `env:"GAME_COLS" envDefault:"30"`
	Rounds        int           `env:"GAME_ROUNDS" envDefault:"3"`
	Players       int           `env:"GAME_PLAYERS" envDefault:"2"`
	ChoiceTimeout time.Duration `env:"GAME_CHOICE_TIMEOUT" envDefault:"250ms"`
	SetupTimeout  time.Duration `env:"GAME_SETUP_TIMEOUT" envDefault:"1s"`
	BotDifficulty string        `env:"BOT_DIFFICULTY" envDefault:"medium"`
}

func (g GameSettings) Validate() error {
	switch {
	case g.Rows < 1 || g.Cols < 3:
		return fmt.Errorf("board %dx%d is too small", g.Rows, g.Cols)
	case g.Rounds < 1:
		return fmt.Errorf("rounds must be positive, got %d", g.Rounds)
	case g.Players < 1 || g.Players > domain.MaxPlayers(g.Rows):
		return fmt.Errorf("%d players do not fit %d rows (max %d)", g.Players, g.Rows, domain.MaxPlayers(g.Rows))
	case g.ChoiceTimeout <= 0 || g.SetupTimeout <= 0:
		return errors.New("timeouts must be positive")
	}
	if _, ok := domain.BotNames[g.BotDifficulty]; !ok {
		return fmt.Errorf("unknown bot difficulty %q", g.BotDifficulty)
	}
	return nil
}

var AppConfig *Config

// LoadConfig reads .env when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("[CONFIG] Could not read .env: %v", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Game.Validate(); err != nil {
		return nil, fmt.Errorf("game settings: %w", err)
	}

	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)
	cfg.DatabaseURL = withSimpleProtocol(cfg.DatabaseURL)

	AppConfig = cfg
	return cfg, nil
}

func normalizeOrigins(origins []string) []string {
	out := []string{"http://localhost:5173"} // local development
	for _, origin := range origins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Append simple_protocol for PgBouncer compatibility (pgx driver)
func withSimpleProtocol(dsn string) string {
	if dsn == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	q := u.Query()
	if q.Get("default_query_exec_mode") == "" {
		q.Set("default_query_exec_mode", "simple_protocol")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
