package config

import (
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"termsweeper/game"
)

// Config は設定ファイル全体です
type Config struct {
	Game   GameConfig   `mapstructure:"game"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

type GameConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Mines  int    `mapstructure:"mines"`
	Seed   uint64 `mapstructure:"seed"` // 0 なら現在時刻
	// MaxCells は width*height の上限。0 なら game.MaxCells
	MaxCells int `mapstructure:"max_cells"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	StaticDir       string        `mapstructure:"static_dir"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RateLimit       int           `mapstructure:"rate_limit"`
	RateWindow      time.Duration `mapstructure:"rate_window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game.width", 10)
	v.SetDefault("game.height", 10)
	v.SetDefault("game.mines", 10)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.max_cells", 10000)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.max_sessions", 100)
	v.SetDefault("server.session_ttl", "30m")
	v.SetDefault("server.cleanup_interval", "1m")
	v.SetDefault("server.rate_limit", 100)
	v.SetDefault("server.rate_window", "1m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load は設定を読み込みます
// path が空ならデフォルト値と環境変数 (SWEEPER_GAME_WIDTH など) だけを使います
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SWEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は game.New の条件に加えて max_cells で盤面の大きさを検査します
func (c *Config) Validate() error {
	return c.Game.Validate()
}

func (g GameConfig) Validate() error {
	if g.MaxCells < 0 || g.MaxCells > game.MaxCells {
		return errors.Errorf("game.max_cells=%d not in 0..%d", g.MaxCells, game.MaxCells)
	}
	if g.Width < 1 || g.Height < 1 {
		return errors.Wrapf(game.ErrInvalidDimensions, "game %dx%d", g.Width, g.Height)
	}
	if limit := g.cellLimit(); g.Width > limit/g.Height {
		return errors.Wrapf(game.ErrInvalidDimensions, "game %dx%d exceeds %d cells", g.Width, g.Height, limit)
	}
	if g.Mines < 0 || g.Mines > g.Width*g.Height {
		return errors.Wrapf(game.ErrTooManyMines, "game.mines=%d on %dx%d", g.Mines, g.Width, g.Height)
	}
	return nil
}

func (g GameConfig) cellLimit() int {
	if g.MaxCells == 0 {
		return game.MaxCells
	}
	return g.MaxCells
}

// NewRand は Seed から乱数生成器を作ります
func (g GameConfig) NewRand() *rand.Rand {
	seed := g.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed>>1))
}

// NewLogger は log セクションから logrus のロガーを作ります
func NewLogger(c LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log.level")
	}
	logger.SetLevel(level)

	switch strings.ToLower(c.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("log.format: unknown format %q", c.Format)
	}
	return logger, nil
}
