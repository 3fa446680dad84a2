package config

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
)

type CacheBackend = string

var (
	MemoryBackend = CacheBackend("memory")
	SQLiteBackend = CacheBackend("sqlite")
	RedisBackend  = CacheBackend("redis")
)

const baseCfgPath = "subfeed/config.toml"

type Config struct {
	Env          string          `toml:"env"` // "dev" or "prod"
	LogLevel     string          `toml:"log_level"`
	DatabasePath string          `toml:"database_path"` // Subscriptions database
	Cache        CacheConfig     `toml:"cache"`
	Fetch        FetchConfig     `toml:"fetch"`
	Feed         FeedConfig      `toml:"feed"`
	Filter       ShortFormFilter `toml:"filter"`
	Server       ServerConfig    `toml:"server"`
}

type CacheConfig struct {
	Backend        CacheBackend `toml:"backend"`
	BaseTTL        Duration     `toml:"base_ttl"`
	SplayMax       Duration     `toml:"splay_max"`       // Upper bound of the random extra lifetime
	StaleRetention Duration     `toml:"stale_retention"` // How long expired entries remain servable on fetch failure
	RedisURL       string       `toml:"redis_url"`
	DatabasePath   string       `toml:"database_path"` // Used by the sqlite backend
}

type FetchConfig struct {
	URLTemplate   string   `toml:"url_template"`
	Timeout       Duration `toml:"timeout"`
	Retries       uint64   `toml:"retries"`
	RetryInterval Duration `toml:"retry_interval"`
	HostInterval  Duration `toml:"host_interval"`
	Concurrency   int      `toml:"concurrency"` // Simultaneous upstream fetches per request
	UserAgent     string   `toml:"user_agent"`
}

type FeedConfig struct {
	IncludeShorts   bool `toml:"include_shorts"`
	PageSizeDefault int  `toml:"page_size_default"`
	PageSizeMax     int  `toml:"page_size_max"`
}

// ShortFormFilter defines how short-form videos are recognised
type ShortFormFilter struct {
	LinkMarker    string   `toml:"link_marker"`    // Case-insensitive substring of the link
	MinDuration   Duration `toml:"min_duration"`   // Known durations below this are short-form
	TitlePatterns []string `toml:"title_patterns"` // Regex patterns matched against the title
}

type ServerConfig struct {
	Listen string `toml:"listen"`
}

// Duration is a time.Duration written as "30m" in TOML
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func Read(path string) (Config, error) {
	conf := Default()
	dat, err := os.ReadFile(path)
	if err != nil {
		return conf, err
	}
	_, err = toml.Decode(string(dat), &conf)
	if err != nil {
		return conf, fmt.Errorf("failed to decode config at %s with %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return conf, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return conf, nil
}

func Write(cfgPath string, cfg Config) error {
	blob, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config with %w", err)
	}
	basePath := path.Dir(cfgPath)
	err = os.MkdirAll(basePath, os.ModePerm)
	if err != nil {
		return fmt.Errorf("failed to create base config directory at '%s' with %w", basePath, err)
	}
	err = os.WriteFile(cfgPath, blob, 0644)
	if err != nil {
		return fmt.Errorf("failed to write into config file at '%s' with %w", cfgPath, err)
	}
	slog.Info("config written", "at", cfgPath)
	return nil
}

// Validate rejects settings the pipeline cannot run with
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case MemoryBackend, SQLiteBackend, RedisBackend:
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.BaseTTL.Duration <= 0 {
		return fmt.Errorf("cache.base_ttl must be positive")
	}
	if c.Cache.SplayMax.Duration < 0 || c.Cache.StaleRetention.Duration < 0 {
		return fmt.Errorf("cache.splay_max and cache.stale_retention must not be negative")
	}
	if c.Feed.PageSizeMax < 1 {
		return fmt.Errorf("feed.page_size_max must be at least 1")
	}
	if c.Feed.PageSizeDefault < 1 || c.Feed.PageSizeDefault > c.Feed.PageSizeMax {
		return fmt.Errorf("feed.page_size_default must be within [1, %d]", c.Feed.PageSizeMax)
	}
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.concurrency must be at least 1")
	}
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("env must be dev or prod, got %q", c.Env)
	}
	return nil
}

func Default() Config {
	var dataDir = path.Join(os.Getenv("HOME"), ".local/share/subfeed")
	return Config{
		Env:          "dev",
		LogLevel:     "info",
		DatabasePath: path.Join(dataDir, "data.db"),
		Cache: CacheConfig{
			Backend:        SQLiteBackend,
			BaseTTL:        Duration{30 * time.Minute},
			SplayMax:       Duration{13 * time.Minute},
			StaleRetention: Duration{24 * time.Hour},
			RedisURL:       "redis://localhost:6379/0",
			DatabasePath:   path.Join(dataDir, "cache.db"),
		},
		Fetch: FetchConfig{
			URLTemplate:   "https://www.youtube.com/feeds/videos.xml?channel_id=%s",
			Timeout:       Duration{15 * time.Second},
			Retries:       2,
			RetryInterval: Duration{500 * time.Millisecond},
			HostInterval:  Duration{100 * time.Millisecond},
			Concurrency:   8,
			UserAgent:     "subfeed/1.0",
		},
		Feed: FeedConfig{
			IncludeShorts:   false,
			PageSizeDefault: 24,
			PageSizeMax:     60,
		},
		Filter: ShortFormFilter{
			LinkMarker:    "/shorts/",
			MinDuration:   Duration{90 * time.Second},
			TitlePatterns: []string{`(?i)#shorts?\b`},
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

func DefaultPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return path.Join(xdgHome, baseCfgPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return path.Join(home, ".config", baseCfgPath)
	}

	panic("unclear where to search for the config file")
}
