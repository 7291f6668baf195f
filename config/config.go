package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// EPSCHART_PROXY_API_KEY for proxy.api_key.
const EnvPrefix = "EPSCHART"

// DefaultRateLimitMessage is the exact Information text Alpha Vantage returns
// once the free daily quota is spent.
const DefaultRateLimitMessage = "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day. Please subscribe to any of the premium plans at https://www.alphavantage.co/premium/ to instantly remove all daily rate limits."

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Proxy    ProxyConfig    `mapstructure:"proxy"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Earnings EarningsConfig `mapstructure:"earnings"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Session  SessionConfig  `mapstructure:"session"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type UpstreamConfig struct {
	URL              string `mapstructure:"url"`
	RateLimitMessage string `mapstructure:"rate_limit_message"`
}

// ProxyConfig covers both sides of proxy mode: URL is where browsers without
// their own key are sent, Enabled/APIKey turn this process into such a proxy.
type ProxyConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type EarningsConfig struct {
	StrictNumbers bool `mapstructure:"strict_numbers"`
}

type ChartConfig struct {
	AssetsHost string `mapstructure:"assets_host"`
	Width      string `mapstructure:"width"`
	Height     string `mapstructure:"height"`
}

// Pixels returns Width and Height as integers for the snapshot viewport.
// Values that are not plain or "px" lengths fall back to 900x500.
func (c ChartConfig) Pixels() (int, int) {
	return pixels(c.Width, 900), pixels(c.Height, 500)
}

func pixels(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

type SnapshotConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	PoolSize int           `mapstructure:"pool_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	MaxIdle time.Duration `mapstructure:"max_idle"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("upstream.url", "https://www.alphavantage.co/query")
	v.SetDefault("upstream.rate_limit_message", DefaultRateLimitMessage)
	v.SetDefault("proxy.url", "https://api.machandler.com/eps")
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.api_key", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "12h")
	v.SetDefault("earnings.strict_numbers", true)
	v.SetDefault("chart.assets_host", "https://go-echarts.github.io/go-echarts-assets/assets/")
	v.SetDefault("chart.width", "900px")
	v.SetDefault("chart.height", "500px")
	v.SetDefault("snapshot.enabled", false)
	v.SetDefault("snapshot.pool_size", 2)
	v.SetDefault("snapshot.timeout", "20s")
	v.SetDefault("session.max_idle", "2h")
	v.SetDefault("log.level", "info")
}

// Load reads .env (if any), then the optional yaml file at path, then
// EPSCHART_* environment overrides. An empty path or a missing file falls
// back to defaults plus environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env failed: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if err := validURL("upstream.url", c.Upstream.URL); err != nil {
		return err
	}
	if err := validURL("proxy.url", c.Proxy.URL); err != nil {
		return err
	}
	if c.Upstream.RateLimitMessage == "" {
		return fmt.Errorf("upstream.rate_limit_message cannot be empty")
	}
	if c.Proxy.Enabled && strings.TrimSpace(c.Proxy.APIKey) == "" {
		return fmt.Errorf("proxy.enabled requires proxy.api_key")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.Snapshot.Enabled && c.Snapshot.PoolSize <= 0 {
		return fmt.Errorf("snapshot.pool_size must be positive")
	}
	if c.Session.MaxIdle <= 0 {
		return fmt.Errorf("session.max_idle must be positive")
	}
	return nil
}

func validURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", key)
	}
	return nil
}
