// Package config loads and validates linkcrawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/linkcrawler/internal/crawler"
)

// EnvPrefix prefixes every environment override, e.g. LINKCRAWLER_CRAWL_CONCURRENCY.
const EnvPrefix = "LINKCRAWLER"

// ConfigName is the file name, without extension, searched for when no
// explicit config path is given.
const ConfigName = "linkcrawler"

// SearchPaths lists the directories searched for ConfigName.
var SearchPaths = []string{".", "$HOME/.linkcrawler", "/etc/linkcrawler/"}

// Config captures every knob loaded via Viper.
type Config struct {
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Output  OutputConfig  `mapstructure:"output"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CrawlConfig defines what is crawled and how wide each round fans out.
type CrawlConfig struct {
	Links        []string `mapstructure:"links"`
	DeleteParams []string `mapstructure:"delete_params"`
	SkipDomains  []string `mapstructure:"skip_domains"`
	SkipURLs     []string `mapstructure:"skip_urls"`
	Concurrency  int      `mapstructure:"concurrency"`
	ShuffleSeed  uint64   `mapstructure:"shuffle_seed"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	HeadFallback   bool          `mapstructure:"head_fallback"`
}

// OutputConfig names the files a crawl writes.
type OutputConfig struct {
	CacheDir string `mapstructure:"cache_dir"`
	LogFile  string `mapstructure:"log_file"`
	URLFile  string `mapstructure:"url_file"`
	MapFile  string `mapstructure:"map_file"`
}

// ServerConfig controls the optional status server. An empty Addr disables it.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"link":        "crawl.links",
	"concurrency": "crawl.concurrency",
	"status-addr": "server.addr",
	"dev":         "logging.development",
}

// Load builds a Config from defaults, a config file, the environment, and any
// changed flags in that order of increasing precedence. With an empty path the
// SearchPaths are tried and a missing file is not an error.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName(ConfigName)
		for _, dir := range SearchPaths {
			v.AddConfigPath(dir)
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.links", []string{})
	v.SetDefault("crawl.delete_params", []string{})
	v.SetDefault("crawl.skip_domains", []string{})
	v.SetDefault("crawl.skip_urls", []string{})
	v.SetDefault("crawl.concurrency", 8)
	v.SetDefault("crawl.shuffle_seed", 0)
	v.SetDefault("http.user_agent", "linkcrawler/1.0 (+https://github.com/JakeFAU/linkcrawler)")
	v.SetDefault("http.connect_timeout", "10s")
	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.max_redirects", crawler.DefaultMaxRedirects)
	v.SetDefault("http.max_body_bytes", 10*1024*1024)
	v.SetDefault("http.head_fallback", true)
	v.SetDefault("output.cache_dir", "cache")
	v.SetDefault("output.log_file", "linkcrawler.log")
	v.SetDefault("output.url_file", "urls.csv")
	v.SetDefault("output.map_file", "map.csv")
	v.SetDefault("server.addr", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Crawl.Links) == 0 {
		return fmt.Errorf("crawl.links must contain at least one URL")
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	if c.HTTP.ConnectTimeout <= 0 {
		return fmt.Errorf("http.connect_timeout must be > 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxRedirects <= 0 {
		return fmt.Errorf("http.max_redirects must be > 0")
	}
	if c.HTTP.MaxBodyBytes < 0 {
		return fmt.Errorf("http.max_body_bytes must be >= 0")
	}
	for key, value := range map[string]string{
		"output.cache_dir": c.Output.CacheDir,
		"output.log_file":  c.Output.LogFile,
		"output.url_file":  c.Output.URLFile,
		"output.map_file":  c.Output.MapFile,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}

// CrawlerConfig converts the crawl and HTTP sections into engine settings.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		Seeds:        append([]string(nil), c.Crawl.Links...),
		DeleteParams: append([]string(nil), c.Crawl.DeleteParams...),
		SkipDomains:  append([]string(nil), c.Crawl.SkipDomains...),
		SkipURLs:     append([]string(nil), c.Crawl.SkipURLs...),
		Concurrency:  c.Crawl.Concurrency,
		MaxRedirects: c.HTTP.MaxRedirects,
		ShuffleSeed:  c.Crawl.ShuffleSeed,
	}
}
