package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"stockdata/internal/store"
	"stockdata/internal/tickers"
)

// ErrUsage marks errors caused by bad command-line input.
var ErrUsage = errors.New("usage error")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all configuration for a run.
type Config struct {
	// Command line
	Group            string `mapstructure:"group"`
	UpdateReadmeOnly bool   `mapstructure:"update_readme_only"`
	ChunkIndex       int    `mapstructure:"chunk_index"`
	TotalChunks      int    `mapstructure:"total_chunks"`

	// Chunked is set when both chunk parameters were supplied.
	Chunked bool `mapstructure:"-"`

	// Layout
	DataDir    string `mapstructure:"data_dir"`
	ReadmePath string `mapstructure:"readme_path"`
	CacheDir   string `mapstructure:"cache_dir"`

	// Upstreams (configurable for testing)
	YahooBaseURL   string        `mapstructure:"yahoo_base_url"`
	SP500URL       string        `mapstructure:"sp500_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	YahooRateLimit float64       `mapstructure:"yahoo_rate_limit"`

	// Retrieval
	Period       string        `mapstructure:"period"`
	Interval     string        `mapstructure:"interval"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	MaxWorkers   int           `mapstructure:"max_workers"`
	LockTimeout  time.Duration `mapstructure:"lock_timeout"`
	OutputFormat string        `mapstructure:"output_format"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from, in increasing precedence: defaults, an
// optional config.yaml (in . or $HOME/.stockdata), a .env file, STOCKDATA_*
// environment variables and the command line in args.
//
// Recognized environment variables include:
//   - STOCKDATA_DATA_DIR, STOCKDATA_README_PATH, STOCKDATA_CACHE_DIR
//   - STOCKDATA_YAHOO_BASE_URL, STOCKDATA_SP500_URL, STOCKDATA_USER_AGENT
//   - STOCKDATA_MAX_RETRIES, STOCKDATA_RETRY_BACKOFF, STOCKDATA_MAX_WORKERS
//   - STOCKDATA_OUTPUT_FORMAT, STOCKDATA_LOG_LEVEL
func Load(args []string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.stockdata")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOCKDATA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		_ = v.BindPFlag(key, f)
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	hasIndex, hasTotal := v.IsSet("chunk_index"), v.IsSet("total_chunks")
	cfg.Chunked = hasIndex && hasTotal

	if err := cfg.validate(hasIndex, hasTotal); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("stockdata", pflag.ContinueOnError)
	fs.String("group", "", "ticker group to update: "+strings.Join(tickers.Names(), "|"))
	fs.Bool("update-readme-only", false, "only update the README.md file")
	fs.Int("chunk-index", 0, "index of the chunk to process (for matrix jobs)")
	fs.Int("total-chunks", 0, "total number of chunks (for matrix jobs)")
	fs.String("period", "max", "history period to request")
	fs.String("interval", "1d", "bar interval to request")
	fs.String("data-dir", "data", "root directory for per-group data files")
	fs.String("output-format", store.FormatCSV, "output file format: csv|parquet")
	fs.String("log-level", "info", "log level: debug|info|warn|error")
	return fs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("readme_path", "README.md")
	v.SetDefault("cache_dir", defaultCacheDir())
	v.SetDefault("yahoo_base_url", "https://query2.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("sp500_url", tickers.DefaultSP500URL)
	v.SetDefault("user_agent", defaultUserAgent)
	v.SetDefault("request_timeout", "30s")
	v.SetDefault("yahoo_rate_limit", 0)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_backoff", "2s")
	v.SetDefault("max_workers", 8)
	v.SetDefault("lock_timeout", "10s")
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "stockdata")
}

func (c *Config) validate(hasIndex, hasTotal bool) error {
	var problems []string

	if !c.UpdateReadmeOnly {
		if c.Group == "" {
			problems = append(problems, "--group is required when not using --update-readme-only")
		} else if _, err := tickers.ParseGroup(c.Group); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if hasIndex != hasTotal {
		problems = append(problems, "--chunk-index and --total-chunks must be given together")
	}
	if c.Chunked {
		if err := c.Chunk().Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if c.MaxRetries < 1 {
		problems = append(problems, fmt.Sprintf("max_retries must be at least 1, got %d", c.MaxRetries))
	}
	if c.MaxWorkers < 1 {
		problems = append(problems, fmt.Sprintf("max_workers must be at least 1, got %d", c.MaxWorkers))
	}
	if _, err := store.NewWriter(c.OutputFormat); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrUsage, strings.Join(problems, "; "))
	}
	return nil
}

// Chunk returns the matrix-job chunk. It is meaningful only when Chunked is set.
func (c *Config) Chunk() tickers.Chunk {
	return tickers.Chunk{Index: c.ChunkIndex, Total: c.TotalChunks}
}

// Workers is the fan-out width: the CPU count capped at MaxWorkers.
func (c *Config) Workers() int {
	return max(1, min(runtime.NumCPU(), c.MaxWorkers))
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", s)
	}
	return level, nil
}
