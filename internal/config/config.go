// Package config loads layered configuration: built-in defaults, an
// optional YAML file, KNOLSRS_ environment variables, then command-line
// flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/knolsrs/internal/stats"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: KNOLSRS_STORE__PATH sets store.path.
const EnvPrefix = "KNOLSRS_"

// Config is the full application configuration.
type Config struct {
	Content ContentConfig `koanf:"content"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Stats   StatsConfig   `koanf:"stats"`
	Mastery MasteryConfig `koanf:"mastery"`
	Log     LogConfig     `koanf:"log"`
}

type ContentConfig struct {
	Dirs         []string `koanf:"dirs"`
	GitSources   []string `koanf:"git_sources"`
	ReposDir     string   `koanf:"repos_dir" validate:"required"`
	SyncSchedule string   `koanf:"sync_schedule"` // cron expression; empty disables
}

// Sources returns every content source, directories first.
func (c ContentConfig) Sources() []string {
	return append(append([]string(nil), c.Dirs...), c.GitSources...)
}

type StoreConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite json"`
	Path   string `koanf:"path" validate:"required"`
}

type ServerConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
}

type StatsConfig struct {
	ForecastDays   int `koanf:"forecast_days" validate:"gte=1,lte=365"`
	LapseThreshold int `koanf:"lapse_threshold" validate:"gte=1"`
}

type MasteryConfig struct {
	Weights WeightsConfig `koanf:"weights"`
	Neutral float64       `koanf:"neutral" validate:"gte=0,lte=1"`
}

type WeightsConfig struct {
	Reading  float64 `koanf:"reading" validate:"gte=0,lte=1"`
	Quiz     float64 `koanf:"quiz" validate:"gte=0,lte=1"`
	Maturity float64 `koanf:"maturity" validate:"gte=0,lte=1"`
	Time     float64 `koanf:"time" validate:"gte=0,lte=1"`
}

// Policy converts the mastery settings for the stats package.
func (m MasteryConfig) Policy() stats.MasteryPolicy {
	return stats.MasteryPolicy{
		Weights: stats.Weights{
			Reading:  m.Weights.Reading,
			Quiz:     m.Weights.Quiz,
			Maturity: m.Weights.Maturity,
			Time:     m.Weights.Time,
		},
		Neutral: m.Neutral,
	}
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Content: ContentConfig{
			Dirs:     []string{"decks"},
			ReposDir: "repos",
		},
		Store: StoreConfig{
			Driver: "sqlite",
			Path:   "knolsrs.db",
		},
		Server: ServerConfig{Addr: "localhost:8080"},
		Stats: StatsConfig{
			ForecastDays:   stats.DefaultForecastDays,
			LapseThreshold: stats.DefaultLapseThreshold,
		},
		Mastery: MasteryConfig{
			Weights: WeightsConfig{
				Reading:  stats.DefaultWeights.Reading,
				Quiz:     stats.DefaultWeights.Quiz,
				Maturity: stats.DefaultWeights.Maturity,
				Time:     stats.DefaultWeights.Time,
			},
			Neutral: stats.DefaultNeutral,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"db":        "store.path",
	"driver":    "store.driver",
	"dir":       "content.dirs",
	"git":       "content.git_sources",
	"addr":      "server.addr",
	"log-level": "log.level",
}

// RegisterFlags adds the flags Load understands to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "Path to a YAML config file")
	fs.String("db", d.Store.Path, "Path to the review store")
	fs.String("driver", d.Store.Driver, "Review store driver: sqlite or json")
	fs.StringSlice("dir", d.Content.Dirs, "Directories to scan for card files")
	fs.StringSlice("git", nil, "Git repositories to sync card files from")
	fs.String("addr", d.Server.Addr, "Address for the HTTP API")
	fs.String("log-level", d.Log.Level, "Log level: debug, info, warn or error")
}

// Load builds the configuration. fs may be nil; otherwise it must have been
// set up with RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if fs != nil {
		if path, _ := fs.GetString("config"); path != "" {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		}
	}

	envToKey := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	if fs != nil {
		onlyChanged := func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, onlyChanged), nil); err != nil {
			return nil, fmt.Errorf("config: reading flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and that the mastery weights sum to 1.
func (c *Config) Validate() error {
	var errs []error
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if err := c.Mastery.Policy().Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// NewLogger builds the slog logger described by the log settings.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
