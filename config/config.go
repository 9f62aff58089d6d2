package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gardenhub/shoot-events/globals"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAuthTimeout     = 5 * time.Second
	defaultJournalSyncSpec = "@every 5m"
)

// Config is the global configuration object which is filled via the
// configuration file and/or command-line options.
type Config struct {
	AuthConfig        AuthConfig        `mapstructure:"auth"`
	PersistenceConfig PersistenceConfig `mapstructure:"persistence"`
	JournalConfig     JournalConfig     `mapstructure:"journal"`
	FilterConfigs     []FilterConfig    `mapstructure:"filter"`
	LogLevel          string            `mapstructure:"log_level"`
	Admins            []string          `mapstructure:"admins"`       // additional admin e-mails besides the administrators table
	IngestToken       string            `mapstructure:"ingest_token"` // bearer token for the ingestion endpoints; empty disables them
}

// AuthConfig configures the OpenID Connect provider used to verify bearer
// tokens presented in the authenticate message. TimeoutMillis bounds the
// whole authentication phase of a connection.
type AuthConfig struct {
	ClientId      string `mapstructure:"client_id"`
	ProviderUrl   string `mapstructure:"provider_url"` // f.e. "https://accounts.google.com", used to discover the openid endpoints
	TimeoutMillis int    `mapstructure:"timeout_millis"`
}

func (c AuthConfig) Timeout() time.Duration {
	if c.TimeoutMillis <= 0 {
		return defaultAuthTimeout
	}
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

// PersistenceConfig configures the SQL store holding projects, project
// members, administrators and the journal. Type is "sqlite" or "postgres".
type PersistenceConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

// JournalConfig configures the journal cache sync. SyncSpec is a cron
// expression, CommentCacheSize the number of issues whose comment pages are
// kept in the LRU cache.
type JournalConfig struct {
	SyncSpec         string `mapstructure:"sync_spec"`
	CommentCacheSize int    `mapstructure:"comment_cache_size"`
	CommentPageSize  int    `mapstructure:"comment_page_size"`
}

func (c JournalConfig) CronSpec() string {
	if c.SyncSpec == "" {
		return defaultJournalSyncSpec
	}
	return c.SyncSpec
}

// Each FilterConfig block defines a named fleet filter. The expression is an
// expr program evaluated against a shoot, see the filter package. The
// built-in "issues" filter exists even without configuration.
type FilterConfig struct {
	Name       string `mapstructure:"name"`
	Expression string `mapstructure:"expression"`
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("log-level", "", "log level (TRACE/DEBUG/INFO/WARN/ERROR)")
	flagSet.StringSlice("admins", nil, "additional admin user e-mails")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

// ReadConfiguration reads and parses the configuration located at configPath,
// which can either point to a single TOML file or to a directory, in which
// case all *.toml files in this directory are concatenated. It returns a
// Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
	viper.SetDefault("log_level", "INFO")
	err := viper.BindPFlags(flagSet)
	if err != nil {
		globals.AppLogger.Error("could not bind flags (ignored)", "error", err)
	}
	viper.SetEnvPrefix("SHOOTEVENTS")
	viper.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := os.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		viper.SetConfigType("toml")
		err = viper.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			globals.AppLogger.Error("could not read config:", "error", err)
		}
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		globals.AppLogger.Error("could not unmarshal config:", "error", err)
	}

	return &cfg, nil
}
