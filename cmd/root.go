package cmd

import (
	"errors"
	"io/fs"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-radar/internal/profile"
)

const (
	app = "job-radar"
)

type Config struct {
	Profile     *profile.Profile `mapstructure:"profile"`
	Run         *RunConfig       `mapstructure:"run"`
	Sources     *SourcesConfig   `mapstructure:"sources"`
	Database    *DatabaseConfig  `mapstructure:"database"`
	Redis       *RedisConfig     `mapstructure:"redis"`
	Schedule    *ScheduleConfig  `mapstructure:"schedule"`
	ExcludeFile string           `mapstructure:"exclude-file"`
	UserAgent   string           `mapstructure:"user-agent"`
	AI          *AIConfig        `mapstructure:"ai"`
}

type RunConfig struct {
	MaxJobs          int           `mapstructure:"max-jobs"`
	SourcesTier      string        `mapstructure:"sources-tier"`
	Sources          []string      `mapstructure:"sources"`
	MinScore         *float64      `mapstructure:"min-score"`
	DryRun           bool          `mapstructure:"dry-run"`
	ExcludeSynthetic bool          `mapstructure:"exclude-synthetic"`
	ExcludeCompanies []string      `mapstructure:"exclude-companies"`
	FallbackFloor    int           `mapstructure:"fallback-floor"`
	CallTimeout      time.Duration `mapstructure:"call-timeout"`
	RunBudget        time.Duration `mapstructure:"run-budget"`
}

// EntryConfig holds the registry settings shared by every source.
type EntryConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Tier            string        `mapstructure:"tier"`
	Delay           time.Duration `mapstructure:"delay"`
	MaxCombinations int           `mapstructure:"max-combinations"`
}

type SourcesConfig struct {
	HTTPTimeout time.Duration    `mapstructure:"http-timeout"`
	Adzuna      *AdzunaConfig    `mapstructure:"adzuna"`
	RemoteOK    *RemoteOKConfig  `mapstructure:"remoteok"`
	RSS         []RSSConfig      `mapstructure:"rss"`
	Synthetic   *SyntheticConfig `mapstructure:"synthetic"`
}

type AdzunaConfig struct {
	EntryConfig `mapstructure:",squash"`
	AppID       string `mapstructure:"app-id"`
	AppKey      string `mapstructure:"app-key"`
	AppKeyFile  string `mapstructure:"app-key-file"`
	Country     string `mapstructure:"country"`
	PageSize    int    `mapstructure:"page-size"`
	MaxPages    int    `mapstructure:"max-pages"`
}

type RemoteOKConfig struct {
	EntryConfig `mapstructure:",squash"`
	Endpoint    string        `mapstructure:"endpoint"`
	CacheTTL    time.Duration `mapstructure:"cache-ttl"`
}

type RSSConfig struct {
	EntryConfig `mapstructure:",squash"`
	Name        string            `mapstructure:"name"`
	URL         string            `mapstructure:"url"`
	Params      map[string]string `mapstructure:"params"`
	Layout      string            `mapstructure:"layout"`
	Location    string            `mapstructure:"location"`
}

type SyntheticConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Name    string `mapstructure:"name"`
	PerCall int    `mapstructure:"per-call"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	Migrate bool   `mapstructure:"migrate"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type ScheduleConfig struct {
	Run           string `mapstructure:"run"`
	Sweep         string `mapstructure:"sweep"`
	RetentionDays int    `mapstructure:"retention-days"`
}

type AIConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Provider  string        `mapstructure:"provider"`
	NoteLimit int           `mapstructure:"note-limit"`
	Gemini    *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-radar collects job postings from many sources and ranks them against your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"database.url":                "JOB_RADAR_DATABASE_URL",
		"redis.url":                   "JOB_RADAR_REDIS_URL",
		"sources.adzuna.app-key-file": "ADZUNA_APP_KEY_FILE",
		"ai.gemini.api-key-file":      "GEMINI_API_KEY_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-radar.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command needs no config.
	if versionCmd.CalledAs() != "" {
		return
	}

	// A missing .env is fine; variables may come from the environment itself.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}
	config.applyDefaults()

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Profile == nil {
		c.Profile = profile.Default()
	}
	if c.Run == nil {
		c.Run = &RunConfig{}
	}
	if c.Sources == nil {
		c.Sources = &SourcesConfig{}
	}
	if c.Database == nil {
		c.Database = &DatabaseConfig{}
	}
	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Schedule == nil {
		c.Schedule = &ScheduleConfig{}
	}
	if c.AI == nil {
		c.AI = &AIConfig{}
	}
}

// retention returns the configured retention window; zero means the storage default.
func (c *Config) retention() time.Duration {
	if c.Schedule == nil || c.Schedule.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.Schedule.RetentionDays) * 24 * time.Hour
}
