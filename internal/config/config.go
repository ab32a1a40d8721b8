package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Diff    DiffConfig    `yaml:"diff" mapstructure:"diff"`
	Runlog  RunlogConfig  `yaml:"runlog" mapstructure:"runlog"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourcesConfig holds the upstream registry endpoints.
type SourcesConfig struct {
	SwissmedicURL    string `yaml:"swissmedic_url" mapstructure:"swissmedic_url"`
	FOPHResourceURL  string `yaml:"foph_resource_url" mapstructure:"foph_resource_url"`
	FOPHStaticBase   string `yaml:"foph_static_base" mapstructure:"foph_static_base"`
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DownloadRetries  int    `yaml:"download_retries" mapstructure:"download_retries"`
}

// DataConfig holds the local directories snapshots and reports are written to.
type DataConfig struct {
	CSVDir    string `yaml:"csv_dir" mapstructure:"csv_dir"`
	NDJSONDir string `yaml:"ndjson_dir" mapstructure:"ndjson_dir"`
	DiffDir   string `yaml:"diff_dir" mapstructure:"diff_dir"`
}

// DiffConfig configures diff execution.
type DiffConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"` // 0 = GOMAXPROCS
}

// RunlogConfig configures the local run history database.
type RunlogConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Disabled bool   `yaml:"disabled" mapstructure:"disabled"`
}

// ServerConfig configures the report server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MEDDIFF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.swissmedic_url", "https://www.swissmedic.ch/dam/swissmedic/de/dokumente/internetlisten/zugelassene_packungen_human.xlsx.download.xlsx/zugelassene_packungen_ham.xlsx")
	v.SetDefault("sources.foph_resource_url", "https://epl.bag.admin.ch/api/sl/public/resources/current")
	v.SetDefault("sources.foph_static_base", "https://epl.bag.admin.ch/static/")
	v.SetDefault("sources.user_agent", "meddiff/1.0")
	v.SetDefault("sources.timeout_secs", 300)
	v.SetDefault("sources.download_retries", 3)
	v.SetDefault("data.csv_dir", "csv")
	v.SetDefault("data.ndjson_dir", "ndjson")
	v.SetDefault("data.diff_dir", "diff")
	v.SetDefault("diff.workers", 0)
	v.SetDefault("runlog.path", "meddiff_runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
