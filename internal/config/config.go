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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Fundly FundlyConfig `yaml:"fundly" mapstructure:"fundly"`
	Scan   ScanConfig   `yaml:"scan" mapstructure:"scan"`
	Email  EmailConfig  `yaml:"email" mapstructure:"email"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FundlyConfig holds the portal session settings.
type FundlyConfig struct {
	Email    string `yaml:"email" mapstructure:"email"`
	Password string `yaml:"password" mapstructure:"password"`
	LoginURL string `yaml:"login_url" mapstructure:"login_url"`
	Headless bool   `yaml:"headless" mapstructure:"headless"`
}

// ScanConfig configures scan cadence and the outreach gate.
type ScanConfig struct {
	IntervalSecs int  `yaml:"interval_secs" mapstructure:"interval_secs"`
	DryRun       bool `yaml:"dry_run" mapstructure:"dry_run"`

	// AllowSend enables outreach delivery directly.
	AllowSend bool `yaml:"allow_send" mapstructure:"allow_send"`

	// RunContext identifies how the process was started. Outreach is also
	// enabled when the scheduler ("launchd") started us, so manual shell
	// runs stay safe by default.
	RunContext string `yaml:"run_context" mapstructure:"run_context"`
}

// SendingEnabled reports whether outreach email may actually be delivered.
func (s ScanConfig) SendingEnabled() bool {
	return s.AllowSend || s.RunContext == "launchd"
}

// EmailConfig holds SMTP delivery settings.
type EmailConfig struct {
	SMTPHost  string `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort  int    `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser  string `yaml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPass  string `yaml:"smtp_pass" mapstructure:"smtp_pass"`
	FromName  string `yaml:"from_name" mapstructure:"from_name"`
	FromEmail string `yaml:"from_email" mapstructure:"from_email"`
	Subject   string `yaml:"subject" mapstructure:"subject"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("FUNDLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Empty-string defaults register the key with viper so the
	// FUNDLY_* environment override is picked up by Unmarshal.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("fundly.email", "")
	v.SetDefault("fundly.password", "")
	v.SetDefault("fundly.login_url", "")
	v.SetDefault("fundly.headless", true)
	v.SetDefault("scan.interval_secs", 300)
	v.SetDefault("scan.dry_run", false)
	v.SetDefault("scan.allow_send", false)
	v.SetDefault("scan.run_context", "")
	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_pass", "")
	v.SetDefault("email.from_name", "Fundly Bot")
	v.SetDefault("email.from_email", "")
	v.SetDefault("email.subject", "")
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
