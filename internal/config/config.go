package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	CRM    CRMConfig    `yaml:"crm" mapstructure:"crm"`
	Admin  AdminConfig  `yaml:"admin" mapstructure:"admin"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the intake HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// AllowedOrigins is the CORS allow-list for the public submission route.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// PreviewOriginSuffix additionally admits preview-deployment subdomains.
	PreviewOriginSuffix string `yaml:"preview_origin_suffix" mapstructure:"preview_origin_suffix"`
	// RateLimitMax requests per RateLimitWindowSecs per caller IP.
	RateLimitMax        int `yaml:"rate_limit_max" mapstructure:"rate_limit_max"`
	RateLimitWindowSecs int `yaml:"rate_limit_window_secs" mapstructure:"rate_limit_window_secs"`
	// TrustProxy honors X-Forwarded-For when deriving the caller IP. Only
	// enable behind a proxy that sets the header itself.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// RateLimitWindow returns the configured window as a duration.
func (c ServerConfig) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSecs) * time.Second
}

// CRMConfig holds the lead-upload API settings.
type CRMConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// RateLimit is the max outbound requests per second to the CRM.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AdminConfig holds the dashboard's shared-password auth settings.
type AdminConfig struct {
	Password string `yaml:"password" mapstructure:"password"`
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
	v.SetEnvPrefix("INTAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_max", 10)
	v.SetDefault("server.rate_limit_window_secs", 60)
	v.SetDefault("server.allowed_origins", []string{
		"https://truepathleads.com",
		"https://www.truepathleads.com",
		"http://localhost:5173",
		"http://localhost:8080",
	})
	v.SetDefault("server.preview_origin_suffix", ".preview.truepathleads.com")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("crm.base_url", "https://api.globalholdings.app/api")
	v.SetDefault("crm.rate_limit", 2.0)

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

// Validate checks that the fields required by the given mode are set.
// Modes map to command entry points: "serve" needs the full stack,
// "migrate" and "leads" only the store.
func (c *Config) Validate(mode string) error {
	var problems []string

	needStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "serve":
		needStore()
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Server.RateLimitMax < 1 {
			problems = append(problems, "server.rate_limit_max must be >= 1")
		}
		if c.Server.RateLimitWindowSecs < 1 {
			problems = append(problems, "server.rate_limit_window_secs must be >= 1")
		}
		if c.CRM.Token == "" {
			problems = append(problems, "crm.token is required")
		}
		if c.Admin.Password == "" {
			problems = append(problems, "admin.password is required")
		}
	case "migrate", "leads":
		needStore()
	case "retry":
		needStore()
		if c.CRM.Token == "" {
			problems = append(problems, "crm.token is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
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
