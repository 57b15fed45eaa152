package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Live      LiveConfig      `yaml:"live" mapstructure:"live"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
}

// ServerConfig mock HTTP server configuration
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// MaxBodyBytes limits the size of accepted request bodies (0 = unlimited)
	MaxBodyBytes int64 `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	// BaseURL is the origin used when rendering code snippets
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	CORS    bool   `yaml:"cors" mapstructure:"cors"`
}

// LogConfig log configuration
type LogConfig struct {
	Level       string        `yaml:"level" mapstructure:"level"`
	FileLogging FileLogConfig `yaml:"file_logging" mapstructure:"file_logging"`
}

// FileLogConfig file log configuration
type FileLogConfig struct {
	Enable     bool   `yaml:"enable" mapstructure:"enable"`
	Path       string `yaml:"path" mapstructure:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// OutputConfig controls CLI output style
type OutputConfig struct {
	Mode     string         `yaml:"mode" mapstructure:"mode"`
	Silence  bool           `yaml:"silence" mapstructure:"silence"`
	Locale   string         `yaml:"locale" mapstructure:"locale"`
	BodyView BodyViewConfig `yaml:"body_view" mapstructure:"body_view"`
}

// BodyViewConfig 控制响应正文的格式化
type BodyViewConfig struct {
	Enable          bool         `yaml:"enable" mapstructure:"enable"`
	MaxPreviewBytes int          `yaml:"max_preview_bytes" mapstructure:"max_preview_bytes"`
	JSON            PrettyConfig `yaml:"json" mapstructure:"json"`
	XML             PrettyConfig `yaml:"xml" mapstructure:"xml"`
	HTML            PrettyConfig `yaml:"html" mapstructure:"html"`
}

// PrettyConfig 单一格式的展示参数
type PrettyConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable"`
	Pretty bool `yaml:"pretty" mapstructure:"pretty"`
}

// StorageConfig 工作区与历史记录的持久化参数
type StorageConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	Path         string `yaml:"path" mapstructure:"path"`
	HistoryLimit int    `yaml:"history_limit" mapstructure:"history_limit"`
	// SeedDefaults installs the sample endpoints into an empty workspace
	SeedDefaults bool `yaml:"seed_defaults" mapstructure:"seed_defaults"`
}

// RateLimitConfig selects where simulated rate-limit windows are tracked
type RateLimitConfig struct {
	Backend string      `yaml:"backend" mapstructure:"backend"`
	Redis   RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// RedisConfig connection parameters for the redis backend
type RedisConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Password  string `yaml:"password" mapstructure:"password"`
	DB        int    `yaml:"db" mapstructure:"db"`
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`
}

// LiveConfig outbound client used for live comparisons
type LiveConfig struct {
	BaseURL               string             `yaml:"base_url" mapstructure:"base_url"`
	Timeout               int                `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries            int                `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBackoffMs        int                `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	MaxConcurrent         int                `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxIdleConns          int                `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost   int                `yaml:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout       int                `yaml:"idle_conn_timeout" mapstructure:"idle_conn_timeout"`
	ResponseHeaderTimeout int                `yaml:"response_header_timeout" mapstructure:"response_header_timeout"`
	TLSHandshakeTimeout   int                `yaml:"tls_handshake_timeout" mapstructure:"tls_handshake_timeout"`
	TLSInsecureSkipVerify bool               `yaml:"tls_insecure_skip_verify" mapstructure:"tls_insecure_skip_verify"`
	// MaxBodyBytes caps how much of a live response body is read (0 = unlimited)
	MaxBodyBytes    int64              `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	PathStrategy    PathStrategyConfig `yaml:"path_strategy" mapstructure:"path_strategy"`
	HeaderBlacklist []string           `yaml:"header_blacklist" mapstructure:"header_blacklist"`
}

// PathStrategyConfig configures how live URLs are built from endpoint paths
type PathStrategyConfig struct {
	Mode        string              `yaml:"mode" mapstructure:"mode"`
	StripPrefix string              `yaml:"strip_prefix" mapstructure:"strip_prefix"`
	Rules       []RewriteRuleConfig `yaml:"rules" mapstructure:"rules"`
}

// RewriteRuleConfig defines a rewrite rule when mode is rewrite
type RewriteRuleConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Match   string `yaml:"match" mapstructure:"match"`
	Replace string `yaml:"replace" mapstructure:"replace"`
	Regex   bool   `yaml:"regex" mapstructure:"regex"`
}

// WebConfig admin API configuration
type WebConfig struct {
	Enable    bool            `yaml:"enable" mapstructure:"enable"`
	AdminPath string          `yaml:"admin_path" mapstructure:"admin_path"`
	Auth      WebAuthConfig   `yaml:"auth" mapstructure:"auth"`
	Export    WebExportConfig `yaml:"export" mapstructure:"export"`
}

// WebAuthConfig authentication configuration
type WebAuthConfig struct {
	Enable         bool            `yaml:"enable" mapstructure:"enable"`
	SessionTimeout time.Duration   `yaml:"session_timeout" mapstructure:"session_timeout"`
	Users          []WebUserConfig `yaml:"users" mapstructure:"users"`
}

// WebUserConfig user credential configuration
type WebUserConfig struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Role     string `yaml:"role" mapstructure:"role"`
}

// WebExportConfig export configuration
type WebExportConfig struct {
	Enable  bool     `yaml:"enable" mapstructure:"enable"`
	Formats []string `yaml:"formats" mapstructure:"formats"`
}

// LoadEnvFile loads KEY=VALUE pairs into the process environment.
// A missing default .env file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig load configuration
// If v is nil, a new viper instance will be created
func LoadConfig(configPath string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	setDefaults(v)

	v.SetEnvPrefix("MOCKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.mockflow")
		v.AddConfigPath("/etc/mockflow")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Printf("Config file loaded: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Unmarshal leaves zero values where the file is silent, so defaults are re-applied here.
	applyDefaults(&config, v)

	return &config, nil
}

func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = v.GetInt("server.port")
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = v.GetInt64("server.max_body_bytes")
	}
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = v.GetString("server.base_url")
	}
	cfg.Server.CORS = v.GetBool("server.cors")

	if cfg.Log.Level == "" {
		cfg.Log.Level = v.GetString("log.level")
	}
	// Bools always come from viper: it already merges file values over defaults.
	cfg.Log.FileLogging.Enable = v.GetBool("log.file_logging.enable")
	cfg.Log.FileLogging.Compress = v.GetBool("log.file_logging.compress")
	if cfg.Log.FileLogging.Path == "" {
		cfg.Log.FileLogging.Path = v.GetString("log.file_logging.path")
	}
	if cfg.Log.FileLogging.MaxSizeMB == 0 {
		cfg.Log.FileLogging.MaxSizeMB = v.GetInt("log.file_logging.max_size_mb")
	}
	if cfg.Log.FileLogging.MaxBackups == 0 {
		cfg.Log.FileLogging.MaxBackups = v.GetInt("log.file_logging.max_backups")
	}
	if cfg.Log.FileLogging.MaxAgeDays == 0 {
		cfg.Log.FileLogging.MaxAgeDays = v.GetInt("log.file_logging.max_age_days")
	}

	if cfg.Output.Mode == "" {
		cfg.Output.Mode = v.GetString("output.mode")
	}
	if cfg.Output.Locale == "" {
		cfg.Output.Locale = v.GetString("output.locale")
	}
	cfg.Output.Silence = v.GetBool("output.silence")
	cfg.Output.BodyView.Enable = v.GetBool("output.body_view.enable")
	if cfg.Output.BodyView.MaxPreviewBytes == 0 {
		cfg.Output.BodyView.MaxPreviewBytes = v.GetInt("output.body_view.max_preview_bytes")
	}
	cfg.Output.BodyView.JSON.Enable = v.GetBool("output.body_view.json.enable")
	cfg.Output.BodyView.JSON.Pretty = v.GetBool("output.body_view.json.pretty")
	cfg.Output.BodyView.XML.Enable = v.GetBool("output.body_view.xml.enable")
	cfg.Output.BodyView.XML.Pretty = v.GetBool("output.body_view.xml.pretty")
	cfg.Output.BodyView.HTML.Enable = v.GetBool("output.body_view.html.enable")
	cfg.Output.BodyView.HTML.Pretty = v.GetBool("output.body_view.html.pretty")

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = v.GetString("storage.driver")
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = v.GetString("storage.path")
	}
	if cfg.Storage.HistoryLimit == 0 {
		cfg.Storage.HistoryLimit = v.GetInt("storage.history_limit")
	}
	cfg.Storage.SeedDefaults = v.GetBool("storage.seed_defaults")

	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = v.GetString("ratelimit.backend")
	}
	if cfg.RateLimit.Redis.Addr == "" {
		cfg.RateLimit.Redis.Addr = v.GetString("ratelimit.redis.addr")
	}
	if cfg.RateLimit.Redis.KeyPrefix == "" {
		cfg.RateLimit.Redis.KeyPrefix = v.GetString("ratelimit.redis.key_prefix")
	}

	if cfg.Live.Timeout == 0 {
		cfg.Live.Timeout = v.GetInt("live.timeout")
	}
	if cfg.Live.RetryBackoffMs == 0 {
		cfg.Live.RetryBackoffMs = v.GetInt("live.retry_backoff_ms")
	}
	if cfg.Live.MaxBodyBytes == 0 {
		cfg.Live.MaxBodyBytes = v.GetInt64("live.max_body_bytes")
	}
	if cfg.Live.MaxConcurrent == 0 {
		cfg.Live.MaxConcurrent = v.GetInt("live.max_concurrent")
	}
	if cfg.Live.MaxIdleConns == 0 {
		cfg.Live.MaxIdleConns = v.GetInt("live.max_idle_conns")
	}
	if cfg.Live.MaxIdleConnsPerHost == 0 {
		cfg.Live.MaxIdleConnsPerHost = v.GetInt("live.max_idle_conns_per_host")
	}
	if cfg.Live.IdleConnTimeout == 0 {
		cfg.Live.IdleConnTimeout = v.GetInt("live.idle_conn_timeout")
	}
	if cfg.Live.ResponseHeaderTimeout == 0 {
		cfg.Live.ResponseHeaderTimeout = v.GetInt("live.response_header_timeout")
	}
	if cfg.Live.TLSHandshakeTimeout == 0 {
		cfg.Live.TLSHandshakeTimeout = v.GetInt("live.tls_handshake_timeout")
	}
	cfg.Live.TLSInsecureSkipVerify = v.GetBool("live.tls_insecure_skip_verify")
	if cfg.Live.PathStrategy.Mode == "" {
		cfg.Live.PathStrategy.Mode = v.GetString("live.path_strategy.mode")
	}
	if len(cfg.Live.PathStrategy.Rules) == 0 {
		var rules []RewriteRuleConfig
		if err := v.UnmarshalKey("live.path_strategy.rules", &rules); err == nil {
			cfg.Live.PathStrategy.Rules = rules
		}
	}
	if len(cfg.Live.HeaderBlacklist) == 0 {
		cfg.Live.HeaderBlacklist = v.GetStringSlice("live.header_blacklist")
	}
	cfg.Live.HeaderBlacklist = normalizeHeaderList(cfg.Live.HeaderBlacklist)

	cfg.Web.Enable = v.GetBool("web.enable")
	if cfg.Web.AdminPath == "" {
		cfg.Web.AdminPath = v.GetString("web.admin_path")
	}
	cfg.Web.Auth.Enable = v.GetBool("web.auth.enable")
	if cfg.Web.Auth.SessionTimeout == 0 {
		if timeout, err := time.ParseDuration(v.GetString("web.auth.session_timeout")); err == nil {
			cfg.Web.Auth.SessionTimeout = timeout
		} else {
			cfg.Web.Auth.SessionTimeout = 24 * time.Hour
		}
	}
	if len(cfg.Web.Auth.Users) == 0 {
		var users []WebUserConfig
		if err := v.UnmarshalKey("web.auth.users", &users); err == nil {
			cfg.Web.Auth.Users = users
		}
	}
	cfg.Web.Export.Enable = v.GetBool("web.export.enable")
	if len(cfg.Web.Export.Formats) == 0 {
		cfg.Web.Export.Formats = v.GetStringSlice("web.export.formats")
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.max_body_bytes", int64(10*1024*1024))
	v.SetDefault("server.base_url", "http://localhost:3000")
	v.SetDefault("server.cors", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file_logging.enable", false)
	v.SetDefault("log.file_logging.path", "./mockflow.log")
	v.SetDefault("log.file_logging.max_size_mb", 10)
	v.SetDefault("log.file_logging.max_backups", 5)
	v.SetDefault("log.file_logging.max_age_days", 30)
	v.SetDefault("log.file_logging.compress", true)

	v.SetDefault("output.mode", "console")
	v.SetDefault("output.silence", false)
	v.SetDefault("output.locale", "en")
	v.SetDefault("output.body_view.enable", true)
	v.SetDefault("output.body_view.max_preview_bytes", 32*1024)
	v.SetDefault("output.body_view.json.enable", true)
	v.SetDefault("output.body_view.json.pretty", true)
	v.SetDefault("output.body_view.xml.enable", true)
	v.SetDefault("output.body_view.xml.pretty", true)
	v.SetDefault("output.body_view.html.enable", true)
	v.SetDefault("output.body_view.html.pretty", false)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", "./data/mockflow.db")
	v.SetDefault("storage.history_limit", 20)
	v.SetDefault("storage.seed_defaults", true)

	v.SetDefault("ratelimit.backend", "memory")
	v.SetDefault("ratelimit.redis.addr", "localhost:6379")
	v.SetDefault("ratelimit.redis.db", 0)
	v.SetDefault("ratelimit.redis.key_prefix", "mockflow:ratelimit:")

	v.SetDefault("live.base_url", "")
	v.SetDefault("live.timeout", 30)
	v.SetDefault("live.max_retries", 0)
	v.SetDefault("live.retry_backoff_ms", 1000)
	v.SetDefault("live.max_body_bytes", int64(10*1024*1024))
	v.SetDefault("live.max_concurrent", 10)
	v.SetDefault("live.max_idle_conns", 100)
	v.SetDefault("live.max_idle_conns_per_host", 20)
	v.SetDefault("live.idle_conn_timeout", 90)
	v.SetDefault("live.response_header_timeout", 15)
	v.SetDefault("live.tls_handshake_timeout", 10)
	v.SetDefault("live.tls_insecure_skip_verify", false)
	v.SetDefault("live.path_strategy.mode", "append")
	v.SetDefault("live.path_strategy.strip_prefix", "")
	v.SetDefault("live.path_strategy.rules", []map[string]string{})
	v.SetDefault("live.header_blacklist", []string{
		"host",
		"connection",
		"keep-alive",
		"proxy-authorization",
		"te",
		"trailers",
		"transfer-encoding",
		"upgrade",
		"content-length",
	})

	v.SetDefault("web.enable", true)
	v.SetDefault("web.admin_path", "/_mockflow/api")
	v.SetDefault("web.auth.enable", false)
	v.SetDefault("web.auth.session_timeout", "24h")
	v.SetDefault("web.auth.users", []map[string]string{
		{"username": "admin", "password": "admin123", "role": "admin"},
		{"username": "user", "password": "user123", "role": "viewer"},
	})
	v.SetDefault("web.export.enable", true)
	v.SetDefault("web.export.formats", []string{"json", "csv"})
}

// Validate checks the configuration and fills normalized values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server max body bytes cannot be negative")
	}
	if strings.TrimSpace(c.Server.BaseURL) == "" {
		c.Server.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")

	switch strings.ToLower(c.Output.Mode) {
	case "", "console", "json":
		if c.Output.Mode == "" {
			c.Output.Mode = "console"
		}
	default:
		return fmt.Errorf("output mode must be 'console' or 'json'")
	}
	if c.Output.BodyView.MaxPreviewBytes < 0 {
		return fmt.Errorf("output.body_view.max_preview_bytes cannot be negative")
	}
	if strings.TrimSpace(c.Output.Locale) == "" {
		c.Output.Locale = "en"
	}

	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
		c.Storage.Driver = "sqlite"
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage path cannot be empty")
		}
	case "memory":
		c.Storage.Driver = "memory"
	default:
		return fmt.Errorf("storage driver must be sqlite or memory")
	}
	if c.Storage.HistoryLimit < 1 {
		return fmt.Errorf("storage history_limit must be at least 1")
	}

	switch strings.ToLower(strings.TrimSpace(c.RateLimit.Backend)) {
	case "", "memory":
		c.RateLimit.Backend = "memory"
	case "redis":
		c.RateLimit.Backend = "redis"
		if strings.TrimSpace(c.RateLimit.Redis.Addr) == "" {
			return fmt.Errorf("ratelimit redis addr cannot be empty when backend is redis")
		}
		if c.RateLimit.Redis.DB < 0 {
			return fmt.Errorf("ratelimit redis db cannot be negative")
		}
	default:
		return fmt.Errorf("ratelimit backend must be memory or redis")
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.FileLogging.Enable {
		if c.Log.FileLogging.Path == "" {
			return fmt.Errorf("log file path cannot be empty when file logging is enabled")
		}
		if c.Log.FileLogging.MaxSizeMB < 1 {
			return fmt.Errorf("log file max size must be at least 1MB")
		}
		if c.Log.FileLogging.MaxBackups < 0 {
			return fmt.Errorf("log file max backups cannot be negative")
		}
		if c.Log.FileLogging.MaxAgeDays < 0 {
			return fmt.Errorf("log file max age cannot be negative")
		}
	}

	if c.Live.Timeout < 0 {
		return fmt.Errorf("live timeout cannot be negative")
	}
	if c.Live.MaxRetries < 0 {
		return fmt.Errorf("live max retries cannot be negative")
	}
	if c.Live.RetryBackoffMs < 0 {
		return fmt.Errorf("live retry backoff cannot be negative")
	}
	if c.Live.MaxBodyBytes < 0 {
		return fmt.Errorf("live max body bytes cannot be negative")
	}
	if c.Live.MaxConcurrent < 1 {
		return fmt.Errorf("live max concurrent must be at least 1")
	}
	switch strings.ToLower(c.Live.PathStrategy.Mode) {
	case "", "append", "strip_prefix", "rewrite":
		if c.Live.PathStrategy.Mode == "" {
			c.Live.PathStrategy.Mode = "append"
		}
	default:
		return fmt.Errorf("live path strategy mode must be append, strip_prefix, or rewrite")
	}
	if strings.EqualFold(c.Live.PathStrategy.Mode, "rewrite") {
		if len(c.Live.PathStrategy.Rules) == 0 {
			return fmt.Errorf("live path strategy rules cannot be empty when mode is rewrite")
		}
		for i, rule := range c.Live.PathStrategy.Rules {
			if rule.Match == "" {
				return fmt.Errorf("live path rule %d match cannot be empty", i+1)
			}
		}
	}

	if c.Web.Enable {
		if c.Web.AdminPath == "" {
			return fmt.Errorf("web admin path cannot be empty")
		}
		if !strings.HasPrefix(c.Web.AdminPath, "/") {
			return fmt.Errorf("web admin path must start with '/'")
		}
		c.Web.AdminPath = strings.TrimRight(c.Web.AdminPath, "/")
		if c.Web.AdminPath == "" {
			return fmt.Errorf("web admin path cannot be the root path")
		}

		if c.Web.Auth.Enable {
			if c.Web.Auth.SessionTimeout <= 0 {
				return fmt.Errorf("web auth session timeout must be greater than zero")
			}
			if len(c.Web.Auth.Users) == 0 {
				return fmt.Errorf("web auth requires at least one user")
			}
			validRoles := map[string]struct{}{"admin": {}, "viewer": {}}
			for i, user := range c.Web.Auth.Users {
				if user.Username == "" {
					return fmt.Errorf("web auth user %d username cannot be empty", i+1)
				}
				if user.Password == "" {
					return fmt.Errorf("web auth user %d password cannot be empty", i+1)
				}
				if _, ok := validRoles[strings.ToLower(user.Role)]; !ok {
					return fmt.Errorf("web auth user %d role must be admin or viewer", i+1)
				}
			}
		}

		if c.Web.Export.Enable && len(c.Web.Export.Formats) == 0 {
			return fmt.Errorf("web export formats cannot be empty when export enabled")
		}
	}

	return nil
}

func normalizeHeaderList(list []string) []string {
	if len(list) == 0 {
		return list
	}
	set := make(map[string]struct{}, len(list))
	result := make([]string, 0, len(list))
	for _, h := range list {
		norm := strings.ToLower(strings.TrimSpace(h))
		if norm == "" {
			continue
		}
		if _, exists := set[norm]; exists {
			continue
		}
		set[norm] = struct{}{}
		result = append(result, norm)
	}
	return result
}
