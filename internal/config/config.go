package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置，启动时加载一次，显式传递给各组件
type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Etsy     EtsyConfig     `mapstructure:"etsy"`
	Session  SessionConfig  `mapstructure:"session"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Security SecurityConfig `mapstructure:"security"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Swagger         bool          `mapstructure:"swagger"`
}

// Addr 监听地址
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	// Driver: postgres / sqlite
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	LogLevel        string        `mapstructure:"log_level"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// EtsyConfig Etsy Open API v3 应用配置
type EtsyConfig struct {
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	RedirectURI  string        `mapstructure:"redirect_uri"`
	Scopes       []string      `mapstructure:"scopes"`
	AuthURL      string        `mapstructure:"auth_url"`
	TokenURL     string        `mapstructure:"token_url"`
	APIBaseURL   string        `mapstructure:"api_base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
	Debug        bool          `mapstructure:"debug"`
}

type SessionConfig struct {
	// Backend: memory / redis
	Backend       string        `mapstructure:"backend"`
	CookieName    string        `mapstructure:"cookie_name"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type JWTConfig struct {
	SecretKey       string        `mapstructure:"secret_key"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	Issuer          string        `mapstructure:"issuer"`
}

type SecurityConfig struct {
	// TokenEncKey base64 编码的 32 字节 AES 密钥，为空时 Token 明文入库
	TokenEncKey string `mapstructure:"token_enc_key"`
}

type SyncConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Schedule           string        `mapstructure:"schedule"`
	TokenSchedule      string        `mapstructure:"token_schedule"`
	Concurrency        int           `mapstructure:"concurrency"`
	PageSize           int           `mapstructure:"page_size"`
	MaxPages           int           `mapstructure:"max_pages"`
	ReceiptLookback    time.Duration `mapstructure:"receipt_lookback"`
	ManualSyncCooldown time.Duration `mapstructure:"manual_sync_cooldown"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ==================== 加载 ====================

// 历史环境变量名 (沿用旧部署的 .env)
var legacyEnv = map[string]string{
	"etsy.client_id":     "ETSY_CLIENT_ID",
	"etsy.client_secret": "ETSY_CLIENT_SECRET",
	"etsy.redirect_uri":  "ETSY_REDIRECT_URI",
	"database.dsn":       "DATABASE_URL",
	"session.redis_addr": "REDIS_ADDR",
}

// Load 加载配置: 默认值 < 配置文件 < 环境变量
// path 为空时只读取环境变量
func Load(path string) (*Config, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "BACKOFFICE_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.swagger", true)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "host=localhost user=etsy_admin password=etsy dbname=etsy_backoffice port=5432 sslmode=disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	// 无默认值的键也要注册，否则 AutomaticEnv 不会参与 Unmarshal
	v.SetDefault("etsy.client_id", "")
	v.SetDefault("etsy.client_secret", "")
	v.SetDefault("etsy.redirect_uri", "")
	v.SetDefault("etsy.debug", false)
	v.SetDefault("session.cookie_secure", false)
	v.SetDefault("session.redis_addr", "")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("security.token_enc_key", "")

	v.SetDefault("etsy.scopes", []string{"listings_r", "listings_w", "transactions_r", "shops_r"})
	v.SetDefault("etsy.auth_url", "https://www.etsy.com/oauth/connect")
	v.SetDefault("etsy.token_url", "https://api.etsy.com/v3/public/oauth/token")
	v.SetDefault("etsy.api_base_url", "https://openapi.etsy.com/v3")
	v.SetDefault("etsy.timeout", 20*time.Second)
	v.SetDefault("etsy.retry_count", 2)
	v.SetDefault("etsy.rate_limit", 10.0)
	v.SetDefault("etsy.rate_burst", 5)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.cookie_name", "bo_session")
	v.SetDefault("session.ttl", 10*time.Minute)
	v.SetDefault("session.key_prefix", "backoffice:session:")

	v.SetDefault("jwt.access_token_ttl", 2*time.Hour)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("jwt.issuer", "etsy-backoffice")

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.schedule", "0 */5 * * * *")
	v.SetDefault("sync.token_schedule", "0 0/40 * * * *")
	v.SetDefault("sync.concurrency", 5)
	v.SetDefault("sync.page_size", 100)
	v.SetDefault("sync.max_pages", 50)
	v.SetDefault("sync.receipt_lookback", 30*24*time.Hour)
	v.SetDefault("sync.manual_sync_cooldown", time.Minute)
	v.SetDefault("sync.run_timeout", 10*time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate 校验必填项
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Session.Backend != "memory" && c.Session.Backend != "redis" {
		errs = append(errs, fmt.Errorf("session.backend must be memory or redis, got %q", c.Session.Backend))
	}
	if c.Session.Backend == "redis" && c.Session.RedisAddr == "" {
		errs = append(errs, errors.New("session.redis_addr is required for the redis backend"))
	}
	if c.Sync.Concurrency <= 0 {
		errs = append(errs, errors.New("sync.concurrency must be positive"))
	}
	if c.IsProduction() {
		if c.Etsy.ClientID == "" {
			errs = append(errs, errors.New("etsy.client_id (ETSY_CLIENT_ID) is required"))
		}
		if c.Etsy.RedirectURI == "" {
			errs = append(errs, errors.New("etsy.redirect_uri (ETSY_REDIRECT_URI) is required"))
		}
		if c.JWT.SecretKey == "" {
			errs = append(errs, errors.New("jwt.secret_key is required in production"))
		}
		if c.Security.TokenEncKey == "" {
			errs = append(errs, errors.New("security.token_enc_key is required in production"))
		}
	}
	return errors.Join(errs...)
}
