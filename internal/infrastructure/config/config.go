package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Cache modes
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheTiered = "tiered"
)

// Config holds all service configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Kafka     KafkaConfig
	Mail      MailConfig
	Service   ServiceConfig
	Log       LogConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// DatabaseConfig selects the customer store and holds SQL connection settings
type DatabaseConfig struct {
	Driver          string // postgres, sqlite, mongo
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	Path            string // sqlite file, ":memory:" for ephemeral stores
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	LogLevel        string
}

// MongoConfig holds document store settings used when Database.Driver is mongo
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig holds the per-id customer cache settings
type CacheConfig struct {
	Mode      string        // none, memory, redis, tiered
	TTL       time.Duration // redis entry lifetime
	L1TTL     time.Duration // in-process entry lifetime
	KeyPrefix string
	Channel   string // pub/sub channel for cross-instance evictions
	// Fallback degrades redis and tiered modes to memory when redis is unreachable
	Fallback bool
}

// KafkaConfig holds the notification producer settings
type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	Topic    string
	ClientID string
}

// MailConfig holds the new-customer notification settings
type MailConfig struct {
	From  string
	Sales string
	Rate  float64 // notifications per second
	Burst int

	// circuit breaker around the broker
	BreakerFailures         int           // consecutive failures that open it
	BreakerOpenTimeout      time.Duration // time spent open before probing
	BreakerHalfOpenRequests int           // trial sends allowed while half-open
}

// ServiceConfig holds the customer service timeouts
type ServiceConfig struct {
	ShortTimeout  time.Duration
	LongTimeout   time.Duration
	NotifyTimeout time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
	// Redact names string fields masked in every entry
	Redact []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// Load reads configuration with this priority (highest first):
// 1. Environment variables with CUSTOMER_ prefix (e.g., CUSTOMER_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given TOML file when path is not empty
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/customer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("CUSTOMER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			Path:            v.GetString("database.path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Mongo: MongoConfig{
			URI:        v.GetString("mongo.uri"),
			Database:   v.GetString("mongo.database"),
			Collection: v.GetString("mongo.collection"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{
			Mode:      strings.ToLower(v.GetString("cache.mode")),
			TTL:       v.GetDuration("cache.ttl"),
			L1TTL:     v.GetDuration("cache.l1_ttl"),
			KeyPrefix: v.GetString("cache.key_prefix"),
			Channel:   v.GetString("cache.channel"),
			Fallback:  v.GetBool("cache.fallback"),
		},
		Kafka: KafkaConfig{
			Enabled:  v.GetBool("kafka.enabled"),
			Brokers:  stringList(v, "kafka.brokers"),
			Topic:    v.GetString("kafka.topic"),
			ClientID: v.GetString("kafka.client_id"),
		},
		Mail: MailConfig{
			From:  v.GetString("mail.from"),
			Sales: v.GetString("mail.sales"),
			Rate:  v.GetFloat64("mail.rate"),
			Burst: v.GetInt("mail.burst"),

			BreakerFailures:         v.GetInt("mail.breaker_failures"),
			BreakerOpenTimeout:      v.GetDuration("mail.breaker_open_timeout"),
			BreakerHalfOpenRequests: v.GetInt("mail.breaker_half_open_requests"),
		},
		Service: ServiceConfig{
			ShortTimeout:  v.GetDuration("service.short_timeout"),
			LongTimeout:   v.GetDuration("service.long_timeout"),
			NotifyTimeout: v.GetDuration("service.notify_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
			Redact: stringList(v, "log.redact"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// stringList reads a list that may come from a file, or from an env value
// separated by commas and optional spaces. viper splits env values on
// whitespace only.
func stringList(v *viper.Viper, key string) []string {
	return splitList(strings.Join(v.GetStringSlice(key), ","))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "customer-service"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "customer"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "customer.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "customer"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "customers"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Cache.Mode == "" {
		cfg.Cache.Mode = CacheMemory
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Cache.L1TTL == 0 {
		cfg.Cache.L1TTL = 30 * time.Second
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "customer:"
	}
	if cfg.Cache.Channel == "" {
		cfg.Cache.Channel = "customer:evictions"
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "customer.mail"
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = cfg.App.Name
	}

	if cfg.Mail.From == "" {
		cfg.Mail.From = "noreply@example.com"
	}
	if cfg.Mail.Sales == "" {
		cfg.Mail.Sales = "sales@example.com"
	}
	if cfg.Mail.Rate == 0 {
		cfg.Mail.Rate = 10
	}
	if cfg.Mail.Burst == 0 {
		cfg.Mail.Burst = 20
	}
	if cfg.Mail.BreakerFailures == 0 {
		cfg.Mail.BreakerFailures = 5
	}
	if cfg.Mail.BreakerOpenTimeout == 0 {
		cfg.Mail.BreakerOpenTimeout = 30 * time.Second
	}
	if cfg.Mail.BreakerHalfOpenRequests == 0 {
		cfg.Mail.BreakerHalfOpenRequests = 1
	}

	if cfg.Service.ShortTimeout == 0 {
		cfg.Service.ShortTimeout = 500 * time.Millisecond
	}
	if cfg.Service.LongTimeout == 0 {
		cfg.Service.LongTimeout = 2 * time.Second
	}
	if cfg.Service.NotifyTimeout == 0 {
		cfg.Service.NotifyTimeout = 5 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if len(cfg.Log.Redact) == 0 {
		cfg.Log.Redact = []string{"email"}
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMongo:
	default:
		return fmt.Errorf("database.driver must be one of postgres, sqlite, mongo, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Cache.Mode {
	case CacheNone, CacheMemory, CacheRedis, CacheTiered:
	default:
		return fmt.Errorf("cache.mode must be one of none, memory, redis, tiered, got %q", c.Cache.Mode)
	}

	if c.Service.ShortTimeout <= 0 || c.Service.LongTimeout <= 0 || c.Service.NotifyTimeout <= 0 {
		return fmt.Errorf("service timeouts must be positive")
	}
	if c.Service.ShortTimeout > c.Service.LongTimeout {
		return fmt.Errorf("service.short_timeout (%s) cannot exceed service.long_timeout (%s)",
			c.Service.ShortTimeout, c.Service.LongTimeout)
	}

	if c.Kafka.Enabled && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka is enabled")
	}
	if c.Mail.Rate < 0 || c.Mail.Burst < 0 {
		return fmt.Errorf("mail.rate and mail.burst cannot be negative")
	}
	if c.Mail.BreakerFailures < 0 || c.Mail.BreakerOpenTimeout < 0 || c.Mail.BreakerHalfOpenRequests < 0 {
		return fmt.Errorf("mail.breaker_failures, mail.breaker_open_timeout and mail.breaker_half_open_requests cannot be negative")
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.Database.Driver == DriverPostgres {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

// IsProduction reports whether the service runs in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the PostgreSQL connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
