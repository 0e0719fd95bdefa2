package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/damoang/recipe-cms/internal/domain"
	"github.com/damoang/recipe-cms/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	CORS      CORSConfig      `yaml:"cors"`
	Jobs      JobsConfig      `yaml:"jobs"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"dbname"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// GetDSN returns the MySQL DSN.
// clientFoundRows: RowsAffected는 변경이 아닌 매칭 행 수 (조건부 UPDATE 판정에 사용)
func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&clientFoundRows=true",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

// JobsConfig scheduled editorial jobs
type JobsConfig struct {
	Enabled               bool          `yaml:"enabled"`
	TickInterval          time.Duration `yaml:"tick_interval"`
	AutoCopydeskAfter     time.Duration `yaml:"auto_copydesk_after"`
	AutoCopydeskEvery     time.Duration `yaml:"auto_copydesk_every"`
	ScheduledPublishEvery time.Duration `yaml:"scheduled_publish_every"`
	BatchSize             int           `yaml:"batch_size"`
}

// RateLimitConfig per-actor limit on write endpoints; 0 disables it
type RateLimitConfig struct {
	WritesPerMinute int `yaml:"writes_per_minute"`
}

// WorkflowConfig per post type workflow overrides (workflow.post_types.<type>)
type WorkflowConfig struct {
	PostTypes map[string]*domain.WorkflowConfig `yaml:"post_types"`
}

// Load reads the YAML config file and applies environment overrides
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.Warn("config file %s not found, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8082, Mode: "debug"},
		Database: DatabaseConfig{Host: "localhost", Port: 3306, MaxIdleConns: 10, MaxOpenConns: 50, ConnMaxLifetime: time.Hour},
		Redis:    RedisConfig{Host: "localhost", Port: 6379, PoolSize: 10},
		JWT:      JWTConfig{ExpiresIn: 15 * time.Minute},
		Jobs: JobsConfig{
			TickInterval:          30 * time.Second,
			AutoCopydeskAfter:     48 * time.Hour,
			AutoCopydeskEvery:     15 * time.Minute,
			ScheduledPublishEvery: time.Minute,
			BatchSize:             100,
		},
		RateLimit: RateLimitConfig{WritesPerMinute: 60},
	}
}

// applyEnv 환경 변수가 YAML 값보다 우선
func applyEnv(cfg *Config) {
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.RateLimit.WritesPerMinute, "RATE_LIMIT_WRITES_PER_MINUTE")
	if v := os.Getenv("JOBS_ENABLED"); v != "" {
		cfg.Jobs.Enabled, _ = strconv.ParseBool(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// LogResolved logs the effective (non-secret) settings
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Str("db_host", cfg.Database.Host).
		Int("db_port", cfg.Database.Port).
		Str("db_name", cfg.Database.DBName).
		Str("redis_host", cfg.Redis.Host).
		Int("server_port", cfg.Server.Port).
		Bool("jobs_enabled", cfg.Jobs.Enabled).
		Int("workflow_overrides", len(cfg.Workflow.PostTypes)).
		Msg("config resolved")
}
