package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"discoverly/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Address  string `toml:"address"`
	Password string `toml:"-"`
	DB       int    `toml:"db"`
}

type SMTPConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Username  string `toml:"username"`
	Password  string `toml:"-"`
	FromEmail string `toml:"from_email"`
	FromName  string `toml:"from_name"`
}

type RateLimitConfig struct {
	FeedbackPerMinute int `toml:"feedback_per_minute"`
	VotesPerMinute    int `toml:"votes_per_minute"`
}

type Config struct {
	Environment    string   `toml:"environment"`
	ServerPort     string   `toml:"server_port"`
	LogLevel       string   `toml:"log_level"`
	SentryDSN      string   `toml:"sentry_dsn"`
	AllowedOrigins []string `toml:"allowed_origins"`

	// AuthJWTSecret verifies tokens minted by the identity provider.
	AuthJWTSecret string `toml:"-"`

	DatabaseURL     string        `toml:"-"`
	DBHost          string        `toml:"db_host"`
	DBPort          string        `toml:"db_port"`
	DBUser          string        `toml:"db_user"`
	DBPassword      string        `toml:"-"`
	DBName          string        `toml:"db_name"`
	DBSSLMode       string        `toml:"db_ssl_mode"`
	DBMaxIdleConns  int           `toml:"db_max_idle_conns"`
	DBMaxOpenConns  int           `toml:"db_max_open_conns"`
	DBConnLifetime  time.Duration `toml:"db_conn_lifetime"`
	LeaderboardTTL  time.Duration `toml:"leaderboard_cache_ttl"`
	LeaderboardSize int           `toml:"leaderboard_cache_size"`

	RateLimit RateLimitConfig `toml:"rate_limit"`
	Redis     RedisConfig     `toml:"redis"`
	SMTP      SMTPConfig      `toml:"smtp"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

// DefaultConfig is the configuration before the optional file and the
// environment are applied.
func DefaultConfig() Config {
	return Config{
		Environment:     "development",
		ServerPort:      "5000",
		LogLevel:        "info",
		AllowedOrigins:  []string{"http://localhost:3000"},
		DBHost:          "localhost",
		DBPort:          "5432",
		DBUser:          "postgres",
		DBName:          "discoverly",
		DBSSLMode:       "disable",
		DBMaxIdleConns:  10,
		DBMaxOpenConns:  100,
		DBConnLifetime:  time.Hour,
		LeaderboardTTL:  30 * time.Second,
		LeaderboardSize: 128,
		RateLimit: RateLimitConfig{
			FeedbackPerMinute: 10,
			VotesPerMinute:    60,
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Discoverly",
		},
	}
}

// LoadConfig fills AppConfig from defaults, then CONFIG_FILE (TOML) when
// set, then the environment.
func LoadConfig() error {
	cfg, err := Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		return err
	}
	AppConfig = cfg
	logConfig()
	return nil
}

func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	cfg.ServerPort = getEnv("SERVER_PORT", cfg.ServerPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.SentryDSN = getEnv("SENTRY_DSN", cfg.SentryDSN)
	if origins := getEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
	cfg.AuthJWTSecret = getEnv("AUTH_JWT_SECRET", cfg.AuthJWTSecret)

	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSL_MODE", cfg.DBSSLMode)
	cfg.DBMaxIdleConns = getEnvAsInt("DB_MAX_IDLE_CONNS", cfg.DBMaxIdleConns)
	cfg.DBMaxOpenConns = getEnvAsInt("DB_MAX_OPEN_CONNS", cfg.DBMaxOpenConns)
	cfg.DBConnLifetime = getEnvAsDuration("DB_CONN_MAX_LIFETIME", cfg.DBConnLifetime)
	cfg.LeaderboardTTL = getEnvAsDuration("LEADERBOARD_CACHE_TTL", cfg.LeaderboardTTL)
	cfg.LeaderboardSize = getEnvAsInt("LEADERBOARD_CACHE_SIZE", cfg.LeaderboardSize)

	cfg.RateLimit.FeedbackPerMinute = getEnvAsInt("RATE_LIMIT_FEEDBACK", cfg.RateLimit.FeedbackPerMinute)
	cfg.RateLimit.VotesPerMinute = getEnvAsInt("RATE_LIMIT_VOTES", cfg.RateLimit.VotesPerMinute)

	cfg.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Address = getEnv("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	cfg.SMTP.Port = getEnvAsInt("SMTP_PORT", cfg.SMTP.Port)
	cfg.SMTP.Username = getEnv("SMTP_USERNAME", cfg.SMTP.Username)
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", cfg.SMTP.Password)
	cfg.SMTP.FromEmail = getEnv("SMTP_FROM_EMAIL", cfg.SMTP.FromEmail)
	cfg.SMTP.FromName = getEnv("SMTP_FROM_NAME", cfg.SMTP.FromName)
}

func (c Config) validate() error {
	if c.DatabaseURL == "" && c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.AuthJWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		return fmt.Errorf("REDIS_ADDRESS is required when REDIS_ENABLED is set")
	}
	return nil
}

// DSN prefers DATABASE_URL over the discrete DB_* settings.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode,
	)
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := AppConfig.DSN()
	logrus.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

	gormCfg := &gorm.Config{TranslateError: true}
	if AppConfig.Environment == "production" {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Warn)
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(AppConfig.DBConnLifetime)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logrus.Info("Successfully connected to the database")

	logrus.Info("Starting database migration...")
	if err := models.AutoMigrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":     AppConfig.Environment,
		"server_port":     AppConfig.ServerPort,
		"database":        fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis_limiter":   AppConfig.Redis.Enabled,
		"smtp_configured": AppConfig.SMTP.Host != "",
		"sentry":          AppConfig.SentryDSN != "",
	}).Info("Loaded configuration")
}
