package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Seat assignment policies supported by the roster builder.
const (
	SeatPolicyComputed = "computed"
	SeatPolicyDirect   = "direct"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Workbook  WorkbookConfig
	Roster    RosterConfig
	Retry     RetryConfig
	Broadcast BroadcastConfig
	Redis     RedisConfig
	Audit     AuditConfig
	CORS      CORSConfig
	Log       LogConfig
}

// WorkbookConfig describes the spreadsheet ledger backing the service.
type WorkbookConfig struct {
	Path             string
	SeatPolicy       string
	SeatsPerRow      int
	AttendanceColumn string
	Timezone         string
}

// RosterConfig tunes the read-through roster cache.
type RosterConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// RetryConfig governs the attendance write retry policy.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// BroadcastConfig tunes the live-viewer fan-out.
type BroadcastConfig struct {
	BufferSize        int
	KeepaliveInterval time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuditConfig controls the optional attendance audit trail.
type AuditConfig struct {
	Enabled  bool
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	policy := strings.ToLower(v.GetString("SEAT_POLICY"))
	if policy != SeatPolicyComputed && policy != SeatPolicyDirect {
		return nil, fmt.Errorf("invalid SEAT_POLICY %q: must be %q or %q", policy, SeatPolicyComputed, SeatPolicyDirect)
	}

	attendanceCol := strings.ToUpper(v.GetString("ATTENDANCE_COLUMN"))
	if attendanceCol == "" {
		// Computed sheets carry six data columns, direct sheets seven;
		// the attendance timestamp lands in the first free column.
		if policy == SeatPolicyDirect {
			attendanceCol = "H"
		} else {
			attendanceCol = "G"
		}
	}

	cfg.Workbook = WorkbookConfig{
		Path:             v.GetString("WORKBOOK_PATH"),
		SeatPolicy:       policy,
		SeatsPerRow:      v.GetInt("SEATS_PER_ROW"),
		AttendanceColumn: attendanceCol,
		Timezone:         v.GetString("DISPLAY_TIMEZONE"),
	}

	cfg.Roster = RosterConfig{
		CacheEnabled: v.GetBool("ENABLE_ROSTER_CACHE"),
		CacheTTL:     parseDuration(v.GetString("ROSTER_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Retry = RetryConfig{
		MaxAttempts:    v.GetInt("WRITE_RETRY_ATTEMPTS"),
		InitialBackoff: parseDuration(v.GetString("WRITE_RETRY_BACKOFF"), time.Second),
	}

	cfg.Broadcast = BroadcastConfig{
		BufferSize:        v.GetInt("EVENT_BUFFER_SIZE"),
		KeepaliveInterval: parseDuration(v.GetString("EVENT_KEEPALIVE_INTERVAL"), 30*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT_LOG"),
		Database: DatabaseConfig{
			Host:         v.GetString("DB_HOST"),
			Port:         v.GetInt("DB_PORT"),
			User:         v.GetString("DB_USER"),
			Password:     v.GetString("DB_PASSWORD"),
			Name:         v.GetString("DB_NAME"),
			SSLMode:      v.GetString("DB_SSL_MODE"),
			MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		},
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("WORKBOOK_PATH", "./data/ceremonias.xlsx")
	v.SetDefault("SEAT_POLICY", SeatPolicyComputed)
	v.SetDefault("SEATS_PER_ROW", 21)
	v.SetDefault("ATTENDANCE_COLUMN", "")
	v.SetDefault("DISPLAY_TIMEZONE", "America/Guayaquil")

	v.SetDefault("ENABLE_ROSTER_CACHE", false)
	v.SetDefault("ROSTER_CACHE_TTL", "5m")

	v.SetDefault("WRITE_RETRY_ATTEMPTS", 3)
	v.SetDefault("WRITE_RETRY_BACKOFF", "1s")

	v.SetDefault("EVENT_BUFFER_SIZE", 16)
	v.SetDefault("EVENT_KEEPALIVE_INTERVAL", "30s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_AUDIT_LOG", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "ceremonia")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
