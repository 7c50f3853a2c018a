package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type SpacesConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	CDNURL    string
	AccessKey string
	SecretKey string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Config holds environment-based settings
type Config struct {
	Environment    string
	LogLevel       string
	ServerAddress  string
	DatabaseURL    string
	MigrationsPath string
	JWTSecret      string

	SessionTTL         time.Duration
	MaxSessions        int
	SweepInterval      time.Duration
	CookieSecure       bool
	LoginRatePerMinute int

	LDAPURL     string
	LDAPDomain  string
	LDAPTimeout time.Duration

	DeviceTimeout         time.Duration
	DeviceAgentPort       int
	DeviceTokenTTL        time.Duration
	PingInterval          time.Duration
	PlaylistCheckInterval time.Duration

	RedisAddress  string
	RedisUsername string
	RedisPassword string
	ETagTTL       time.Duration

	MQTTBrokerURL string
	MQTTClientID  string

	StorageBackend string
	UploadDir      string
	MaxUploadMB    int
	Spaces         SpacesConfig
	MinIO          MinIOConfig

	AllowedNetworks string
	CORSOrigins     []string
}

// Load reads a .env file when present, then environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("[config] could not read .env")
	}

	var problems []string
	cfg := &Config{
		Environment:    getenv("APP_ENV", "production"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		ServerAddress:  getenv("SERVER_ADDRESS", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: getenv("MIGRATIONS_PATH", "./migrations"),
		JWTSecret:      os.Getenv("JWT_SECRET"),

		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour, &problems),
		MaxSessions:        getInt("SESSION_MAX_PER_USER", 5, &problems),
		SweepInterval:      getDuration("SESSION_SWEEP_INTERVAL", time.Hour, &problems),
		CookieSecure:       getBool("COOKIE_SECURE", false, &problems),
		LoginRatePerMinute: getInt("LOGIN_RATE_PER_MINUTE", 10, &problems),

		LDAPURL:     os.Getenv("LDAP_URL"),
		LDAPDomain:  os.Getenv("LDAP_DOMAIN"),
		LDAPTimeout: getDuration("LDAP_TIMEOUT", 5*time.Second, &problems),

		DeviceTimeout:         getDuration("DEVICE_TIMEOUT", 5*time.Second, &problems),
		DeviceAgentPort:       getInt("DEVICE_AGENT_PORT", 8000, &problems),
		DeviceTokenTTL:        getDuration("DEVICE_TOKEN_TTL", 24*time.Hour, &problems),
		PingInterval:          getDuration("PING_INTERVAL", 5*time.Minute, &problems),
		PlaylistCheckInterval: getDuration("PLAYLIST_CHECK_INTERVAL", time.Minute, &problems),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisUsername: os.Getenv("REDIS_USERNAME"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		ETagTTL:       getDuration("ETAG_TTL", 24*time.Hour, &problems),

		MQTTBrokerURL: os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:  getenv("MQTT_CLIENT_ID", "vidcast-server"),

		StorageBackend: strings.ToLower(getenv("STORAGE_BACKEND", "local")),
		UploadDir:      getenv("UPLOAD_DIR", "./uploads"),
		MaxUploadMB:    getInt("MAX_UPLOAD_MB", 2048, &problems),
		Spaces: SpacesConfig{
			Endpoint:  os.Getenv("SPACES_ENDPOINT"),
			Region:    getenv("SPACES_REGION", "us-east-1"),
			Bucket:    os.Getenv("SPACES_BUCKET"),
			CDNURL:    os.Getenv("SPACES_CDN_URL"),
			AccessKey: os.Getenv("SPACES_ACCESS_KEY"),
			SecretKey: os.Getenv("SPACES_SECRET_KEY"),
		},
		MinIO: MinIOConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			Bucket:    getenv("MINIO_BUCKET", "videos"),
			UseSSL:    getBool("MINIO_USE_SSL", false, &problems),
		},

		AllowedNetworks: os.Getenv("ALLOWED_NETWORKS"),
		CORSOrigins:     splitList(os.Getenv("CORS_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	switch cfg.StorageBackend {
	case "local":
	case "spaces":
		if cfg.Spaces.Endpoint == "" || cfg.Spaces.Bucket == "" || cfg.Spaces.AccessKey == "" || cfg.Spaces.SecretKey == "" {
			problems = append(problems, "STORAGE_BACKEND=spaces needs SPACES_ENDPOINT, SPACES_BUCKET, SPACES_ACCESS_KEY and SPACES_SECRET_KEY")
		}
	case "minio":
		if cfg.MinIO.Endpoint == "" || cfg.MinIO.AccessKey == "" || cfg.MinIO.SecretKey == "" {
			problems = append(problems, "STORAGE_BACKEND=minio needs MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORAGE_BACKEND %q is not one of local, spaces, minio", cfg.StorageBackend))
	}
	if cfg.MaxSessions < 1 {
		problems = append(problems, "SESSION_MAX_PER_USER must be at least 1")
	}

	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return cfg, nil
}

// ValidateServer checks what only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if len(c.JWTSecret) < 16 {
		return errors.New("JWT_SECRET is required and must be at least 16 characters")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration, problems *[]string) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		*problems = append(*problems, fmt.Sprintf("%s must be a positive duration like 30s or 24h, got %q", key, raw))
		return fallback
	}
	return d
}

func getInt(key string, fallback int, problems *[]string) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be an integer, got %q", key, raw))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, problems *[]string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*problems = append(*problems, fmt.Sprintf("%s must be true or false, got %q", key, raw))
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
