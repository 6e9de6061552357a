package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env          string
	Addr         string
	PublicURL    *url.URL
	DBDSN        string
	CookieSecret string
	SessionTTL   time.Duration
	LogLevel     string

	// CookieSecretPrevious still verifies existing cookies after a rotation.
	CookieSecretPrevious string

	// OpTimeout bounds each document store round trip.
	OpTimeout     time.Duration
	TxMaxAttempts int
	FeedLimit     int
	DBMaxConns    int

	RedisAddr    string
	FeedCacheTTL time.Duration

	NATSURL      string
	KafkaBrokers []string
	KafkaTopic   string

	S3 S3Config

	GoogleClientID string
	AppleClientID  string
	JWTSecret      string
	JWTIssuer      string

	// FCMCredentials is a service account JSON file path. FCMProjectID
	// falls back to the project named in that file.
	FCMProjectID   string
	FCMCredentials string

	OTelEndpoint string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func (c S3Config) Enabled() bool { return c.Endpoint != "" }

func Load() (Config, error) {
	return LoadFromEnv(os.Getenv)
}

func LoadFromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV"),
		Addr:         getenv("APP_ADDR"),
		DBDSN:        getenv("APP_DB_DSN"),
		LogLevel:     getenv("APP_LOG_LEVEL"),
		CookieSecret: getenv("APP_COOKIE_SECRET"),

		CookieSecretPrevious: getenv("APP_COOKIE_SECRET_PREVIOUS"),

		RedisAddr:    strings.TrimSpace(getenv("APP_REDIS_ADDR")),
		NATSURL:      strings.TrimSpace(getenv("APP_NATS_URL")),
		KafkaBrokers: parseCSV(getenv("APP_KAFKA_BROKERS")),
		KafkaTopic:   strings.TrimSpace(getenv("APP_KAFKA_TOPIC")),

		S3: S3Config{
			Endpoint:  strings.TrimSpace(getenv("APP_S3_ENDPOINT")),
			AccessKey: getenv("APP_S3_ACCESS_KEY"),
			SecretKey: getenv("APP_S3_SECRET_KEY"),
			Bucket:    strings.TrimSpace(getenv("APP_S3_BUCKET")),
			PublicURL: strings.TrimSpace(getenv("APP_S3_PUBLIC_URL")),
		},

		GoogleClientID: strings.TrimSpace(getenv("APP_GOOGLE_CLIENT_ID")),
		AppleClientID:  strings.TrimSpace(getenv("APP_APPLE_CLIENT_ID")),
		JWTSecret:      getenv("APP_JWT_SECRET"),
		JWTIssuer:      strings.TrimSpace(getenv("APP_JWT_ISSUER")),

		FCMProjectID:   strings.TrimSpace(getenv("APP_FCM_PROJECT_ID")),
		FCMCredentials: getenv("APP_FCM_CREDENTIALS"),

		OTelEndpoint: strings.TrimSpace(getenv("APP_OTEL_ENDPOINT")),
	}

	if cfg.Env == "" {
		cfg.Env = "dev"
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "friendfeed.events"
	}
	if cfg.S3.Bucket == "" {
		cfg.S3.Bucket = "media"
	}

	publicURLRaw := getenv("APP_PUBLIC_URL")
	if publicURLRaw != "" {
		parsed, err := url.Parse(publicURLRaw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_PUBLIC_URL: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return Config{}, errors.New("APP_PUBLIC_URL: must be an absolute URL")
		}
		switch parsed.Scheme {
		case "http", "https":
		default:
			return Config{}, errors.New("APP_PUBLIC_URL: scheme must be http or https")
		}
		cfg.PublicURL = parsed
	}

	var err error
	if cfg.SessionTTL, err = duration(getenv, "APP_SESSION_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OpTimeout, err = duration(getenv, "APP_OP_TIMEOUT", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.FeedCacheTTL, err = duration(getenv, "APP_FEED_CACHE_TTL", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.TxMaxAttempts, err = positiveInt(getenv, "APP_TX_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.FeedLimit, err = positiveInt(getenv, "APP_FEED_LIMIT", 200); err != nil {
		return Config{}, err
	}
	if cfg.DBMaxConns, err = positiveInt(getenv, "APP_DB_MAX_CONNS", 0); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(getenv("APP_S3_USE_SSL")); raw != "" {
		cfg.S3.UseSSL, err = strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("APP_S3_USE_SSL: %w", err)
		}
	}

	switch cfg.Env {
	case "dev", "prod", "test":
	default:
		return Config{}, errors.New("APP_ENV: must be one of dev, test, prod")
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return Config{}, errors.New("APP_KAFKA_TOPIC: required when APP_KAFKA_BROKERS is set")
	}
	if cfg.JWTSecret != "" && len(cfg.JWTSecret) < 32 {
		return Config{}, errors.New("APP_JWT_SECRET: must be at least 32 bytes")
	}

	if cfg.IsProd() {
		if cfg.PublicURL == nil {
			return Config{}, errors.New("APP_PUBLIC_URL: required in prod")
		}
		if cfg.DBDSN == "" {
			return Config{}, errors.New("APP_DB_DSN: required in prod")
		}
		if len(cfg.CookieSecret) < 32 {
			return Config{}, errors.New("APP_COOKIE_SECRET: must be at least 32 bytes in prod")
		}
	}

	return cfg, nil
}

func (c Config) IsProd() bool { return c.Env == "prod" }

func (c Config) CookieSecure() bool {
	if c.PublicURL != nil {
		return c.PublicURL.Scheme == "https"
	}
	return c.IsProd()
}

func duration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return d, nil
}

func positiveInt(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: must be > 0", key)
	}
	return n, nil
}

func parseCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
