package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

type Config struct {
	BackendURL      string
	DataSource      string
	DatabaseURL     string
	DatabaseName    string
	TripLimit       int
	PollInterval    time.Duration
	TickInterval    time.Duration
	SweepInterval   time.Duration
	NotificationTTL time.Duration
	CompletedWindow time.Duration
	RequestTimeout  time.Duration
	AutoRefresh     bool
	HTTPAddr        string
	CORSOrigins     []string
	MetricsAddr     string
	NATSURL         string
	NATSPrefix      string
	RefreshSubject  string
	LogNATSSubjects bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.BackendURL = strings.TrimRight(firstNonEmpty(
		os.Getenv("BACKEND_URL"),
		os.Getenv("API_BASE"),
		"http://localhost:8081",
	), "/")

	cfg.DataSource = strings.ToLower(getenvDefault("DATA_SOURCE", SourceHTTP))
	switch cfg.DataSource {
	case SourceHTTP:
	case SourcePostgres:
		dsn, err := databaseURL()
		if err != nil {
			return nil, err
		}
		cfg.DatabaseURL = dsn
		// Overrides the database named in DATABASE_URL.
		cfg.DatabaseName = os.Getenv("PGDATABASE_OVERRIDE")
	default:
		return nil, fmt.Errorf("invalid DATA_SOURCE: %q", cfg.DataSource)
	}

	var err error
	if cfg.TripLimit, err = positiveInt("TRIP_LIMIT", 50); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = millis("POLL_INTERVAL_MS", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.TickInterval, err = millis("TICK_INTERVAL_MS", time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = millis("SWEEP_INTERVAL_MS", time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = millis("REQUEST_TIMEOUT_MS", 10*time.Second); err != nil {
		return nil, err
	}

	// Notification lifetime (seconds)
	ttl, err := positiveInt("NOTIFICATION_TTL_SEC", 8)
	if err != nil {
		return nil, err
	}
	cfg.NotificationTTL = time.Duration(ttl) * time.Second

	// Completed trips stay on the map for this long after ending (minutes)
	window, err := positiveInt("COMPLETED_WINDOW_MIN", 60)
	if err != nil {
		return nil, err
	}
	cfg.CompletedWindow = time.Duration(window) * time.Minute

	cfg.AutoRefresh = true
	if v := os.Getenv("AUTO_REFRESH"); v != "" {
		cfg.AutoRefresh = parseBool(v)
	}

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8090")
	cfg.CORSOrigins = splitList(getenvDefault("CORS_ORIGINS", "*"))

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	// NATS is optional; empty disables position and notification streaming.
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "tripviz")
	cfg.RefreshSubject = os.Getenv("REFRESH_SUBJECT")
	if cfg.RefreshSubject != "" && cfg.NATSURL == "" {
		return nil, errors.New("REFRESH_SUBJECT requires NATS_URL")
	}

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		cfg.LogNATSSubjects = parseBool(v)
	}

	return cfg, nil
}

// databaseURL prefers DATABASE_URL / PG_DSN, else builds a DSN from PG* vars.
func databaseURL() (string, error) {
	if dsn := firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")); dsn != "" {
		return dsn, nil
	}
	host := getenvDefault("PGHOST", "127.0.0.1")
	port := getenvDefault("PGPORT", "5432")
	user := getenvDefault("PGUSER", "postgres")
	pass := os.Getenv("PGPASSWORD")
	db := os.Getenv("PGDATABASE")
	if db == "" {
		return "", errors.New("PGDATABASE or DATABASE_URL must be set when DATA_SOURCE=postgres")
	}
	sslmode := getenvDefault("PGSSLMODE", "disable")
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode), nil
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode), nil
}

func millis(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return time.Duration(ms) * time.Millisecond, nil
}

func positiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
