// Package config loads and validates the backend's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	General   General   `toml:"general"`
	DB        DB        `toml:"db"`
	OSM       OSM       `toml:"osm"`
	Scheduler Scheduler `toml:"scheduler"`
	Cache     Cache     `toml:"cache"`
	API       API       `toml:"api"`
	Mailer    Mailer    `toml:"mailer"`
	Super     Super     `toml:"super"`
}

type General struct {
	LogLevel     string   `toml:"log_level"`
	Environment  string   `toml:"environment"` // "production", "staging", "development"
	PublicOrigin string   `toml:"public_origin"`
	ShutdownWait Duration `toml:"shutdown_wait"` // grace period for in-flight requests on SIGTERM
	AuditLogPath string   `toml:"audit_log_path"`
}

// DB configures the Postgres connection pool.
type DB struct {
	Host             string   `toml:"host"`
	Port             int      `toml:"port"`
	Name             string   `toml:"name"`
	User             string   `toml:"user"`
	Password         string   `toml:"password"`
	SSLMode          string   `toml:"ssl_mode"`
	MaxOpenConns     int      `toml:"max_open_conns"`
	MaxIdleConns     int      `toml:"max_idle_conns"`
	ConnMaxLifetime  Duration `toml:"conn_max_lifetime"`
	StatementTimeout Duration `toml:"statement_timeout"`
	MigrationsDir    string   `toml:"migrations_dir"`
}

// DSN renders the pgx connection string for this DB config.
func (d DB) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// OSM configures the OpenStreetMap OAuth client and changeset pipeline.
type OSM struct {
	APIServer          string   `toml:"api_server"`
	OAuthServer        string   `toml:"oauth_server"`
	ClientID           string   `toml:"client_id"`
	ClientSecret       string   `toml:"client_secret"`
	Scopes             []string `toml:"scopes"`
	ChangesetComment   string   `toml:"changeset_comment_suffix"`
	RequestsPerSecond  float64  `toml:"requests_per_second"`
	RequestBurst       int      `toml:"request_burst"`
	ChangesetOpenTTL   Duration `toml:"changeset_open_ttl"`
	OverpassServer     string   `toml:"overpass_server"`
	OverpassTimeout    Duration `toml:"overpass_timeout"`
}

// Scheduler configures the background cron job runner.
type Scheduler struct {
	Enabled                bool     `toml:"enabled"`
	LockExpirySweep        string   `toml:"lock_expiry_sweep_cron"`
	ChallengeSchedules     string   `toml:"challenge_schedules_cron"`
	LocationUpdate         string   `toml:"location_update_cron"`
	ImmediateDigest        string   `toml:"immediate_digest_cron"`
	DailyDigest            string   `toml:"daily_digest_cron"`
	CacheSweep             string   `toml:"cache_sweep_cron"`
	TaskLockExpiry         Duration `toml:"task_lock_expiry"`
	OldTaskCleanupInterval Duration `toml:"old_task_cleanup_interval"`
}

// Cache sizes and TTLs for the in-process cache substrate.
type Cache struct {
	ProjectCapacity   int      `toml:"project_capacity"`
	ChallengeCapacity int      `toml:"challenge_capacity"`
	TaskCapacity      int      `toml:"task_capacity"`
	UserCapacity      int      `toml:"user_capacity"`
	OSMObjectCapacity int      `toml:"osm_object_capacity"`
	DefaultTTL        Duration `toml:"default_ttl"`
	OSMObjectTTL      Duration `toml:"osm_object_ttl"`
}

type API struct {
	Bind            string   `toml:"bind"`
	CORSOrigins     []string `toml:"cors_origins"`
	RequestTimeout  Duration `toml:"request_timeout"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
	SessionCookie   string   `toml:"session_cookie_name"`
	SessionTTL      Duration `toml:"session_ttl"`
	MetricsBind     string   `toml:"metrics_bind"`
	EnablePprof     bool     `toml:"enable_pprof"`
}

// Mailer configures outbound digest/notification email.
type Mailer struct {
	Enabled    bool   `toml:"enabled"`
	SMTPHost   string `toml:"smtp_host"`
	SMTPPort   int    `toml:"smtp_port"`
	SMTPUser   string `toml:"smtp_user"`
	SMTPPass   string `toml:"smtp_pass"`
	FromAddr   string `toml:"from_address"`
	DigestFrom string `toml:"digest_from_address"`
}

// Super lists the OSM user IDs granted superuser status at boot, independent
// of the grants table.
type Super struct {
	UserIDs []int64 `toml:"user_ids"`
}

// Clone returns a deep copy of cfg so callers can safely mutate the result.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	cloned.OSM.Scopes = cloneStringSlice(cfg.OSM.Scopes)
	cloned.API.CORSOrigins = cloneStringSlice(cfg.API.CORSOrigins)
	cloned.Super.UserIDs = cloneInt64Slice(cfg.Super.UserIDs)
	return &cloned
}

func cloneStringSlice(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneInt64Slice(in []int64) []int64 {
	if in == nil {
		return nil
	}
	out := make([]int64, len(in))
	copy(out, in)
	return out
}

// Load reads and validates a backend TOML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	normalizePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload reads and validates a backend TOML configuration file.
//
// This mirrors Load but is intentionally named to reflect runtime refresh paths.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// LoadManager reads config from path and returns an RWMutex-backed thread-safe manager.
func LoadManager(path string) (ConfigManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}

	cfg, err := Reload(path)
	if err != nil {
		return nil, err
	}
	return NewRWMutexManager(cfg), nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.ShutdownWait.Duration == 0 {
		cfg.General.ShutdownWait.Duration = 15 * time.Second
	}

	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "prefer"
	}
	if cfg.DB.MaxOpenConns == 0 {
		cfg.DB.MaxOpenConns = 20
	}
	if cfg.DB.MaxIdleConns == 0 {
		cfg.DB.MaxIdleConns = 5
	}
	if cfg.DB.ConnMaxLifetime.Duration == 0 {
		cfg.DB.ConnMaxLifetime.Duration = 30 * time.Minute
	}
	if cfg.DB.StatementTimeout.Duration == 0 {
		cfg.DB.StatementTimeout.Duration = 30 * time.Second
	}
	if cfg.DB.MigrationsDir == "" {
		cfg.DB.MigrationsDir = "migrations"
	}

	if cfg.OSM.APIServer == "" {
		cfg.OSM.APIServer = "https://api.openstreetmap.org"
	}
	if cfg.OSM.OAuthServer == "" {
		cfg.OSM.OAuthServer = "https://www.openstreetmap.org"
	}
	if cfg.OSM.OverpassServer == "" {
		cfg.OSM.OverpassServer = "https://overpass-api.de/api/interpreter"
	}
	if cfg.OSM.RequestsPerSecond == 0 {
		cfg.OSM.RequestsPerSecond = 2
	}
	if cfg.OSM.RequestBurst == 0 {
		cfg.OSM.RequestBurst = 4
	}
	if cfg.OSM.ChangesetOpenTTL.Duration == 0 {
		cfg.OSM.ChangesetOpenTTL.Duration = 10 * time.Minute
	}
	if cfg.OSM.OverpassTimeout.Duration == 0 {
		cfg.OSM.OverpassTimeout.Duration = 25 * time.Second
	}

	if cfg.Scheduler.LockExpirySweep == "" {
		cfg.Scheduler.LockExpirySweep = "@every 1m"
	}
	if cfg.Scheduler.ChallengeSchedules == "" {
		cfg.Scheduler.ChallengeSchedules = "@every 24h"
	}
	if cfg.Scheduler.LocationUpdate == "" {
		cfg.Scheduler.LocationUpdate = "@every 12h"
	}
	if cfg.Scheduler.ImmediateDigest == "" {
		cfg.Scheduler.ImmediateDigest = "@every 1m"
	}
	if cfg.Scheduler.DailyDigest == "" {
		cfg.Scheduler.DailyDigest = "0 20 * * *"
	}
	if cfg.Scheduler.CacheSweep == "" {
		cfg.Scheduler.CacheSweep = "@every 5m"
	}
	if cfg.Scheduler.TaskLockExpiry.Duration == 0 {
		cfg.Scheduler.TaskLockExpiry.Duration = 1 * time.Hour
	}
	if cfg.Scheduler.OldTaskCleanupInterval.Duration == 0 {
		cfg.Scheduler.OldTaskCleanupInterval.Duration = 7 * 24 * time.Hour
	}

	if cfg.Cache.ProjectCapacity == 0 {
		cfg.Cache.ProjectCapacity = 500
	}
	if cfg.Cache.ChallengeCapacity == 0 {
		cfg.Cache.ChallengeCapacity = 2000
	}
	if cfg.Cache.TaskCapacity == 0 {
		cfg.Cache.TaskCapacity = 10000
	}
	if cfg.Cache.UserCapacity == 0 {
		cfg.Cache.UserCapacity = 5000
	}
	if cfg.Cache.OSMObjectCapacity == 0 {
		cfg.Cache.OSMObjectCapacity = 20000
	}
	if cfg.Cache.DefaultTTL.Duration == 0 {
		cfg.Cache.DefaultTTL.Duration = 15 * time.Minute
	}
	if cfg.Cache.OSMObjectTTL.Duration == 0 {
		cfg.Cache.OSMObjectTTL.Duration = 2 * time.Hour
	}

	if cfg.API.Bind == "" {
		cfg.API.Bind = ":9000"
	}
	if cfg.API.RequestTimeout.Duration == 0 {
		cfg.API.RequestTimeout.Duration = 30 * time.Second
	}
	if cfg.API.MaxBodyBytes == 0 {
		cfg.API.MaxBodyBytes = 5 << 20
	}
	if cfg.API.SessionCookie == "" {
		cfg.API.SessionCookie = "maproulette_session"
	}
	if cfg.API.SessionTTL.Duration == 0 {
		cfg.API.SessionTTL.Duration = 24 * time.Hour
	}
	if cfg.API.MetricsBind == "" {
		cfg.API.MetricsBind = ":9001"
	}

	if cfg.Mailer.DigestFrom == "" {
		cfg.Mailer.DigestFrom = cfg.Mailer.FromAddr
	}
}

// normalizePaths expands "~" and trims whitespace for configured filesystem paths.
func normalizePaths(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.DB.MigrationsDir = ExpandHome(strings.TrimSpace(cfg.DB.MigrationsDir))
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}

// IsSuperuser reports whether the configured superuser list contains id.
func (s Super) IsSuperuser(id int64) bool {
	for _, candidate := range s.UserIDs {
		if candidate == id {
			return true
		}
	}
	return false
}

func validate(cfg *Config) error {
	if cfg.DB.Name == "" {
		return fmt.Errorf("db.name is required")
	}
	if cfg.DB.Host == "" {
		return fmt.Errorf("db.host is required")
	}
	switch strings.ToLower(cfg.DB.SSLMode) {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("db.ssl_mode %q is not a recognised sslmode", cfg.DB.SSLMode)
	}

	if cfg.OSM.ClientID == "" || cfg.OSM.ClientSecret == "" {
		return fmt.Errorf("osm.client_id and osm.client_secret are required")
	}
	if cfg.OSM.RequestsPerSecond <= 0 {
		return fmt.Errorf("osm.requests_per_second must be > 0")
	}

	if cfg.API.MaxBodyBytes <= 0 {
		return fmt.Errorf("api.max_body_bytes must be > 0")
	}

	if cfg.Mailer.Enabled {
		if cfg.Mailer.SMTPHost == "" {
			return fmt.Errorf("mailer.smtp_host is required when mailer.enabled is true")
		}
		if cfg.Mailer.FromAddr == "" {
			return fmt.Errorf("mailer.from_address is required when mailer.enabled is true")
		}
	}

	return nil
}
