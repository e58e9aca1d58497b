package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "maproulette.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validConfig = `
[general]
log_level = "info"
environment = "test"

[db]
host = "localhost"
port = 5432
name = "maproulette_test"
user = "maproulette"
password = "secret"
ssl_mode = "disable"
max_open_conns = 10

[osm]
client_id = "client-123"
client_secret = "secret-456"

[api]
bind = "127.0.0.1:9000"
`

func TestLoadValidConfig(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.Name != "maproulette_test" {
		t.Errorf("DB.Name = %q, want maproulette_test", cfg.DB.Name)
	}
	if cfg.DB.Port != 5432 {
		t.Errorf("DB.Port = %d, want 5432", cfg.DB.Port)
	}
	if cfg.OSM.ClientID != "client-123" {
		t.Errorf("OSM.ClientID = %q, want client-123", cfg.OSM.ClientID)
	}
	if cfg.API.Bind != "127.0.0.1:9000" {
		t.Errorf("API.Bind = %q, want 127.0.0.1:9000", cfg.API.Bind)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTestConfig(t, validConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB.MaxIdleConns != 5 {
		t.Errorf("DB.MaxIdleConns = %d, want default 5", cfg.DB.MaxIdleConns)
	}
	if cfg.OSM.APIServer != "https://api.openstreetmap.org" {
		t.Errorf("OSM.APIServer = %q, want default", cfg.OSM.APIServer)
	}
	if cfg.OSM.RequestsPerSecond != 2 {
		t.Errorf("OSM.RequestsPerSecond = %v, want default 2", cfg.OSM.RequestsPerSecond)
	}
	if cfg.Cache.TaskCapacity != 10000 {
		t.Errorf("Cache.TaskCapacity = %d, want default 10000", cfg.Cache.TaskCapacity)
	}
	if cfg.Scheduler.TaskLockExpiry.Duration != time.Hour {
		t.Errorf("Scheduler.TaskLockExpiry = %v, want 1h", cfg.Scheduler.TaskLockExpiry)
	}
	if cfg.API.SessionCookie != "maproulette_session" {
		t.Errorf("API.SessionCookie = %q, want default", cfg.API.SessionCookie)
	}
}

func TestLoadMissingDBName(t *testing.T) {
	cfg := `
[db]
host = "localhost"

[osm]
client_id = "id"
client_secret = "secret"
`
	path := writeTestConfig(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing db.name")
	}
	if !strings.Contains(err.Error(), "db.name is required") {
		t.Errorf("expected db.name error, got: %v", err)
	}
}

func TestLoadMissingOSMCredentials(t *testing.T) {
	cfg := `
[db]
host = "localhost"
name = "maproulette"
`
	path := writeTestConfig(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing osm credentials")
	}
	if !strings.Contains(err.Error(), "osm.client_id") {
		t.Errorf("expected osm credentials error, got: %v", err)
	}
}

func TestLoadInvalidSSLMode(t *testing.T) {
	cfg := strings.Replace(validConfig, `ssl_mode = "disable"`, `ssl_mode = "nonsense"`, 1)
	path := writeTestConfig(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid ssl_mode")
	}
	if !strings.Contains(err.Error(), "not a recognised sslmode") {
		t.Errorf("expected sslmode error, got: %v", err)
	}
}

func TestLoadMailerRequiresHostAndFromWhenEnabled(t *testing.T) {
	cfg := validConfig + `

[mailer]
enabled = true
`
	path := writeTestConfig(t, cfg)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for enabled mailer missing smtp_host/from_address")
	}
}

func TestLoadMailerValid(t *testing.T) {
	cfg := validConfig + `

[mailer]
enabled = true
smtp_host = "smtp.example.com"
smtp_port = 587
from_address = "noreply@example.com"
`
	path := writeTestConfig(t, cfg)
	cfg2, err := Load(path)
	if err != nil {
		t.Fatalf("expected valid mailer config to load: %v", err)
	}
	if cfg2.Mailer.DigestFrom != "noreply@example.com" {
		t.Errorf("Mailer.DigestFrom = %q, want it to default to from_address", cfg2.Mailer.DigestFrom)
	}
}

func TestLoadSuperUserIDs(t *testing.T) {
	cfg := validConfig + `

[super]
user_ids = [1, 2, 3]
`
	path := writeTestConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Super.IsSuperuser(2) {
		t.Error("expected user 2 to be a superuser")
	}
	if loaded.Super.IsSuperuser(99) {
		t.Error("expected user 99 to not be a superuser")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"60s", 60 * time.Second},
		{"2m", 2 * time.Minute},
		{"1h", time.Hour},
		{"500ms", 500 * time.Millisecond},
	}
	for _, tt := range tests {
		var d Duration
		if err := d.UnmarshalText([]byte(tt.input)); err != nil {
			t.Errorf("UnmarshalText(%q) error: %v", tt.input, err)
			continue
		}
		if d.Duration != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.input, d.Duration, tt.want)
		}
	}
}

func TestDurationUnmarshalInvalid(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("not-a-duration")); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestDSNIncludesAllFields(t *testing.T) {
	db := DB{Host: "localhost", Port: 5432, Name: "maproulette", User: "mr", Password: "pw", SSLMode: "disable"}
	dsn := db.DSN()
	for _, want := range []string{"host=localhost", "port=5432", "dbname=maproulette", "user=mr", "password=pw", "sslmode=disable"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN() = %q, want it to contain %q", dsn, want)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	cfg := &Config{Super: Super{UserIDs: []int64{1, 2}}, OSM: OSM{Scopes: []string{"read_prefs"}}}
	clone := cfg.Clone()
	clone.Super.UserIDs[0] = 99
	if cfg.Super.UserIDs[0] == 99 {
		t.Fatal("Clone should deep-copy Super.UserIDs")
	}
}
