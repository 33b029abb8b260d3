package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("querygate-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.Metadata.MaxOpenConns != 20 {
		t.Fatalf("Metadata.MaxOpenConns = %d", cfg.Metadata.MaxOpenConns)
	}
	if cfg.ObjectStore.Endpoint != "localhost:9000" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "querygate-audit" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if cfg.Archive.Interval != 10*time.Minute {
		t.Fatalf("Archive.Interval = %s", cfg.Archive.Interval)
	}
	if cfg.Archive.BatchLimit != 5000 {
		t.Fatalf("Archive.BatchLimit = %d", cfg.Archive.BatchLimit)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"QUERYGATE_PROFILE": "prod"})
	cfg, err := Load("querygate-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
	if cfg.ObjectStore.AutoCreateBucket {
		t.Fatal("ObjectStore.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"QUERYGATE_PROFILE":                 "test",
		"QUERYGATE_SERVICE_NAME":            "querygate-custom",
		"QUERYGATE_HTTP_ADDR":               ":9999",
		"QUERYGATE_HTTP_READ_TIMEOUT":       "2s",
		"QUERYGATE_HTTP_WRITE_TIMEOUT":      "3s",
		"QUERYGATE_LOG_LEVEL":               "error",
		"QUERYGATE_AUTH_REQUIRED":           "true",
		"QUERYGATE_AUTH_STATIC_KEYS":        "k1:u1:t1:viewer",
		"QUERYGATE_METADATA_DSN":            "postgres://example",
		"QUERYGATE_METADATA_MAX_OPEN_CONNS": "42",
		"QUERYGATE_METADATA_MAX_IDLE_CONNS": "17",
		"QUERYGATE_OBJECTSTORE_ENDPOINT":    "s3.example.com",
		"QUERYGATE_OBJECTSTORE_BUCKET":      "audit-prod",
		"QUERYGATE_OBJECTSTORE_REGION":      "us-west-2",
		"QUERYGATE_OBJECTSTORE_ACCESS_KEY":  "abc",
		"QUERYGATE_OBJECTSTORE_SECRET_KEY":  "def",
		"QUERYGATE_OBJECTSTORE_USE_SSL":     "true",
		"QUERYGATE_OBJECTSTORE_PREFIX":      "audit-root",
		"QUERYGATE_ARCHIVE_INTERVAL":        "11m",
		"QUERYGATE_ARCHIVE_MAX_AGE":         "48h",
		"QUERYGATE_ARCHIVE_BATCH_LIMIT":     "777",
	})
	cfg, err := Load("querygate-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "querygate-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:u1:t1:viewer" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
	if cfg.Metadata.DSN != "postgres://example" {
		t.Fatalf("Metadata.DSN = %q", cfg.Metadata.DSN)
	}
	if cfg.Metadata.MaxOpenConns != 42 {
		t.Fatalf("Metadata.MaxOpenConns = %d", cfg.Metadata.MaxOpenConns)
	}
	if cfg.Metadata.MaxIdleConns != 17 {
		t.Fatalf("Metadata.MaxIdleConns = %d", cfg.Metadata.MaxIdleConns)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" {
		t.Fatalf("ObjectStore.Endpoint = %q", cfg.ObjectStore.Endpoint)
	}
	if cfg.ObjectStore.Bucket != "audit-prod" {
		t.Fatalf("ObjectStore.Bucket = %q", cfg.ObjectStore.Bucket)
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL = false, want true")
	}
	if cfg.Archive.Interval != 11*time.Minute {
		t.Fatalf("Archive.Interval = %s", cfg.Archive.Interval)
	}
	if cfg.Archive.MaxAge != 48*time.Hour {
		t.Fatalf("Archive.MaxAge = %s", cfg.Archive.MaxAge)
	}
	if cfg.Archive.BatchLimit != 777 {
		t.Fatalf("Archive.BatchLimit = %d", cfg.Archive.BatchLimit)
	}
}

func TestLoadTestProfileDefaults(t *testing.T) {
	cfg, err := Load("querygate-api", mapLookup(map[string]string{"QUERYGATE_PROFILE": "test"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":18080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"QUERYGATE_PROFILE": "oops"},
		{"QUERYGATE_HTTP_READ_TIMEOUT": "NaN"},
		{"QUERYGATE_METADATA_MAX_OPEN_CONNS": "oops"},
		{"QUERYGATE_ARCHIVE_BATCH_LIMIT": "oops"},
		{"QUERYGATE_ARCHIVE_INTERVAL": "soon"},
		{"QUERYGATE_AUTH_REQUIRED": "not-bool"},
		{"QUERYGATE_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("querygate-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
