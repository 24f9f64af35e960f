package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig(env string) Config {
	return Config{
		App:   AppConfig{Env: env, Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "listenlink"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig("production")
	c.Auth.JWTIssuer = "listenlink"
	c.Auth.JWTAudience = "listenlink-clients"
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "DB_SSLMODE") {
		t.Fatalf("expected error for production without DB_SSLMODE, got %v", err)
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validConfig("local")
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
	if c.Calls.RingWindow != 30*time.Second || c.Calls.InvitesPerMinute != 10 || c.Calls.PresenceTTL != time.Minute || c.Calls.MaxCallDuration != 4*time.Hour {
		t.Fatalf("unexpected call defaults %+v", c.Calls)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "listenlink")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6379")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CALL_RING_WINDOW", "45s")
	t.Setenv("CALL_INVITES_PER_MINUTE", "3")
	t.Setenv("CALL_MAX_DURATION", "2h")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Redis.DB != 3 {
		t.Fatalf("expected redis db 3, got %d", c.Redis.DB)
	}
	if c.HTTPAddr() != ":9000" || c.RedisAddr() != "cache:6379" {
		t.Fatalf("unexpected addrs %q %q", c.HTTPAddr(), c.RedisAddr())
	}
	if c.Calls.RingWindow != 45*time.Second || c.Calls.InvitesPerMinute != 3 || c.Calls.MaxCallDuration != 2*time.Hour {
		t.Fatalf("unexpected call config %+v", c.Calls)
	}
}

func TestLoad_AggregatesParseErrors(t *testing.T) {
	t.Setenv("APP_PORT", "x")
	t.Setenv("DB_PORT", "")
	t.Setenv("REDIS_PORT", "")
	_, err := Load()
	if err == nil || !strings.HasPrefix(err.Error(), "config errors:") {
		t.Fatalf("expected aggregated errors, got %v", err)
	}
}

func TestLoadClient_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("LISTENLINK_API_URL", "http://localhost:8080")
	t.Setenv("LISTENLINK_TOKEN", "tok")
	t.Setenv("LISTENLINK_MODE", "")
	t.Setenv("LISTENLINK_LOG_FILE", "")

	c, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if c.Mode != ModePoll || c.LogFile != "listenlink.log" || c.Env != "local" {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.IncomingInterval != 3*time.Second || c.OutgoingInterval != 2*time.Second || c.RingTimeout != 30*time.Second || c.DeclinedDisplay != 3*time.Second {
		t.Fatalf("unexpected intervals %+v", c)
	}
}

func TestClientValidate_RejectsBadValues(t *testing.T) {
	c := ClientConfig{APIURL: "ftp://x", Mode: "carrier-pigeon"}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"LISTENLINK_API_URL", "LISTENLINK_TOKEN", "LISTENLINK_MODE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %v", want, err)
		}
	}
}
