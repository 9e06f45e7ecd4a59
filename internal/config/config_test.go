package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Gateway.Driver != DriverREST {
		t.Fatalf("Driver = %q, want %q", cfg.Gateway.Driver, DriverREST)
	}
	if cfg.Gateway.Table != defaultTable {
		t.Fatalf("Table = %q, want %q", cfg.Gateway.Table, defaultTable)
	}
	if cfg.Gateway.RequestTimeout != 0 {
		t.Fatalf("RequestTimeout = %v, want 0", cfg.Gateway.RequestTimeout)
	}
	if cfg.Sync.PollInterval != 5*time.Second {
		t.Fatalf("PollInterval = %v, want 5s", cfg.Sync.PollInterval)
	}

	wantDB, err := expandPath(defaultStoragePath)
	if err != nil {
		t.Fatalf("expandPath(defaultStoragePath) returned error: %v", err)
	}
	if cfg.Storage.Path != wantDB {
		t.Fatalf("Storage.Path = %q, want %q", cfg.Storage.Path, wantDB)
	}
	if !strings.HasPrefix(cfg.Log.Path, home) {
		t.Fatalf("Log.Path = %q, want it under HOME %q", cfg.Log.Path, home)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
[gateway]
driver = " Postgres "
url = "  https://abc.supabase.co  "
api_key = " anon "
table = " orders_v2 "
dsn = " postgres://kds@localhost/kds "
request_timeout = "15s"

[sync]
poll_interval = "2s"

[storage]
path = "  ~/kds/galley.db  "

[log]
path = "~/kds/galley.log"
level = " DEBUG "

[webhook]
url = " https://abc.supabase.co/functions/v1/webhook-kds "
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	g := cfg.Gateway
	if g.Driver != DriverPostgres || g.URL != "https://abc.supabase.co" || g.APIKey != "anon" || g.Table != "orders_v2" {
		t.Fatalf("gateway = %#v", g)
	}
	if g.DSN != "postgres://kds@localhost/kds" {
		t.Fatalf("DSN = %q", g.DSN)
	}
	if g.RequestTimeout != 15*time.Second {
		t.Fatalf("RequestTimeout = %v, want 15s", g.RequestTimeout)
	}
	if cfg.Sync.PollInterval != 2*time.Second {
		t.Fatalf("PollInterval = %v, want 2s", cfg.Sync.PollInterval)
	}
	if cfg.Storage.Path != filepath.Join(home, "kds", "galley.db") {
		t.Fatalf("Storage.Path = %q, want it under HOME", cfg.Storage.Path)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Webhook.URL != "https://abc.supabase.co/functions/v1/webhook-kds" {
		t.Fatalf("Webhook.URL = %q", cfg.Webhook.URL)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
[gateway]
driver = "   "
table = ""

[sync]
poll_interval = ""

[log]
level = ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Default()
	if cfg.Gateway.Driver != want.Gateway.Driver || cfg.Gateway.Table != want.Gateway.Table {
		t.Fatalf("gateway = %#v, want defaults", cfg.Gateway)
	}
	if cfg.Sync.PollInterval != want.Sync.PollInterval {
		t.Fatalf("PollInterval = %v, want %v", cfg.Sync.PollInterval, want.Sync.PollInterval)
	}
	if cfg.Log != want.Log {
		t.Fatalf("Log = %#v, want %#v", cfg.Log, want.Log)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := writeConfig(t, `[gateway`)
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidDurations(t *testing.T) {
	tests := map[string]string{
		"malformed": "[sync]\npoll_interval = \"soon\"\n",
		"negative":  "[gateway]\nrequest_timeout = \"-1s\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			if err == nil || !strings.Contains(err.Error(), "parse config") {
				t.Fatalf("Load error = %v, want parse config error", err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		gateway GatewayConfig
		wantErr string
	}{
		{name: "rest ok", gateway: GatewayConfig{Driver: DriverREST, URL: "https://x.supabase.co"}},
		{name: "rest without url", gateway: GatewayConfig{Driver: DriverREST}, wantErr: "gateway.url"},
		{name: "postgres ok", gateway: GatewayConfig{Driver: DriverPostgres, DSN: "postgres://x"}},
		{name: "postgres without dsn", gateway: GatewayConfig{Driver: DriverPostgres}, wantErr: "gateway.dsn"},
		{name: "unknown driver", gateway: GatewayConfig{Driver: "mqtt"}, wantErr: "unknown gateway driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{Gateway: tt.gateway}.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
