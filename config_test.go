package pubstatic

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Revalidate != time.Hour {
		t.Errorf("Revalidate = %v, want 1h", cfg.Revalidate)
	}
	if cfg.Database.Driver != driverSQLite || cfg.Database.Table != "company_blog_posts" {
		t.Errorf("unexpected database defaults: %+v", cfg.Database)
	}
	if cfg.NATS.Subject != "blog.posts.changed" {
		t.Errorf("NATS.Subject = %q", cfg.NATS.Subject)
	}
	if cfg.Publisher != cfg.Name {
		t.Errorf("Publisher = %q, want site name %q", cfg.Publisher, cfg.Name)
	}
}

func TestLoadConfigYAMLAndEnv(t *testing.T) {
	path := writeFile(t, "pubstatic.yaml", `
name: Acme Blog
url: https://blog.example.com
revalidate: 10m
database:
  driver: postgres
  dsn: postgres://localhost/acme
redis:
  addr: localhost:6379
`)
	t.Setenv("SITE_NAME", "Acme Engineering")
	t.Setenv("STORE_TIMEOUT", "3s")
	t.Setenv("METRICS_ENABLED", "true")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "Acme Engineering" {
		t.Errorf("Name = %q, env should override yaml", cfg.Name)
	}
	if cfg.Revalidate != 10*time.Minute {
		t.Errorf("Revalidate = %v, want 10m", cfg.Revalidate)
	}
	if cfg.StoreTimeout != 3*time.Second {
		t.Errorf("StoreTimeout = %v, want 3s", cfg.StoreTimeout)
	}
	if !cfg.MetricsEnabled {
		t.Error("MetricsEnabled should be true")
	}
	if cfg.Database.Driver != driverPostgres || cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("unexpected backends: %+v %+v", cfg.Database, cfg.Redis)
	}
}

func TestLoadConfigPrebuildInterval(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PrebuildInterval != time.Hour || !cfg.PrebuildEnabled() {
		t.Errorf("PrebuildInterval = %v, want enabled at 1h by default", cfg.PrebuildInterval)
	}

	path := writeFile(t, "pubstatic.yaml", "prebuild_interval: -1s\n")
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("negative prebuild_interval should disable prebuilding, got %v", err)
	}
	if cfg.PrebuildEnabled() {
		t.Errorf("PrebuildEnabled() = true for interval %v", cfg.PrebuildInterval)
	}

	t.Setenv("PREBUILD_INTERVAL", "-1m")
	cfg, err = LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.PrebuildEnabled() {
		t.Error("PREBUILD_INTERVAL=-1m should disable prebuilding")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{"relative url", "url: /blog\n", nil},
		{"bad driver", "database:\n  driver: mysql\n  dsn: x\n", nil},
		{"bad body format", "body_format: rst\n", nil},
		{"admin without secret", "admin_password: hunter2\n", nil},
		{"bad duration env", "", map[string]string{"REVALIDATE": "soon"}},
		{"negative revalidate", "revalidate: -1m\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, "pubstatic.yaml", tt.yaml)
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}

	path := writeFile(t, ".env", "PUBSTATIC_TEST_VALUE=from-file\n")
	t.Setenv("PUBSTATIC_TEST_VALUE", "")
	os.Unsetenv("PUBSTATIC_TEST_VALUE")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile failed: %v", err)
	}
	if got := os.Getenv("PUBSTATIC_TEST_VALUE"); got != "from-file" {
		t.Errorf("PUBSTATIC_TEST_VALUE = %q, want from-file", got)
	}
}
