package config

import (
	"errors"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		AppEnv:          "dev",
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		Env:             "production",
		StoreType:       "memory",
		SDKKey:          "sdk-test-key",
		AdminAPIKey:     "admin-123",
		SSEHeartbeat:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr == "" || cfg.MetricsAddr == "" {
		t.Errorf("missing default addresses: %+v", cfg)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("default store type = %q", cfg.StoreType)
	}
	if cfg.SSEHeartbeat != 30*time.Second {
		t.Errorf("default heartbeat = %v", cfg.SSEHeartbeat)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate in dev: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string // failing field, empty for ok
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad store type", mutate: func(c *Config) { c.StoreType = "redis" }, wantErr: "STORE_TYPE"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StoreType = "postgres" }, wantErr: "DB_DSN"},
		{name: "empty http addr", mutate: func(c *Config) { c.HTTPAddr = "" }, wantErr: "APP_HTTP_ADDR"},
		{name: "empty metrics addr", mutate: func(c *Config) { c.MetricsAddr = "" }, wantErr: "METRICS_ADDR"},
		{name: "empty env", mutate: func(c *Config) { c.Env = "" }, wantErr: "ENV"},
		{name: "zero heartbeat", mutate: func(c *Config) { c.SSEHeartbeat = 0 }, wantErr: "SSE_HEARTBEAT"},
		{name: "default sdk key in prod", mutate: func(c *Config) { c.AppEnv = "prod" }, wantErr: "SDK_KEY"},
		{
			name: "default admin key in prod",
			mutate: func(c *Config) {
				c.AppEnv = "prod"
				c.SDKKey = "real-key"
			},
			wantErr: "ADMIN_API_KEY",
		},
		{
			name: "prod with real keys",
			mutate: func(c *Config) {
				c.AppEnv = "prod"
				c.SDKKey = "real-key"
				c.AdminAPIKey = "real-admin"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantErr {
				t.Errorf("failing field = %q, want %q", verr.Field, tt.wantErr)
			}
		})
	}
}
