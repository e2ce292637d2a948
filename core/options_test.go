package core

import (
	"context"
	"testing"
)

func TestCfgxConfigProvider_LoadsDefaultsAndOverrides(t *testing.T) {
	provider := NewCfgxConfigProvider(staticRawConfigLoader{Values: map[string]any{
		"service_name": "kyc-workflow",
		"delivery": map[string]any{
			"max_attempts": 5,
		},
	}})

	cfg, err := provider.Load(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ServiceName != "kyc-workflow" {
		t.Fatalf("expected override service name, got %q", cfg.ServiceName)
	}
	if cfg.Delivery.MaxAttempts != 5 {
		t.Fatalf("expected max attempts override, got %d", cfg.Delivery.MaxAttempts)
	}
	if cfg.Delivery.TimeoutSeconds != 30 {
		t.Fatalf("expected default timeout, got %d", cfg.Delivery.TimeoutSeconds)
	}
}

func TestGoOptionsResolver_RuntimeWinsOverLoaded(t *testing.T) {
	defaults := DefaultConfig()
	loaded := DefaultConfig()
	loaded.Delivery.RetryIntervalSeconds = 15
	runtime := Config{}
	runtime.Delivery.RetryIntervalSeconds = 5

	resolved, err := GoOptionsResolver{}.Resolve(defaults, loaded, runtime)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Delivery.RetryIntervalSeconds != 5 {
		t.Fatalf("expected runtime layer to win, got %d", resolved.Delivery.RetryIntervalSeconds)
	}
	if resolved.ServiceName != defaults.ServiceName {
		t.Fatalf("expected default service name, got %q", resolved.ServiceName)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	cfg.Delivery.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure for zero attempts")
	}
}
