package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Server != "Cadence" {
		t.Errorf("Server = %q, want Cadence", cfg.Server)
	}
	if cfg.Watch.Mode != WatchModeLocal {
		t.Errorf("Watch.Mode = %q, want local", cfg.Watch.Mode)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Errorf("Queue.MaxRetries = %d, want 3", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.RetryBaseDelay != time.Second {
		t.Errorf("Queue.RetryBaseDelay = %v, want 1s", cfg.Queue.RetryBaseDelay)
	}
	if cfg.Connectivity.ProbeInterval != 15*time.Second {
		t.Errorf("ProbeInterval = %v, want 15s", cfg.Connectivity.ProbeInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRADE_SERVER", "Harmony")
	t.Setenv("QUEUE_MAX_RETRIES", "5")
	t.Setenv("QUEUE_RETRY_BASE_DELAY", "250ms")
	t.Setenv("WATCH_MODE", "remote")
	t.Setenv("WATCH_REMOTE_FEED_URL", "ws://host:9000/feed")

	cfg := Load()
	if cfg.Server != "Harmony" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.Queue.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("RetryBaseDelay = %v", cfg.Queue.RetryBaseDelay)
	}
	if cfg.Watch.Mode != WatchModeRemote || cfg.Watch.RemoteFeedURL != "ws://host:9000/feed" {
		t.Errorf("Watch = %+v", cfg.Watch)
	}
}

func TestLoadIgnoresUnparseableValues(t *testing.T) {
	t.Setenv("QUEUE_MAX_RETRIES", "lots")
	t.Setenv("QUEUE_RETRY_BASE_DELAY", "soon")

	cfg := Load()
	if cfg.Queue.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.Queue.MaxRetries)
	}
	if cfg.Queue.RetryBaseDelay != time.Second {
		t.Errorf("RetryBaseDelay = %v, want default 1s", cfg.Queue.RetryBaseDelay)
	}
}

func TestValidate(t *testing.T) {
	cfg := Load()
	if result := cfg.Validate(); !result.Valid() {
		t.Fatalf("defaults must validate, got %v", result.Errors)
	}

	cfg.Queue.MaxRetries = 0
	cfg.Connectivity.ProbeInterval = 100 * time.Millisecond
	cfg.Watch.Mode = "both"
	result := cfg.Validate()
	if result.Valid() {
		t.Fatal("expected validation errors")
	}
	if len(result.Errors) != 3 {
		t.Errorf("errors = %v, want 3", result.Errors)
	}
}

func TestValidateRemoteModeNeedsURL(t *testing.T) {
	cfg := Load()
	cfg.Watch.Mode = WatchModeRemote
	cfg.Watch.RemoteFeedURL = ""
	result := cfg.Validate()
	if result.Valid() {
		t.Fatal("remote mode without a feed URL must not validate")
	}
	if result.Errors[0].Field != "WATCH_REMOTE_FEED_URL" {
		t.Errorf("field = %q", result.Errors[0].Field)
	}
}
