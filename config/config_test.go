package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  addr: ":8090"
  api_token: "secret"
registry:
  backend: "memory"
validation:
  capabilities:
    saloon:
      max_passengers: 3
      excluded_types: ["minibus", "coach"]
availability:
  search_radius_minutes: 90
  step_minutes: 30
fare:
  zones:
    - name: "Airport"
      zone_type: "dropoff"
      areas: ["airport"]
      fare: 45
  rate:
    base_fare: 3
    per_mile: 2.2
    minimum_fare: 10
  client_overrides:
    - client_id: "acme"
      use_custom: true
      zones:
        - name: "Account Airport"
          zone_type: "dropoff"
          areas: ["airport"]
          fare: 38
schedule:
  prefer_client_affinity: true
metrics:
  prometheus_enabled: true
board:
  enabled: true
  broker: "tcp://localhost:1883"
  topic_prefix: "screens"
routing:
  enabled: true
  base_url: "https://routes.example.com"
  cache_enabled: true
  cache_url: "redis://localhost:6379/0"
audit:
  backend: "sqlite"
  path: "audit.db"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":8090"},
		{"server.api_token", cfg.Server.APIToken, "secret"},
		{"registry.backend", cfg.Registry.Backend, "memory"},
		{"validation.saloon.max", cfg.Validation.Capabilities["saloon"].MaxPassengers, 3},
		{"availability.radius", cfg.Availability.SearchRadiusMinutes, 90},
		{"availability.step", cfg.Availability.StepMinutes, 30},
		{"fare.zone", len(cfg.Fare.Zones) == 1 && cfg.Fare.Zones[0].Name == "Airport", true},
		{"fare.rate", cfg.Fare.Rate != nil && cfg.Fare.Rate.PerMile == 2.2, true},
		{"fare.client_override", len(cfg.Fare.ClientOverrides) == 1 && cfg.Fare.ClientOverrides[0].ClientID == "acme" && cfg.Fare.ClientOverrides[0].UseCustom, true},
		{"schedule.affinity", cfg.Schedule.PreferClientAffinity, true},
		{"metrics.prometheus", cfg.Metrics.PrometheusEnabled, true},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":9090"},
		{"board.broker", cfg.Board.Broker, "tcp://localhost:1883"},
		{"board.topic_prefix", cfg.Board.TopicPrefix, "screens"},
		{"routing.base_url", cfg.Routing.BaseURL, "https://routes.example.com"},
		{"routing.timeout_default", cfg.Routing.TimeoutMS, 5000},
		{"audit.backend", cfg.Audit.Backend, "sqlite"},
		{"audit.path", cfg.Audit.Path, "audit.db"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr: %s", cfg.Server.Addr)
	}
	if cfg.Registry.Backend != "memory" {
		t.Errorf("default registry backend: %s", cfg.Registry.Backend)
	}
	if cfg.Audit.Backend != "jsonl" || cfg.Audit.Path != "allocations.log" {
		t.Errorf("default audit config: %+v", cfg.Audit)
	}
	if cfg.Validation.Capabilities["saloon"].MaxPassengers != 3 {
		t.Errorf("default capability table missing: %+v", cfg.Validation.Capabilities)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("registry:\n  backend: \"dynamo\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown registry backend")
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
