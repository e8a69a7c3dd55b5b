package config

import "testing"

type testConfig struct {
	Addr    string `env:"EDGE_HTTP_ADDR" envDefault:"localhost:8091"`
	Install bool   `env:"EDGE_INSTALL_ON_START" envDefault:"true"`
}

func TestParseEnvDefaults(t *testing.T) {
	t.Setenv("BULLBEAR_EDGE_HTTP_ADDR", "")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:8091" {
		t.Fatalf("addr = %q, want %q", cfg.Addr, "localhost:8091")
	}
	if !cfg.Install {
		t.Fatal("install = false, want true")
	}
}

func TestParseEnvAppliesPrefix(t *testing.T) {
	t.Setenv("BULLBEAR_EDGE_HTTP_ADDR", "0.0.0.0:9000")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9000" {
		t.Fatalf("addr = %q, want %q", cfg.Addr, "0.0.0.0:9000")
	}
}

func TestParseEnvRejectsNonPointer(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(cfg); err == nil {
		t.Fatal("expected error for non-pointer target")
	}
}
