package config

import (
	"strings"
	"testing"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if s.Addr() != "localhost:8080" {
		t.Errorf("Expected localhost:8080, got %s", s.Addr())
	}
	if s.ConfigDir != "configs" || s.Debug {
		t.Errorf("Unexpected defaults %+v", s)
	}
	if s.UseNgrok() {
		t.Error("Expected no tunnel without a token")
	}
}

func TestLoadSettingsFromEnv(t *testing.T) {
	t.Setenv("GSP_HOST", "0.0.0.0")
	t.Setenv("GSP_PORT", "9090")
	t.Setenv("GSP_DEBUG", "true")
	t.Setenv("NGROK_AUTHTOKEN", "tok")

	s, err := LoadSettings()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if s.Addr() != "0.0.0.0:9090" || !s.Debug || !s.UseNgrok() {
		t.Errorf("Unexpected settings %+v", s)
	}
}

func TestParseEnvError(t *testing.T) {
	t.Setenv("GSP_PORT", "not-an-int")

	_, err := LoadSettings()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
