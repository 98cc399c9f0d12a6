package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DISCONNECT_GRACE", "")
	t.Setenv("ROOM_IDLE_GRACE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DisconnectGrace != 60*time.Second {
		t.Errorf("DisconnectGrace = %v, want 60s", cfg.DisconnectGrace)
	}
	if cfg.RoomIdleGrace != 60*time.Second {
		t.Errorf("RoomIdleGrace = %v, want 60s", cfg.RoomIdleGrace)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://localhost/raceroom")
	t.Setenv("DISCONNECT_GRACE", "90s")
	t.Setenv("ROOM_IDLE_GRACE", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "3000" {
		t.Errorf("Port = %q, want %q", cfg.Port, "3000")
	}
	if cfg.DatabaseURL != "postgres://localhost/raceroom" {
		t.Errorf("DatabaseURL = %q, want set value", cfg.DatabaseURL)
	}
	if cfg.DisconnectGrace != 90*time.Second {
		t.Errorf("DisconnectGrace = %v, want 90s", cfg.DisconnectGrace)
	}
	if cfg.RoomIdleGrace != 5*time.Minute {
		t.Errorf("RoomIdleGrace = %v, want 5m", cfg.RoomIdleGrace)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("DISCONNECT_GRACE", "abc")
	if _, err := Load(); err == nil {
		t.Fatal("Load() with invalid duration did not error")
	}
}
