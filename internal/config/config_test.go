package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8050 {
		t.Errorf("expected default port 8050, got %d", cfg.Server.Port)
	}
	if cfg.Database.CSVFile != "CarSales.csv" {
		t.Errorf("expected default CSV file CarSales.csv, got %q", cfg.Database.CSVFile)
	}
	if len(cfg.Dashboard.CompareYears) != 0 {
		t.Errorf("expected no compare years override, got %v", cfg.Dashboard.CompareYears)
	}
	if cfg.Dashboard.AwaitTimeout != 5*time.Second {
		t.Errorf("expected await timeout 5s, got %v", cfg.Dashboard.AwaitTimeout)
	}
	if cfg.Address() != "localhost:8050" {
		t.Errorf("Address() = %q", cfg.Address())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("CSV_FILE", "sales.csv")
	t.Setenv("DASHBOARD_COMPARE_YEARS", "2022, 2023")
	t.Setenv("LOG_FORMAT", "text")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Database.CSVFile != "sales.csv" {
		t.Errorf("CSVFile = %q", cfg.Database.CSVFile)
	}
	if got := cfg.Dashboard.CompareYears; len(got) != 2 || got[0] != 2022 || got[1] != 2023 {
		t.Errorf("CompareYears = %v, want [2022 2023]", got)
	}
	if cfg.Logger.Format != "text" {
		t.Errorf("Format = %q", cfg.Logger.Format)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"port out of range", "SERVER_PORT", "70000", "server port"},
		{"bad log level", "LOG_LEVEL", "verbose", "invalid log level"},
		{"bad log format", "LOG_FORMAT", "xml", "invalid log format"},
		{"three compare years", "DASHBOARD_COMPARE_YEARS", "2021,2022,2023", "exactly two"},
		{"non-numeric compare year", "DASHBOARD_COMPARE_YEARS", "2022,soon", "not an integer"},
		{"negative rate limit", "SECURITY_RATE_LIMIT_RPS", "-1", "rate limit RPS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}
}
