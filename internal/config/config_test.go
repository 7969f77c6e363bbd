package config

import (
	"os"
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATASET_DIR", "ENCODINGS_PATH", "LEDGER_PATH",
		"CAMERA_DEVICE", "CAPTURE_FRAMES", "STOP_KEY",
		"EXTRACTOR", "MODELS_DIR", "MATCH_METRIC", "MATCH_TOLERANCE", "TIE_BREAK", "MAX_IMAGE_SIZE",
		"ENCODINGS_BACKEND", "LEDGER_BACKEND",
		"EMBEDDING_URL", "DATABASE_URL", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
		"HNSW_INDEX_PATH", "MARIADB_DSN",
		"WEB_HOST", "WEB_PORT", "WEB_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaults_Embedded(t *testing.T) {
	cfg := Defaults()

	if cfg.Paths.Dataset != "dataset" {
		t.Errorf("expected dataset dir 'dataset', got '%s'", cfg.Paths.Dataset)
	}
	if cfg.Paths.Encodings != "encodings.gob" {
		t.Errorf("expected encodings path 'encodings.gob', got '%s'", cfg.Paths.Encodings)
	}
	if cfg.Paths.Ledger != "attendance.csv" {
		t.Errorf("expected ledger path 'attendance.csv', got '%s'", cfg.Paths.Ledger)
	}
	if cfg.Camera.Frames != 10 {
		t.Errorf("expected 10 frames per capture, got %d", cfg.Camera.Frames)
	}
	if cfg.Recognition.Tolerance != 0.6 {
		t.Errorf("expected tolerance 0.6, got %v", cfg.Recognition.Tolerance)
	}
	if cfg.Recognition.TieBreak != "first" {
		t.Errorf("expected tie-break 'first', got '%s'", cfg.Recognition.TieBreak)
	}
}

func TestLoad_NoEnv(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Camera.Device != 0 {
		t.Errorf("expected camera device 0, got %d", cfg.Camera.Device)
	}
	if cfg.Storage.Encodings != BackendFile {
		t.Errorf("expected file encodings backend, got '%s'", cfg.Storage.Encodings)
	}
	if cfg.Storage.Ledger != BackendCSV {
		t.Errorf("expected csv ledger backend, got '%s'", cfg.Storage.Ledger)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected 25 max open conns, got %d", cfg.Database.MaxOpenConns)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATASET_DIR", "/srv/faces")
	t.Setenv("CAMERA_DEVICE", "2")
	t.Setenv("CAPTURE_FRAMES", "25")
	t.Setenv("MATCH_TOLERANCE", "0.45")
	t.Setenv("TIE_BREAK", "closest")
	t.Setenv("EXTRACTOR", "http")
	t.Setenv("EMBEDDING_URL", "http://embed:8000")

	cfg := Load()

	if cfg.Paths.Dataset != "/srv/faces" {
		t.Errorf("expected dataset '/srv/faces', got '%s'", cfg.Paths.Dataset)
	}
	if cfg.Camera.Device != 2 {
		t.Errorf("expected device 2, got %d", cfg.Camera.Device)
	}
	if cfg.Camera.Frames != 25 {
		t.Errorf("expected 25 frames, got %d", cfg.Camera.Frames)
	}
	if cfg.Recognition.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %v", cfg.Recognition.Tolerance)
	}
	if cfg.Recognition.TieBreak != "closest" {
		t.Errorf("expected tie-break 'closest', got '%s'", cfg.Recognition.TieBreak)
	}
	if cfg.Embedding.URL != "http://embed:8000" {
		t.Errorf("expected embedding URL 'http://embed:8000', got '%s'", cfg.Embedding.URL)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("CAPTURE_FRAMES", "-3")
	t.Setenv("CAMERA_DEVICE", "front")
	t.Setenv("MATCH_TOLERANCE", "zero")

	cfg := Load()

	if cfg.Camera.Frames != 10 {
		t.Errorf("expected default frames for negative input, got %d", cfg.Camera.Frames)
	}
	if cfg.Camera.Device != 0 {
		t.Errorf("expected default device for invalid input, got %d", cfg.Camera.Device)
	}
	if cfg.Recognition.Tolerance != 0.6 {
		t.Errorf("expected default tolerance for invalid input, got %v", cfg.Recognition.Tolerance)
	}
}

func TestStopKeyCode(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"q", 'q'},
		{"x", 'x'},
		{"", 'q'},
	}
	for _, tc := range tests {
		c := CameraConfig{StopKey: tc.key}
		if got := c.StopKeyCode(); got != tc.want {
			t.Errorf("StopKeyCode(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad extractor", func(c *Config) { c.Recognition.Extractor = "opencv" }, "unknown extractor"},
		{"bad metric", func(c *Config) { c.Recognition.Metric = "manhattan" }, "unknown match metric"},
		{"bad tie-break", func(c *Config) { c.Recognition.TieBreak = "random" }, "unknown tie-break"},
		{"zero tolerance", func(c *Config) { c.Recognition.Tolerance = 0 }, "tolerance must be positive"},
		{"postgres encodings without url", func(c *Config) { c.Storage.Encodings = BackendPostgres }, "DATABASE_URL"},
		{"postgres ledger with url", func(c *Config) {
			c.Storage.Ledger = BackendPostgres
			c.Database.URL = "postgres://localhost/attendance"
		}, ""},
		{"mariadb ledger without dsn", func(c *Config) { c.Storage.Ledger = BackendMariaDB }, "MARIADB_DSN"},
		{"unknown ledger", func(c *Config) { c.Storage.Ledger = "sqlite" }, "unknown ledger backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoad_Web(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.Web.Port != 8080 || cfg.Web.Host != "0.0.0.0" || cfg.Web.AllowedOrigins != nil {
		t.Errorf("unexpected web defaults %+v", cfg.Web)
	}

	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	cfg = Load()
	if cfg.Web.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Web.Port)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if strings.Join(cfg.Web.AllowedOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("expected origins %v, got %v", want, cfg.Web.AllowedOrigins)
	}
}

func TestLoad_MetricAndToleranceDefaults(t *testing.T) {
	tests := []struct {
		name          string
		env           map[string]string
		wantMetric    string
		wantTolerance float64
	}{
		{"dlib", nil, "euclidean", 0.6},
		{"http extractor", map[string]string{"EXTRACTOR": "http"}, "cosine", 0.5},
		{"cosine metric", map[string]string{"MATCH_METRIC": "cosine"}, "cosine", 0.5},
		{"cosine metric with http", map[string]string{"MATCH_METRIC": "cosine", "EXTRACTOR": "http"}, "cosine", 0.5},
		{"euclidean with http", map[string]string{"MATCH_METRIC": "euclidean", "EXTRACTOR": "http"}, "euclidean", 0.6},
		{"explicit tolerance", map[string]string{"MATCH_METRIC": "cosine", "MATCH_TOLERANCE": "0.35"}, "cosine", 0.35},
		{"invalid tolerance", map[string]string{"EXTRACTOR": "http", "MATCH_TOLERANCE": "-1"}, "cosine", 0.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg := Load()
			if cfg.Recognition.Metric != tc.wantMetric {
				t.Errorf("expected metric %s, got %s", tc.wantMetric, cfg.Recognition.Metric)
			}
			if cfg.Recognition.Tolerance != tc.wantTolerance {
				t.Errorf("expected tolerance %v, got %v", tc.wantTolerance, cfg.Recognition.Tolerance)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

func TestRecognitionConfig_SetMetric(t *testing.T) {
	t.Run("default tolerance follows the metric", func(t *testing.T) {
		cfg := Defaults()
		cfg.Recognition.SetMetric("cosine")
		if cfg.Recognition.Tolerance != 0.5 {
			t.Errorf("expected tolerance 0.5, got %v", cfg.Recognition.Tolerance)
		}
	})

	t.Run("explicit tolerance is kept", func(t *testing.T) {
		cfg := Defaults()
		cfg.Recognition.SetTolerance(0.42)
		cfg.Recognition.SetMetric("cosine")
		if cfg.Recognition.Tolerance != 0.42 {
			t.Errorf("expected tolerance 0.42, got %v", cfg.Recognition.Tolerance)
		}
	})

	t.Run("tolerance from the environment is kept", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("MATCH_TOLERANCE", "0.7")
		cfg := Load()
		cfg.Recognition.SetMetric("cosine")
		if cfg.Recognition.Tolerance != 0.7 {
			t.Errorf("expected tolerance 0.7, got %v", cfg.Recognition.Tolerance)
		}
	})
}
