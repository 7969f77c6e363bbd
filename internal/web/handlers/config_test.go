package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/config"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := config.Defaults()
	cfg.Recognition.TieBreak = "closest"
	cfg.Storage.Ledger = config.BackendPostgres
	cfg.Database.URL = "postgres://attendance:secret@db:5432/attendance"
	cfg.Database.HNSWIndexPath = "/data/encodings.hnsw"
	handler := NewConfigHandler(&cfg)

	req := httptest.NewRequest("GET", "/api/v1/config", nil)
	recorder := httptest.NewRecorder()

	handler.Get(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if contentType := recorder.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got '%s'", contentType)
	}
	if strings.Contains(recorder.Body.String(), "secret") {
		t.Error("expected connection strings to be left out")
	}

	var resp ConfigResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.TieBreak != "closest" {
		t.Errorf("expected tie_break 'closest', got '%s'", resp.TieBreak)
	}
	if resp.LedgerBackend != config.BackendPostgres {
		t.Errorf("expected ledger_backend '%s', got '%s'", config.BackendPostgres, resp.LedgerBackend)
	}
	if !resp.HNSWIndex {
		t.Error("expected hnsw_index to be true")
	}
	if resp.Tolerance <= 0 {
		t.Errorf("expected a positive tolerance, got %v", resp.Tolerance)
	}
}
