package web

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/imagestore"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ledger := mock.NewMockLedger()
	ledger.AddRecord(database.AttendanceRecord{Name: "alice", Date: "2024-05-01", Time: "08:00:00"})

	svc := attendance.NewService(attendance.Deps{
		Store:     imagestore.New(t.TempDir()),
		Encodings: mock.NewMockEncodingStore(),
		Ledger:    ledger,
	})
	cfg := config.Defaults()
	srv := NewServer(&cfg, svc, "127.0.0.1", 0)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, string(body)
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/api/v1/health", http.StatusOK, `"status":"ok"`},
		{"/api/v1/attendance", http.StatusOK, `"name":"alice"`},
		{"/api/v1/attendance?date=2024-05-02", http.StatusOK, `"count":0`},
		{"/api/v1/attendance.csv", http.StatusOK, "Name,Date,Time\nalice,2024-05-01,08:00:00\n"},
		{"/api/v1/people", http.StatusOK, "[]"},
		{"/api/v1/encodings", http.StatusOK, `"trained":false`},
		{"/api/v1/config", http.StatusOK, `"tie_break":"first"`},
		{"/api/v1/train", http.StatusOK, "[]"},
		{"/api/v1/train/missing", http.StatusNotFound, "job not found"},
		{"/", http.StatusOK, "<title>Face Attendance</title>"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tc.path)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, resp.StatusCode, body)
			}
			if !strings.Contains(body, tc.wantBody) {
				t.Errorf("expected body to contain %q, got %q", tc.wantBody, body)
			}
		})
	}
}

func TestServer_DashboardHasSecurityHeaders(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := get(t, ts.URL+"/")
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers on the dashboard")
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("expected index.html not to be cached, got %q", resp.Header.Get("Cache-Control"))
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/attendance", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("expected localhost origin to be allowed, got %q", resp.Header.Get("Access-Control-Allow-Origin"))
	}
}
