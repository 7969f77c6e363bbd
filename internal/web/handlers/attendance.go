package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/local"
)

// AttendanceReader is the read side of attendance.Service.
type AttendanceReader interface {
	Attendance(ctx context.Context, filter database.LedgerFilter) ([]database.AttendanceRecord, error)
	People(ctx context.Context) ([]attendance.PersonSummary, error)
	Status(ctx context.Context) (*attendance.EncodingStatus, error)
}

// AttendanceHandler serves the ledger, the enrolled people and the training
// status.
type AttendanceHandler struct {
	svc AttendanceReader
	now func() time.Time
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(svc AttendanceReader) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, now: time.Now}
}

// AttendanceResponse is the JSON form of a ledger listing.
type AttendanceResponse struct {
	Date    string                      `json:"date,omitempty"`
	Person  string                      `json:"person,omitempty"`
	Count   int                         `json:"count"`
	Records []database.AttendanceRecord `json:"records"`
}

// filter reads ?date= and ?person=. "today" is accepted as a date.
func (h *AttendanceHandler) filter(w http.ResponseWriter, r *http.Request) (database.LedgerFilter, bool) {
	f := database.LedgerFilter{
		Date:   strings.TrimSpace(r.URL.Query().Get("date")),
		Person: strings.TrimSpace(r.URL.Query().Get("person")),
	}
	if f.Date == "today" {
		f.Date = h.now().Format(database.DateLayout)
	}
	if f.Date != "" {
		if _, err := time.Parse(database.DateLayout, f.Date); err != nil {
			respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return f, false
		}
	}
	return f, true
}

// List returns ledger rows as JSON.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	records, err := h.svc.Attendance(r.Context(), f)
	if err != nil {
		log.Printf("listing attendance: %s", sanitizeForLog(err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}
	if records == nil {
		records = []database.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Date:    f.Date,
		Person:  f.Person,
		Count:   len(records),
		Records: records,
	})
}

// Export returns ledger rows as CSV with the Name,Date,Time header.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	f, ok := h.filter(w, r)
	if !ok {
		return
	}
	records, err := h.svc.Attendance(r.Context(), f)
	if err != nil {
		log.Printf("exporting attendance: %s", sanitizeForLog(err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to read attendance")
		return
	}

	name := "attendance.csv"
	if f.Date != "" {
		name = "attendance-" + f.Date + ".csv"
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if err := local.WriteCSV(w, records); err != nil {
		log.Printf("writing attendance CSV: %v", err)
	}
}

// People lists enrolled people with image and encoding counts.
func (h *AttendanceHandler) People(w http.ResponseWriter, r *http.Request) {
	people, err := h.svc.People(r.Context())
	if err != nil {
		log.Printf("listing people: %s", sanitizeForLog(err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to list people")
		return
	}
	if people == nil {
		people = []attendance.PersonSummary{}
	}
	respondJSON(w, http.StatusOK, people)
}

// Encodings reports whether training has run and what it produced.
func (h *AttendanceHandler) Encodings(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.Status(r.Context())
	if err != nil {
		log.Printf("reading encodings: %s", sanitizeForLog(err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to read encodings")
		return
	}
	respondJSON(w, http.StatusOK, status)
}
