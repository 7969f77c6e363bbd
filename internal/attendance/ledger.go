package attendance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Attendance returns ledger rows matching filter.
func (s *Service) Attendance(ctx context.Context, filter database.LedgerFilter) ([]database.AttendanceRecord, error) {
	if s.ledger == nil {
		return nil, errNotConfigured("ledger")
	}
	if filter.Date != "" {
		if _, err := time.Parse(database.DateLayout, filter.Date); err != nil {
			return nil, fmt.Errorf("invalid date %q, want YYYY-MM-DD", filter.Date)
		}
	}
	records, err := s.ledger.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}
	return records, nil
}

// PersonSummary describes one enrolled person.
type PersonSummary struct {
	Name      string `json:"name"`
	Images    int    `json:"images"`
	Encodings int    `json:"encodings"`
}

// People lists everyone with a dataset directory or trained encodings,
// sorted by name.
func (s *Service) People(ctx context.Context) ([]PersonSummary, error) {
	if s.store == nil {
		return nil, errNotConfigured("image store")
	}
	byName := make(map[string]*PersonSummary)
	get := func(name string) *PersonSummary {
		p, ok := byName[name]
		if !ok {
			p = &PersonSummary{Name: name}
			byName[name] = p
		}
		return p
	}

	people, err := s.store.People()
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	for _, name := range people {
		images, err := s.store.Images(name)
		if err != nil {
			return nil, fmt.Errorf("listing images of %s: %w", name, err)
		}
		get(name).Images = len(images)
	}

	if s.encodings != nil {
		db, err := s.encodings.Load(ctx)
		switch {
		case errors.Is(err, database.ErrNotTrained):
		case err != nil:
			return nil, fmt.Errorf("loading encodings: %w", err)
		default:
			for name, n := range db.CountByPerson() {
				get(name).Encodings = n
			}
		}
	}

	out := make([]PersonSummary, 0, len(byName))
	for _, p := range byName {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// EncodingStatus describes the stored encoding database.
type EncodingStatus struct {
	Trained   bool      `json:"trained"`
	Entries   int       `json:"entries"`
	People    int       `json:"people"`
	Model     string    `json:"model,omitempty"`
	Dim       int       `json:"dim,omitempty"`
	TrainedAt time.Time `json:"trained_at,omitzero"`
}

// Status reports whether encodings exist and what they contain.
func (s *Service) Status(ctx context.Context) (*EncodingStatus, error) {
	if s.encodings == nil {
		return nil, errNotConfigured("encoding store")
	}
	db, err := s.encodings.Load(ctx)
	if errors.Is(err, database.ErrNotTrained) {
		return &EncodingStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading encodings: %w", err)
	}
	return &EncodingStatus{
		Trained:   true,
		Entries:   db.Len(),
		People:    len(db.People()),
		Model:     db.Model,
		Dim:       db.Dim,
		TrainedAt: db.TrainedAt,
	}, nil
}
