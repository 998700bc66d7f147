package server

import (
	"testing"
	"time"
)

func TestShouldSaveSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		since   time.Duration
		changes int
		want    bool
	}{
		{"15min and 2 changes", 901 * time.Second, 2, true},
		{"15min and a single change", 901 * time.Second, 1, false},
		{"5min and 10 changes", 301 * time.Second, 10, true},
		{"5min and 9 changes", 301 * time.Second, 9, false},
		{"1min and 10000 changes", 61 * time.Second, 10000, true},
		{"1min and 9999 changes", 61 * time.Second, 9999, false},
		{"under a minute, huge churn", 30 * time.Second, 50000, false},
		{"no changes", 2000 * time.Second, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{
				cfg:              Config{SavePoints: DefaultSavePoints()},
				lastSave:         time.Now().Add(-tt.since),
				changesSinceSave: tt.changes,
			}
			if got := s.shouldSaveSnapshot(time.Now()); got != tt.want {
				t.Fatalf("shouldSaveSnapshot = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultSavePoints(t *testing.T) {
	points := DefaultSavePoints()
	if len(points) != 3 {
		t.Fatalf("got %d save points, want 3", len(points))
	}
	if points[0].After != 900*time.Second || points[0].Changes != 2 {
		t.Fatalf("row 0 = %+v", points[0])
	}
	if points[1].After != 300*time.Second || points[1].Changes != 10 {
		t.Fatalf("row 1 = %+v", points[1])
	}
	if points[2].After != 60*time.Second || points[2].Changes != 10000 {
		t.Fatalf("row 2 = %+v", points[2])
	}
}
