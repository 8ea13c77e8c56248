package expiry

import (
	"testing"
	"time"
)

func TestStatus(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		createdAt time.Time
		deleted   bool
		want      Status
	}{
		{"fresh", now.Add(-time.Minute), false, Active},
		{"exactly 48h", now.Add(-48 * time.Hour), false, Active},
		{"just over 48h", now.Add(-48*time.Hour - time.Nanosecond), false, Expired},
		{"49h", now.Add(-49 * time.Hour), false, Expired},
		{"deleted fresh", now.Add(-time.Minute), true, Deleted},
		{"deleted expired", now.Add(-100 * time.Hour), true, Deleted},
		{"zero time", time.Time{}, false, Expired},
		{"created in the future", now.Add(time.Hour), false, Active},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultPolicy.Status(tt.createdAt, tt.deleted, now); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_DeletedRegardlessOfNow(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-time.Hour, 0, time.Hour, 47 * time.Hour, 480 * time.Hour} {
		if got := DefaultPolicy.Status(created, true, created.Add(offset)); got != Deleted {
			t.Fatalf("offset %v: got %v, want deleted", offset, got)
		}
	}
}

func TestNew(t *testing.T) {
	if p := New(0); p.TTL != DefaultTTL {
		t.Fatalf("expected default TTL, got %v", p.TTL)
	}
	p := New(time.Hour)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := p.Status(created, false, created.Add(61*time.Minute)); got != Expired {
		t.Fatalf("got %v, want expired", got)
	}
	if got := p.ExpiresAt(created); !got.Equal(created.Add(time.Hour)) {
		t.Fatalf("unexpected expiry time %v", got)
	}
}
