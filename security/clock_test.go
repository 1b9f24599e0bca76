package security

import (
	"testing"
	"time"
)

func TestSystemClock(t *testing.T) {
	before := time.Now()
	got := SystemClock{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("SystemClock.Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestIsExpiredAt(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"future expiry", now.Add(1 * time.Hour), false},
		{"just expired within grace", now.Add(-2 * time.Second), false},
		{"expired beyond grace", now.Add(-10 * time.Second), true},
		{"exactly at grace boundary", now.Add(-DefaultClockSkewGracePeriod), false},
		{"zero time never expires", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExpiredAt(now, tt.expiresAt); got != tt.want {
				t.Errorf("IsExpiredAt(%v, %v) = %v, want %v", now, tt.expiresAt, got, tt.want)
			}
		})
	}
}

func TestIsExpiredAtWithGracePeriod(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	if IsExpiredAtWithGracePeriod(now, now.Add(-1*time.Second), 0) != true {
		t.Error("expected expired with zero grace period")
	}
	if IsExpiredAtWithGracePeriod(now, now.Add(-30*time.Second), time.Minute) != false {
		t.Error("expected not expired with one minute grace period")
	}
}
