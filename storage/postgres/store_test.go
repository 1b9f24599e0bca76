package postgres

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "wrapped unique violation", err: fmt.Errorf("inserting: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "other pq error", err: &pq.Error{Code: "42P01"}, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isUniqueViolation(tc.err); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRefreshTokenData_RoundTrip(t *testing.T) {
	payload, err := json.Marshal(refreshTokenData{AccessToken: "at-123"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded refreshTokenData
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.AccessToken != "at-123" {
		t.Errorf("got %q, want at-123", decoded.AccessToken)
	}

	// An empty link marshals to an empty object, not a null field.
	payload, err = json.Marshal(refreshTokenData{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(payload) != "{}" {
		t.Errorf("empty payload: got %s, want {}", payload)
	}
}
