package security

import (
	"fmt"
	"testing"
	"time"
)

func TestAttemptLimiter_BurstThenDeny(t *testing.T) {
	al := NewAttemptLimiter(1, 3, nil)
	defer al.Stop()

	for i := 0; i < 3; i++ {
		if !al.Allow("alice") {
			t.Fatalf("attempt %d denied within burst", i+1)
		}
	}
	if al.Allow("alice") {
		t.Error("attempt beyond burst was allowed")
	}
}

func TestAttemptLimiter_PerIdentifier(t *testing.T) {
	al := NewAttemptLimiter(1, 1, nil)
	defer al.Stop()

	if !al.Allow("alice") {
		t.Fatal("first attempt for alice denied")
	}
	if al.Allow("alice") {
		t.Error("second attempt for alice allowed")
	}
	// A different identifier has its own bucket.
	if !al.Allow("bob") {
		t.Error("first attempt for bob denied")
	}
}

func TestAttemptLimiter_LRUEviction(t *testing.T) {
	al := NewAttemptLimiter(1, 1, nil)
	defer al.Stop()
	al.maxSize = 2

	al.Allow("a")
	al.Allow("b")
	al.Allow("c") // evicts "a"

	if got := len(al.entries); got != 2 {
		t.Fatalf("tracked %d identifiers, want 2", got)
	}
	if _, ok := al.entries["a"]; ok {
		t.Error("oldest identifier survived eviction")
	}

	// Eviction resets the budget for the evicted identifier.
	if !al.Allow("a") {
		t.Error("re-added identifier denied its first attempt")
	}
}

func TestAttemptLimiter_Sweep(t *testing.T) {
	al := NewAttemptLimiter(1, 1, nil)
	defer al.Stop()

	for i := 0; i < 5; i++ {
		al.Allow(fmt.Sprintf("user-%d", i))
	}

	al.mu.Lock()
	for elem := al.lru.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*limiterEntry).lastAccess = time.Now().Add(-time.Hour)
	}
	al.mu.Unlock()

	al.sweep(30 * time.Minute)

	if got := len(al.entries); got != 0 {
		t.Errorf("%d entries survived the sweep, want 0", got)
	}
}

func TestAttemptLimiter_StopIsIdempotent(t *testing.T) {
	al := NewAttemptLimiter(1, 1, nil)
	al.Stop()
	al.Stop()
}

func TestAttemptLimiter_DefaultsOnBadArguments(t *testing.T) {
	al := NewAttemptLimiter(0, -1, nil)
	defer al.Stop()

	if al.perSec != defaultAttemptRate {
		t.Errorf("rate: got %v, want %v", al.perSec, defaultAttemptRate)
	}
	if al.burst != defaultAttemptBurst {
		t.Errorf("burst: got %d, want %d", al.burst, defaultAttemptBurst)
	}
}
