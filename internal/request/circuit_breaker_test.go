package request

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, 0)

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.IsOpen() {
		t.Error("breaker must stay closed below threshold")
	}

	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Error("breaker must open at threshold")
	}
	if cb.FailureCount() != 3 {
		t.Errorf("failures = %d", cb.FailureCount())
	}
}

func TestCircuitBreaker_SuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, 0)

	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("breaker should be open")
	}

	cb.RecordSuccess()
	if cb.IsOpen() {
		t.Error("success must close the breaker immediately")
	}
	if cb.FailureCount() != 0 {
		t.Errorf("failures = %d", cb.FailureCount())
	}
}

func TestCircuitBreaker_SelfResetAfterTimeout(t *testing.T) {
	current := time.Unix(1000, 0)
	cb := NewCircuitBreaker(1, 30*time.Second, 0)
	cb.now = func() time.Time { return current }

	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatal("breaker should be open")
	}

	// До истечения reset timeout остаётся открытым
	current = current.Add(29 * time.Second)
	if !cb.IsOpen() {
		t.Error("breaker must stay open before the reset timeout")
	}

	// После истечения самосбрасывается как побочный эффект проверки
	current = current.Add(2 * time.Second)
	if cb.IsOpen() {
		t.Error("breaker must self-reset after the timeout")
	}
	if cb.FailureCount() != 0 {
		t.Errorf("failures = %d after self-reset", cb.FailureCount())
	}
}

func TestCircuitBreaker_ResetDelayWithinJitterBounds(t *testing.T) {
	cb := NewCircuitBreaker(1, 10*time.Second, 2*time.Second)

	for i := 0; i < 50; i++ {
		delay := cb.ResetDelay()
		if delay < 10*time.Second || delay >= 12*time.Second {
			t.Fatalf("delay %v outside [10s, 12s)", delay)
		}
	}
}
