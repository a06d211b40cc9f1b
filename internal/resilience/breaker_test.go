package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}

	// After the timeout one probe is allowed; success closes the circuit.
	now = now.Add(2 * time.Minute)
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected probe to succeed, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Now()
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errBoom })
	now = now.Add(2 * time.Minute)

	if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom on probe, got %v", err)
	}
	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected circuit to reopen, got %v", err)
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := NewBreaker(2, time.Minute)

	_ = b.Execute(func() error { return errBoom })
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if err := b.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	// Only one consecutive failure since the success; still closed.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected closed circuit, got %v", err)
	}
}
