package backoff

import (
	"context"
	"testing"
	"time"
)

func TestPolicy_FailDoublesUntilCap(t *testing.T) {
	t.Parallel()

	p := New(10*time.Millisecond, 80*time.Millisecond)

	got := p.Fail()
	if got < 10*time.Millisecond {
		t.Errorf("first Fail() = %v, want >= Min", got)
	}

	for i := 0; i < 10; i++ {
		d := p.Fail()
		if d > 80*time.Millisecond {
			t.Errorf("Fail() = %v, want <= Max", d)
		}
	}
}

func TestPolicy_SuccessResets(t *testing.T) {
	t.Parallel()

	p := New(10*time.Millisecond, 1*time.Second)
	for i := 0; i < 5; i++ {
		p.Fail()
	}
	if p.Attempt() == 0 {
		t.Fatal("Attempt() = 0 after failures, want > 0")
	}

	p.Success()
	if p.Attempt() != 0 {
		t.Errorf("Attempt() = %d after Success(), want 0", p.Attempt())
	}
}

func TestSleep_ReturnsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Sleep(ctx, time.Hour)
	if err == nil {
		t.Fatal("Sleep() error = nil, want context.Canceled")
	}
}

func TestSleep_ReturnsNilAfterDuration(t *testing.T) {
	t.Parallel()

	err := Sleep(context.Background(), 1*time.Millisecond)
	if err != nil {
		t.Errorf("Sleep() error = %v, want nil", err)
	}
}
