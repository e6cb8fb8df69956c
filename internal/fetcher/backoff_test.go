package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"stockdata/internal/history"
)

type erroringProvider struct{ calls int }

func (p *erroringProvider) History(context.Context, string, string, string) (*history.Table, error) {
	p.calls++
	return nil, errors.New("ssl: handshake failure")
}

func TestRetrier_FixedBackoff(t *testing.T) {
	p := &erroringProvider{}
	r := NewRetrier(func() Provider { return p }, nil, RetryConfig{}, nil)

	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	out := r.Fetch(context.Background(), Request{Symbol: "0700.HK", Dir: t.TempDir()})

	if out.Status != StatusFailure {
		t.Fatalf("Status = %q, want failure", out.Status)
	}
	if p.calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", p.calls, DefaultMaxAttempts)
	}
	if len(waits) != DefaultMaxAttempts-1 {
		t.Fatalf("slept %d times, want %d", len(waits), DefaultMaxAttempts-1)
	}
	for i, d := range waits {
		if d != DefaultBackoff {
			t.Errorf("wait %d = %v, want %v", i, d, DefaultBackoff)
		}
	}
}

func TestRequest_WithDefaults(t *testing.T) {
	got := Request{Symbol: "AAPL", Interval: "1wk"}.withDefaults()
	if got.Period != DefaultPeriod {
		t.Errorf("Period = %q, want %q", got.Period, DefaultPeriod)
	}
	if got.Interval != "1wk" {
		t.Errorf("Interval = %q, want 1wk", got.Interval)
	}
}
