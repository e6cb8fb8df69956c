package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"stockdata/internal/fetcher"
	"stockdata/internal/history"
	"stockdata/internal/store"
	"stockdata/internal/testutil"
)

// workerFunc adapts a function to the Worker interface.
type workerFunc func(ctx context.Context, req fetcher.Request) fetcher.Outcome

func (f workerFunc) Fetch(ctx context.Context, req fetcher.Request) fetcher.Outcome {
	return f(ctx, req)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func byStatus(outcomes []fetcher.Outcome) map[string]fetcher.Status {
	m := make(map[string]fetcher.Status, len(outcomes))
	for _, o := range outcomes {
		m[o.Symbol] = o.Status
	}
	return m
}

func TestNew(t *testing.T) {
	coord := New(workerFunc(nil), 0, nil)
	if coord == nil {
		t.Fatal("New() returned nil")
	}
	if coord.workers != 1 {
		t.Errorf("workers = %d, want 1", coord.workers)
	}
}

func TestDispatch_IsolationUnderFailure(t *testing.T) {
	provider := &testutil.MockProvider{
		HistoryFunc: func(ctx context.Context, symbol, period, interval string) (*history.Table, error) {
			switch symbol {
			case "Y":
				return nil, fetcher.NewServerError(500)
			case "Z":
				return &history.Table{Symbol: symbol}, nil
			default:
				return testutil.NewTable(symbol, 2), nil
			}
		},
	}
	retrier := fetcher.NewRetrier(testutil.Sessions(provider), store.CSVWriter{},
		fetcher.RetryConfig{MaxAttempts: 3, Backoff: time.Millisecond}, quietLogger())

	outcomes := New(retrier, 3, quietLogger()).
		Dispatch(context.Background(), []string{"X", "Y", "Z"}, t.TempDir(), "max", "1d")

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	got := byStatus(outcomes)
	want := map[string]fetcher.Status{
		"X": fetcher.StatusSuccess,
		"Y": fetcher.StatusFailure,
		"Z": fetcher.StatusEmpty,
	}
	for sym, status := range want {
		if got[sym] != status {
			t.Errorf("%s: status = %q, want %q", sym, got[sym], status)
		}
	}
	if provider.Calls("Y") != 3 {
		t.Errorf("Y retrieved %d times, want 3", provider.Calls("Y"))
	}
}

func TestDispatch_PanicIsContained(t *testing.T) {
	w := workerFunc(func(ctx context.Context, req fetcher.Request) fetcher.Outcome {
		if req.Symbol == "BOOM" {
			panic("provider blew up")
		}
		return fetcher.Outcome{Symbol: req.Symbol, Status: fetcher.StatusSuccess, Attempts: 1}
	})

	outcomes := New(w, 2, quietLogger()).
		Dispatch(context.Background(), []string{"A", "BOOM", "C"}, t.TempDir(), "max", "1d")

	got := byStatus(outcomes)
	if len(got) != 3 {
		t.Fatalf("got outcomes for %d symbols, want 3", len(got))
	}
	if got["BOOM"] != fetcher.StatusFailure {
		t.Errorf("BOOM status = %q, want failure", got["BOOM"])
	}
	if got["A"] != fetcher.StatusSuccess || got["C"] != fetcher.StatusSuccess {
		t.Errorf("other symbols affected by panic: %v", got)
	}
	for _, o := range outcomes {
		if o.Symbol == "BOOM" && o.Err == nil {
			t.Error("BOOM outcome carries no error")
		}
	}
}

func TestDispatch_BoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	w := workerFunc(func(ctx context.Context, req fetcher.Request) fetcher.Outcome {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return fetcher.Outcome{Symbol: req.Symbol, Status: fetcher.StatusSuccess}
	})

	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	outcomes := New(w, 3, quietLogger()).Dispatch(context.Background(), symbols, t.TempDir(), "max", "1d")

	if len(outcomes) != len(symbols) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(symbols))
	}
	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
	if p := peak.Load(); p < 2 {
		t.Errorf("peak concurrency = %d, expected work to overlap", p)
	}
}

func TestDispatch_PassesRequestParameters(t *testing.T) {
	dir := t.TempDir()
	w := workerFunc(func(ctx context.Context, req fetcher.Request) fetcher.Outcome {
		if req.Dir != dir || req.Period != "1y" || req.Interval != "1wk" {
			return fetcher.Outcome{Symbol: req.Symbol, Status: fetcher.StatusFailure, Err: errors.New("bad request")}
		}
		return fetcher.Outcome{Symbol: req.Symbol, Status: fetcher.StatusSuccess}
	})

	outcomes := New(w, 2, quietLogger()).Dispatch(context.Background(), []string{"AAPL", "MSFT"}, dir, "1y", "1wk")
	for _, o := range outcomes {
		if o.Status != fetcher.StatusSuccess {
			t.Errorf("%s: %v", o.Symbol, o.Err)
		}
	}
}

func TestDispatch_NoSymbols(t *testing.T) {
	var calls atomic.Int32
	w := workerFunc(func(ctx context.Context, req fetcher.Request) fetcher.Outcome {
		calls.Add(1)
		return fetcher.Outcome{}
	})

	outcomes := New(w, 4, quietLogger()).Dispatch(context.Background(), nil, t.TempDir(), "max", "1d")
	if len(outcomes) != 0 {
		t.Errorf("got %d outcomes, want 0", len(outcomes))
	}
	if calls.Load() != 0 {
		t.Errorf("worker called %d times, want 0", calls.Load())
	}
}

func TestDispatch_EmptyParametersTakeDefaults(t *testing.T) {
	w := workerFunc(func(ctx context.Context, req fetcher.Request) fetcher.Outcome {
		if req.Period != fetcher.DefaultPeriod || req.Interval != fetcher.DefaultInterval {
			return fetcher.Outcome{Symbol: req.Symbol, Status: fetcher.StatusFailure,
				Err: errors.New("got " + req.Period + "/" + req.Interval)}
		}
		return fetcher.Outcome{Symbol: req.Symbol, Status: fetcher.StatusSuccess}
	})

	outcomes := New(w, 1, quietLogger()).Dispatch(context.Background(), []string{"AAPL"}, t.TempDir(), "", "")
	if len(outcomes) != 1 || outcomes[0].Status != fetcher.StatusSuccess {
		t.Errorf("outcomes = %+v, want defaults applied", outcomes)
	}
}
