package yahoo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"stockdata/internal/fetcher"
	"stockdata/internal/history"
)

// Three sessions of a NYSE listing; the second carries a dividend and a
// 2:1 split, the third is a halted session with no prices.
const chartOK = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "currency": "USD", "exchangeTimezoneName": "America/New_York", "gmtoffset": -18000},
      "timestamp": [1704205800, 1704292200, 1704378600],
      "events": {
        "dividends": {"1704292200": {"amount": 0.24, "date": 1704292200}},
        "splits": {"1704292200": {"date": 1704292200, "numerator": 2, "denominator": 1}}
      },
      "indicators": {
        "quote": [{
          "open":   [100.0, 110.0, null],
          "high":   [102.0, 112.0, null],
          "low":    [99.0, 108.0, null],
          "close":  [101.0, 111.0, null],
          "volume": [1000, 2000, null]
        }],
        "adjclose": [{"adjclose": [50.5, 111.0, null]}]
      }
    }],
    "error": null
  }
}`

const chartNotFound = `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`

type memTZ struct {
	mu    sync.Mutex
	zones map[string]string
	saves int
}

func (m *memTZ) Lookup(_ context.Context, symbol string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tz, ok := m.zones[symbol]
	return tz, ok
}

func (m *memTZ) Save(_ context.Context, symbol, tz string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.zones == nil {
		m.zones = make(map[string]string)
	}
	m.zones[symbol] = tz
	m.saves++
	return nil
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHistory_Success(t *testing.T) {
	tz := &memTZ{}
	server := serve(t, http.StatusOK, chartOK)
	client := NewClient(Options{BaseURL: server.URL, UserAgent: "test", Timezones: tz})

	table, err := client.History(context.Background(), "AAPL", "max", "1d")
	if err != nil {
		t.Fatalf("History() returned error: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (null row dropped)", table.Len())
	}
	if table.Index != history.IndexDate {
		t.Errorf("Index = %q, want %q", table.Index, history.IndexDate)
	}

	ny, _ := time.LoadLocation("America/New_York")
	first := table.Bars[0]
	if want := time.Date(2024, 1, 2, 0, 0, 0, 0, ny); !first.Time.Equal(want) {
		t.Errorf("first.Time = %v, want %v", first.Time, want)
	}
	if first.Time.Location().String() != "America/New_York" {
		t.Errorf("first.Time location = %s", first.Time.Location())
	}

	// adjclose/close = 0.5 back-adjusts the whole row
	if first.Open != 50 || first.High != 51 || first.Low != 49.5 || first.Close != 50.5 {
		t.Errorf("first bar prices = %v/%v/%v/%v, want 50/51/49.5/50.5",
			first.Open, first.High, first.Low, first.Close)
	}
	if first.Volume != 1000 {
		t.Errorf("first.Volume = %d, want 1000", first.Volume)
	}

	second := table.Bars[1]
	if second.Dividends != 0.24 {
		t.Errorf("second.Dividends = %v, want 0.24", second.Dividends)
	}
	if second.StockSplits != 2 {
		t.Errorf("second.StockSplits = %v, want 2", second.StockSplits)
	}
	if first.Dividends != 0 || first.StockSplits != 0 {
		t.Errorf("first bar has events: %+v", first)
	}

	if got, ok := tz.Lookup(context.Background(), "AAPL"); !ok || got != "America/New_York" {
		t.Errorf("time zone not cached: %q, %v", got, ok)
	}
}

func TestHistory_RequestShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/%5EGSPC" && r.URL.Path != "/^GSPC" {
			t.Errorf("path = %q, want /^GSPC", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("range") != "max" || q.Get("interval") != "1d" || q.Get("events") != "div,splits" {
			t.Errorf("query = %v", q)
		}
		if got := r.Header.Get("User-Agent"); got != "stockdata-test" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chartOK))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, UserAgent: "stockdata-test"})
	if _, err := client.History(context.Background(), "^GSPC", "max", "1d"); err != nil {
		t.Fatalf("History() returned error: %v", err)
	}
}

func TestHistory_NotFoundIsEmpty(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound} {
		server := serve(t, status, chartNotFound)
		client := NewClient(Options{BaseURL: server.URL})

		table, err := client.History(context.Background(), "DELISTED", "max", "1d")
		if err != nil {
			t.Fatalf("status %d: History() returned error: %v", status, err)
		}
		if !table.Empty() {
			t.Errorf("status %d: table has %d rows, want 0", status, table.Len())
		}
	}
}

func TestHistory_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType fetcher.ErrorType
	}{
		{"server error", http.StatusBadGateway, "bad gateway", fetcher.ErrorTypeServer},
		{"rate limited", http.StatusTooManyRequests, "Too Many Requests", fetcher.ErrorTypeRateLimit},
		{"bad json", http.StatusOK, "<html>oops</html>", fetcher.ErrorTypeValidation},
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Bad Request","description":"Invalid input"}}}`, fetcher.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, tt.status, tt.body)
			client := NewClient(Options{BaseURL: server.URL})

			_, err := client.History(context.Background(), "AAPL", "max", "1d")
			if err == nil {
				t.Fatal("History() expected error, got nil")
			}
			var fe *fetcher.FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("error %v is not a FetchError", err)
			}
			if fe.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", fe.Type, tt.wantType)
			}
			if fe.Source != "yahoo" {
				t.Errorf("Source = %q, want yahoo", fe.Source)
			}
		})
	}
}

func TestHistory_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(Options{BaseURL: url}).History(context.Background(), "AAPL", "max", "1d")
	if got := fetcher.TypeOf(err); got != fetcher.ErrorTypeNetwork {
		t.Errorf("TypeOf(err) = %q, want network (err: %v)", got, err)
	}
}

func TestHistory_CachedZoneFillsMissingMeta(t *testing.T) {
	body := strings.Replace(chartOK, `"exchangeTimezoneName": "America/New_York", "gmtoffset": -18000`, `"gmtoffset": 0`, 1)
	tz := &memTZ{zones: map[string]string{"AAPL": "America/New_York"}}
	server := serve(t, http.StatusOK, body)

	table, err := NewClient(Options{BaseURL: server.URL, Timezones: tz}).History(context.Background(), "AAPL", "max", "1d")
	if err != nil {
		t.Fatalf("History() returned error: %v", err)
	}
	if loc := table.Bars[0].Time.Location().String(); loc != "America/New_York" {
		t.Errorf("location = %s, want America/New_York", loc)
	}
	if tz.saves != 0 {
		t.Errorf("cache written %d times, want 0", tz.saves)
	}
}

func TestHistory_IntradayKeepsTimestamps(t *testing.T) {
	server := serve(t, http.StatusOK, chartOK)

	table, err := NewClient(Options{BaseURL: server.URL}).History(context.Background(), "AAPL", "5d", "1h")
	if err != nil {
		t.Fatalf("History() returned error: %v", err)
	}
	if table.Index != history.IndexDatetime {
		t.Errorf("Index = %q, want %q", table.Index, history.IndexDatetime)
	}
	if got := table.Bars[0].Time.Unix(); got != 1704205800 {
		t.Errorf("first stamp = %d, want 1704205800", got)
	}
}

func TestFloatAt(t *testing.T) {
	v := 1.5
	s := []*float64{&v, nil}
	if floatAt(s, 0) != 1.5 {
		t.Error("floatAt(0) != 1.5")
	}
	if !math.IsNaN(floatAt(s, 1)) || !math.IsNaN(floatAt(s, 5)) {
		t.Error("missing values should be NaN")
	}
}

// Two weekly bars; the dividend and the split fall mid-week in the second.
const chartWeekly = `{
  "chart": {
    "result": [{
      "meta": {"symbol": "AAPL", "exchangeTimezoneName": "America/New_York", "gmtoffset": -18000},
      "timestamp": [1704085200, 1704690000],
      "events": {
        "dividends": {
          "1704897000": {"amount": 0.24, "date": 1704897000},
          "1703255400": {"amount": 0.5, "date": 1703255400}
        },
        "splits": {"1704724200": {"date": 1704724200, "numerator": 4, "denominator": 1}}
      },
      "indicators": {
        "quote": [{
          "open":   [100.0, 110.0],
          "high":   [102.0, 112.0],
          "low":    [99.0, 108.0],
          "close":  [101.0, 111.0],
          "volume": [1000, 2000]
        }]
      }
    }],
    "error": null
  }
}`

func TestHistory_CoarseIntervalBucketsEvents(t *testing.T) {
	server := serve(t, http.StatusOK, chartWeekly)

	table, err := NewClient(Options{BaseURL: server.URL}).History(context.Background(), "AAPL", "1y", "1wk")
	if err != nil {
		t.Fatalf("History() returned error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}

	first, second := table.Bars[0], table.Bars[1]
	if first.Dividends != 0 || first.StockSplits != 0 {
		t.Errorf("first week has events: dividends=%v splits=%v", first.Dividends, first.StockSplits)
	}
	if second.Dividends != 0.24 {
		t.Errorf("second week Dividends = %v, want 0.24 (event older than the first bar dropped)", second.Dividends)
	}
	if second.StockSplits != 4 {
		t.Errorf("second week StockSplits = %v, want 4", second.StockSplits)
	}
}

func TestHistory_DailyIntervalKeepsExactDays(t *testing.T) {
	server := serve(t, http.StatusOK, chartWeekly)

	table, err := NewClient(Options{BaseURL: server.URL}).History(context.Background(), "AAPL", "1y", "1d")
	if err != nil {
		t.Fatalf("History() returned error: %v", err)
	}
	// The split shares a day with the second bar; the Jan 10 dividend has no
	// bar of its own at daily resolution.
	for i, b := range table.Bars {
		if b.Dividends != 0 {
			t.Errorf("bar %d Dividends = %v, want 0", i, b.Dividends)
		}
	}
	if got := table.Bars[1].StockSplits; got != 4 {
		t.Errorf("second bar StockSplits = %v, want 4", got)
	}
}
