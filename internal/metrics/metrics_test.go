package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.Snapshot("new_minute")
	m.Snapshot("duplicate_minute")
	m.Failure("fetch")
	m.Rows(6)
	m.Fetched(2048)
	m.Conflict()
	m.ObserveCycle(300 * time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		`optionflow_snapshots_total{outcome="new_minute"} 1`,
		`optionflow_cycle_failures_total{stage="fetch"} 1`,
		`optionflow_option_rows_total 6`,
		`optionflow_fetch_bytes_total 2048`,
		`optionflow_reference_conflicts_total 1`,
		`optionflow_cycle_duration_seconds_count 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Snapshot("x")
	m.Failure("x")
	m.Rows(1)
	m.Fetched(1)
	m.Conflict()
	m.ObserveCycle(time.Second)
}
