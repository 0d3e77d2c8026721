package processor

import (
	"testing"
	"time"

	"optionflow/models"
)

func jst(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, models.JST)
}

func TestIntraday(t *testing.T) {
	cases := []struct {
		name  string
		ref   time.Time
		clock Clock
		want  time.Time
	}{
		{"rolls back across midnight", jst(2024, 3, 10, 0, 15), Clock{23, 58}, jst(2024, 3, 9, 23, 58)},
		{"same day", jst(2024, 3, 10, 10, 0), Clock{9, 45}, jst(2024, 3, 10, 9, 45)},
		{"equal to reference", jst(2024, 3, 10, 10, 0), Clock{10, 0}, jst(2024, 3, 10, 10, 0)},
		{"new year", jst(2025, 1, 1, 0, 5), Clock{23, 59}, jst(2024, 12, 31, 23, 59)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NewReconciler(c.ref).Intraday(c.clock)
			if !got.Equal(c.want) {
				t.Fatalf("Intraday(%s) = %v, want %v", c.clock, got, c.want)
			}
			if got.After(c.ref) {
				t.Fatalf("resolved time %v after reference %v", got, c.ref)
			}
		})
	}
}

func TestIntradayInputZone(t *testing.T) {
	// 2024-03-09 15:15 UTC is 2024-03-10 00:15 JST
	ref := time.Date(2024, 3, 9, 15, 15, 0, 0, time.UTC)
	got := NewReconciler(ref).Intraday(Clock{0, 10})
	if !got.Equal(jst(2024, 3, 10, 0, 10)) {
		t.Fatalf("Intraday used the input zone: %v", got)
	}
}

func TestContractMonth(t *testing.T) {
	cases := []struct {
		name  string
		ref   time.Time
		yy, m int
		want  time.Time
	}{
		{"next year no rollover", jst(2024, 12, 20, 15, 0), 25, 1, jst(2025, 1, 1, 0, 0)},
		{"apparent past month rolls forward", jst(2025, 1, 5, 9, 0), 24, 12, jst(2025, 12, 1, 0, 0)},
		{"current month kept", jst(2024, 3, 10, 0, 15), 24, 3, jst(2024, 3, 1, 0, 0)},
		{"later this year", jst(2024, 3, 10, 0, 15), 24, 6, jst(2024, 6, 1, 0, 0)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := NewReconciler(c.ref).ContractMonth(c.yy, c.m)
			if !got.Equal(c.want) {
				t.Fatalf("ContractMonth(%d, %d) = %v, want %v", c.yy, c.m, got, c.want)
			}
		})
	}
}

func TestSettlementDate(t *testing.T) {
	rec := NewReconciler(jst(2025, 1, 6, 9, 0))
	if got := rec.SettlementDate(12, 30); !got.Equal(jst(2024, 12, 30, 0, 0)) {
		t.Fatalf("SettlementDate across year end = %v", got)
	}
	if got := rec.SettlementDate(1, 6); !got.Equal(jst(2025, 1, 6, 0, 0)) {
		t.Fatalf("SettlementDate same day = %v", got)
	}
}

func TestParseUpdatedAt(t *testing.T) {
	now := jst(2024, 3, 10, 0, 16)

	got, err := ParseUpdatedAt("2024/03/10 00:15", now)
	if err != nil || !got.Equal(jst(2024, 3, 10, 0, 15)) {
		t.Fatalf("full label = %v, %v", got, err)
	}

	got, err = ParseUpdatedAt("03/10 00:15", now)
	if err != nil || !got.Equal(jst(2024, 3, 10, 0, 15)) {
		t.Fatalf("short label = %v, %v", got, err)
	}

	// fetched just after new year for a page still showing December
	got, err = ParseUpdatedAt("12/30 15:15", jst(2025, 1, 1, 9, 0))
	if err != nil || !got.Equal(jst(2024, 12, 30, 15, 15)) {
		t.Fatalf("year-end label = %v, %v", got, err)
	}

	if _, err := ParseUpdatedAt("yesterday", now); err == nil {
		t.Fatal("garbage label accepted")
	}
}
