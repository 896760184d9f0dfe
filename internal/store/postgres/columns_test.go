package postgres

import (
	"strings"
	"testing"
)

func TestWindowColumnHelpers(t *testing.T) {
	if got := waitStartColumn(2); got != "w2_wait_start" {
		t.Fatalf("expected w2_wait_start, got %s", got)
	}
	if got := waitingSecondsColumn(1); got != "w1_waiting_seconds" {
		t.Fatalf("expected w1_waiting_seconds, got %s", got)
	}
	if got := servingSecondsColumn(3); got != "w3_serving_seconds" {
		t.Fatalf("expected w3_serving_seconds, got %s", got)
	}
}

func TestElapsedSecondsClampsAtZero(t *testing.T) {
	sql := elapsedSeconds("$3", "serving_started_at")
	if !strings.HasPrefix(sql, "GREATEST(0,") {
		t.Fatalf("elapsed seconds must clamp negative spans: %s", sql)
	}
	if !strings.Contains(sql, "serving_started_at") || !strings.Contains(sql, "$3") {
		t.Fatalf("elapsed seconds must reference both operands: %s", sql)
	}
}
