package storage

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != (Analytics{}) {
		t.Fatalf("empty history should yield zero analytics, got %+v", got)
	}

	now := time.Now()
	entries := []*HistoryEntry{
		fakeEntry("a", 200, now),
		fakeEntry("b", 299, now),
		fakeEntry("c", 300, now),
	}
	entries[0].Latency = 100
	entries[1].Latency = 200
	entries[2].Latency = 0

	got := Summarize(entries)
	want := Analytics{Total: 3, Success: 2, Errors: 1, SuccessRate: 67, ErrorRate: 33, AvgLatency: 100}
	if got != want {
		t.Fatalf("Summarize() = %+v, want %+v", got, want)
	}
}

func TestMemoryStoreDefaultLimit(t *testing.T) {
	s := NewMemoryStore(0)
	if s.limit != DefaultHistoryLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultHistoryLimit, s.limit)
	}
}
