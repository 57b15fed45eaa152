package storage

import (
	"math"
	"strings"
	"time"

	"github.com/funnyzak/mockflow/internal/simulator"
)

// History sources.
const (
	SourceMock = "mock"
	SourceLive = "live"
)

// HistoryEntry is one recorded call, mock or live.
type HistoryEntry struct {
	ID         string            `json:"id"`
	Endpoint   string            `json:"endpoint"`
	EndpointID string            `json:"endpointId,omitempty"`
	Source     string            `json:"source"`
	Method     string            `json:"method"`
	Status     int               `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Data       simulator.Payload `json:"data"`
	// Latency is the configured latency in milliseconds; live calls record 0.
	Latency int `json:"latency"`
}

// Success reports a status below 300.
func (e *HistoryEntry) Success() bool {
	return e.Status < 300
}

// HistoryOptions controls filtering and pagination when listing history.
type HistoryOptions struct {
	Search string
	Method string
	Source string
	Limit  int
	Offset int
}

func (o HistoryOptions) matches(e *HistoryEntry) bool {
	if method := strings.TrimSpace(o.Method); method != "" && !strings.EqualFold(e.Method, method) {
		return false
	}
	if source := strings.TrimSpace(o.Source); source != "" && !strings.EqualFold(e.Source, source) {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(o.Search)); search != "" {
		return strings.Contains(strings.ToLower(e.Endpoint), search)
	}
	return true
}

// Analytics 汇总历史记录
type Analytics struct {
	Total       int `json:"total"`
	Success     int `json:"success"`
	Errors      int `json:"errors"`
	SuccessRate int `json:"successRate"`
	ErrorRate   int `json:"errorRate"`
	AvgLatency  int `json:"avgLatency"`
}

// Summarize computes analytics over entries. Rates are whole percentages and
// the average latency is rounded to the nearest millisecond.
func Summarize(entries []*HistoryEntry) Analytics {
	var a Analytics
	a.Total = len(entries)
	if a.Total == 0 {
		return a
	}
	latency := 0
	for _, e := range entries {
		if e.Success() {
			a.Success++
		}
		latency += e.Latency
	}
	a.Errors = a.Total - a.Success
	total := float64(a.Total)
	a.SuccessRate = int(math.Round(float64(a.Success) / total * 100))
	a.ErrorRate = int(math.Round(float64(a.Errors) / total * 100))
	a.AvgLatency = int(math.Round(float64(latency) / total))
	return a
}

func paginate(items []*HistoryEntry, limit, offset int) []*HistoryEntry {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return items[offset:end]
}
