package web

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/funnyzak/mockflow/internal/storage"
)

// HistoryIterator yields history entries until yield returns false.
type HistoryIterator func(yield func(*storage.HistoryEntry) bool) error

// StreamExport writes entries to w in format ("json" or "csv") and returns
// the content type and file extension.
func StreamExport(w io.Writer, iter HistoryIterator, format string) (string, string, error) {
	switch strings.ToLower(format) {
	case "json":
		return "application/json", "json", exportJSON(w, iter)
	case "csv":
		return "text/csv", "csv", exportCSV(w, iter)
	default:
		return "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

func exportJSON(w io.Writer, iter HistoryIterator) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	first := true
	var writeErr error
	err := iter(func(e *storage.HistoryEntry) bool {
		data, err := json.Marshal(e)
		if err != nil {
			writeErr = err
			return false
		}
		if !first {
			if _, writeErr = io.WriteString(w, ","); writeErr != nil {
				return false
			}
		}
		first = false
		_, writeErr = w.Write(data)
		return writeErr == nil
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	_, err = io.WriteString(w, "]\n")
	return err
}

func exportCSV(w io.Writer, iter HistoryIterator) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "timestamp", "source", "method", "endpoint", "status", "latency_ms", "data"}); err != nil {
		return err
	}

	var writeErr error
	err := iter(func(e *storage.HistoryEntry) bool {
		data, err := json.Marshal(e.Data)
		if err != nil {
			writeErr = err
			return false
		}
		writeErr = writer.Write([]string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.Source,
			e.Method,
			e.Endpoint,
			strconv.Itoa(e.Status),
			strconv.Itoa(e.Latency),
			string(data),
		})
		return writeErr == nil
	})
	if err != nil {
		return err
	}
	if writeErr != nil {
		return writeErr
	}
	writer.Flush()
	return writer.Error()
}

// AllowedFormats normalizes configured export formats. Only json and csv are
// supported; an empty list allows both.
func AllowedFormats(formats []string) []string {
	set := make(map[string]struct{})
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "json" || f == "csv" {
			set[f] = struct{}{}
		}
	}
	if len(set) == 0 {
		return []string{"csv", "json"}
	}
	result := make([]string, 0, len(set))
	for f := range set {
		result = append(result, f)
	}
	sort.Strings(result)
	return result
}

func containsFormat(formats []string, target string) bool {
	for _, f := range formats {
		if f == target {
			return true
		}
	}
	return false
}
