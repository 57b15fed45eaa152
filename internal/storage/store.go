// Package storage persists the workspace (endpoints, folders, favorites) and
// the bounded call history.
package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/funnyzak/mockflow/internal/config"
	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

// ErrUnsupportedDriver indicates the configured driver is not available.
var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// DefaultHistoryLimit is the number of history entries kept when the config
// does not say otherwise.
const DefaultHistoryLimit = 20

// Snapshot is the persisted workspace in insertion order.
type Snapshot struct {
	Endpoints []*endpoint.Endpoint `json:"endpoints"`
	Folders   []endpoint.Folder    `json:"folders"`
	Favorites []string             `json:"favorites"`
}

// Store defines the persistence contract for the workspace and call history.
type Store interface {
	LoadWorkspace(ctx context.Context) (*Snapshot, error)
	// SaveEndpoint inserts or replaces an endpoint. Replacing keeps its position.
	SaveEndpoint(ctx context.Context, ep *endpoint.Endpoint) error
	DeleteEndpoint(ctx context.Context, id string) error
	SaveFolder(ctx context.Context, folder endpoint.Folder) error
	// DeleteFolder removes the folder together with the endpoints inside it.
	DeleteFolder(ctx context.Context, id string) error
	SetFavorite(ctx context.Context, endpointID string, favorite bool) error

	// RecordHistory stores entry, assigning ID and timestamp when empty, and
	// prunes the oldest entries beyond the history limit.
	RecordHistory(ctx context.Context, entry *HistoryEntry) (*HistoryEntry, error)
	ListHistory(ctx context.Context, opts HistoryOptions) ([]*HistoryEntry, int, error)
	IterateHistory(ctx context.Context, opts HistoryOptions, fn func(*HistoryEntry) bool) error
	ClearHistory(ctx context.Context) error

	Close() error
}

// New instantiates a Store based on configuration.
func New(cfg *config.StorageConfig, log logger.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("storage config is nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "sqlite", "sqlite3":
		return newSQLiteStore(cfg, log)
	case "memory":
		return NewMemoryStore(cfg.HistoryLimit), nil
	default:
		return nil, ErrUnsupportedDriver
	}
}

func historyLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}
