package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/funnyzak/mockflow/pkg/endpoint"
)

// MemoryStore keeps the workspace in maps and the history in a bounded
// newest-last buffer. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	limit     int
	endpoints []*endpoint.Endpoint
	folders   []endpoint.Folder
	favorites map[string]struct{}
	history   []*HistoryEntry
}

// NewMemoryStore creates a MemoryStore keeping at most historyLimit entries.
func NewMemoryStore(historyLimit int) *MemoryStore {
	limit := historyLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &MemoryStore{
		limit:     limit,
		favorites: make(map[string]struct{}),
		history:   make([]*HistoryEntry, 0, limit),
	}
}

func (s *MemoryStore) LoadWorkspace(context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		Endpoints: make([]*endpoint.Endpoint, 0, len(s.endpoints)),
		Folders:   append([]endpoint.Folder{}, s.folders...),
		Favorites: make([]string, 0, len(s.favorites)),
	}
	for _, ep := range s.endpoints {
		snap.Endpoints = append(snap.Endpoints, ep.Clone())
		if _, ok := s.favorites[ep.ID]; ok {
			snap.Favorites = append(snap.Favorites, ep.ID)
		}
	}
	return snap, nil
}

func (s *MemoryStore) SaveEndpoint(_ context.Context, ep *endpoint.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.endpoints {
		if cur.ID == ep.ID {
			s.endpoints[i] = ep.Clone()
			return nil
		}
	}
	s.endpoints = append(s.endpoints, ep.Clone())
	return nil
}

func (s *MemoryStore) DeleteEndpoint(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeEndpoints(func(ep *endpoint.Endpoint) bool { return ep.ID == id })
	return nil
}

func (s *MemoryStore) SaveFolder(_ context.Context, folder endpoint.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.folders {
		if cur.ID == folder.ID {
			s.folders[i] = folder
			return nil
		}
	}
	s.folders = append(s.folders, folder)
	return nil
}

func (s *MemoryStore) DeleteFolder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	folders := s.folders[:0]
	for _, f := range s.folders {
		if f.ID != id {
			folders = append(folders, f)
		}
	}
	s.folders = folders
	s.removeEndpoints(func(ep *endpoint.Endpoint) bool { return ep.FolderID == id })
	return nil
}

func (s *MemoryStore) removeEndpoints(drop func(*endpoint.Endpoint) bool) {
	kept := s.endpoints[:0]
	for _, ep := range s.endpoints {
		if drop(ep) {
			delete(s.favorites, ep.ID)
			continue
		}
		kept = append(kept, ep)
	}
	s.endpoints = kept
}

func (s *MemoryStore) SetFavorite(_ context.Context, endpointID string, favorite bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if favorite {
		s.favorites[endpointID] = struct{}{}
	} else {
		delete(s.favorites, endpointID)
	}
	return nil
}

func (s *MemoryStore) RecordHistory(_ context.Context, entry *HistoryEntry) (*HistoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.history) >= s.limit {
		// drop oldest
		s.history = append(s.history[len(s.history)-s.limit+1:], entry)
	} else {
		s.history = append(s.history, entry)
	}
	return entry, nil
}

func (s *MemoryStore) ListHistory(_ context.Context, opts HistoryOptions) ([]*HistoryEntry, int, error) {
	filtered := s.filtered(opts)
	return paginate(filtered, opts.Limit, opts.Offset), len(filtered), nil
}

func (s *MemoryStore) IterateHistory(_ context.Context, opts HistoryOptions, fn func(*HistoryEntry) bool) error {
	for _, entry := range s.filtered(opts) {
		if !fn(entry) {
			break
		}
	}
	return nil
}

// filtered returns matching entries, newest first.
func (s *MemoryStore) filtered(opts HistoryOptions) []*HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*HistoryEntry, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		if opts.matches(s.history[i]) {
			out = append(out, s.history[i])
		}
	}
	return out
}

func (s *MemoryStore) ClearHistory(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:0]
	return nil
}

func (s *MemoryStore) Close() error { return nil }
