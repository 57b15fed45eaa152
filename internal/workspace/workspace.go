// Package workspace holds the user's endpoints, folders and favorites in
// memory and writes every change through to storage.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/funnyzak/mockflow/internal/logger"
	"github.com/funnyzak/mockflow/internal/storage"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

var (
	// ErrNotFound is returned for unknown endpoint or folder ids.
	ErrNotFound = errors.New("not found")
	// ErrInvalidFolder is returned when a folder name is empty.
	ErrInvalidFolder = errors.New("folder name cannot be empty")
	// ErrPersist wraps failures of the underlying store.
	ErrPersist = errors.New("persist workspace")
)

// EndpointPatch is a partial endpoint update; nil fields are left unchanged.
type EndpointPatch struct {
	Name           *string `json:"name,omitempty"`
	Method         *string `json:"method,omitempty"`
	Path           *string `json:"path,omitempty"`
	StatusCode     *int    `json:"statusCode,omitempty"`
	Body           *string `json:"body,omitempty"`
	ContentType    *string `json:"contentType,omitempty"`
	Latency        *int    `json:"latency,omitempty"`
	Schema         *string `json:"schema,omitempty"`
	ResponseSchema *string `json:"responseSchema,omitempty"`
	RequestBody    *string `json:"requestBody,omitempty"`
}

func (p EndpointPatch) apply(ep *endpoint.Endpoint) {
	if p.Name != nil {
		ep.Name = *p.Name
	}
	if p.Method != nil {
		ep.Method = strings.ToUpper(strings.TrimSpace(*p.Method))
	}
	if p.Path != nil {
		ep.Path = strings.TrimSpace(*p.Path)
	}
	if p.StatusCode != nil {
		ep.StatusCode = *p.StatusCode
	}
	if p.Body != nil {
		ep.Body = *p.Body
	}
	if p.ContentType != nil {
		ep.ContentType = *p.ContentType
	}
	if p.Latency != nil {
		ep.Latency = *p.Latency
	}
	if p.Schema != nil {
		ep.Schema = *p.Schema
	}
	if p.ResponseSchema != nil {
		ep.ResponseSchema = *p.ResponseSchema
	}
	if p.RequestBody != nil {
		ep.RequestBody = *p.RequestBody
	}
}

// Item is an endpoint as listed, with its favorite flag.
type Item struct {
	*endpoint.Endpoint
	Favorite bool `json:"favorite"`
}

// Service is safe for concurrent use. Returned endpoints are copies.
type Service struct {
	mu        sync.RWMutex
	store     storage.Store
	log       logger.Logger
	endpoints []*endpoint.Endpoint
	folders   []endpoint.Folder
	favorites map[string]bool
}

// Open loads the workspace from store. When seed is set and the workspace is
// empty, the sample endpoints are installed.
func Open(ctx context.Context, store storage.Store, log logger.Logger, seed bool) (*Service, error) {
	if log == nil {
		log = logger.NewNop()
	}
	snap, err := store.LoadWorkspace(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	s := &Service{
		store:     store,
		log:       log,
		endpoints: snap.Endpoints,
		folders:   snap.Folders,
		favorites: make(map[string]bool, len(snap.Favorites)),
	}
	for _, id := range snap.Favorites {
		s.favorites[id] = true
	}

	if seed && len(s.endpoints) == 0 && len(s.folders) == 0 {
		for _, ep := range endpoint.Defaults() {
			if err := store.SaveEndpoint(ctx, ep); err != nil {
				return nil, fmt.Errorf("seed workspace: %w", err)
			}
			s.endpoints = append(s.endpoints, ep)
		}
		log.Info("Workspace seeded with sample endpoints", "count", len(s.endpoints))
	}
	return s, nil
}

// List returns endpoints with favorites first, keeping insertion order
// otherwise, filtered by a case-insensitive match on name or path.
func (s *Service) List(search string) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(search))
	items := make([]Item, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		if term != "" &&
			!strings.Contains(strings.ToLower(ep.Name), term) &&
			!strings.Contains(strings.ToLower(ep.Path), term) {
			continue
		}
		items = append(items, Item{Endpoint: ep.Clone(), Favorite: s.favorites[ep.ID]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Favorite && !items[j].Favorite
	})
	return items
}

// Endpoint returns a copy of the endpoint with id.
func (s *Service) Endpoint(id string) (*endpoint.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, notFound("endpoint", id)
	}
	return s.endpoints[idx].Clone(), nil
}

// Match finds the first endpoint serving method and path. Trailing slashes
// are ignored.
func (s *Service) Match(method, path string) (*endpoint.Endpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	method = strings.ToUpper(method)
	path = trimSlash(path)
	for _, ep := range s.endpoints {
		if ep.Method == method && trimSlash(ep.Path) == path {
			return ep.Clone(), true
		}
	}
	return nil, false
}

// Folders returns all folders in creation order.
func (s *Service) Folders() []endpoint.Folder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]endpoint.Folder{}, s.folders...)
}

// IsFavorite reports whether id is marked as favorite.
func (s *Service) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites[id]
}

// Snapshot returns a copy of the whole workspace.
func (s *Service) Snapshot() *storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &storage.Snapshot{
		Endpoints: make([]*endpoint.Endpoint, 0, len(s.endpoints)),
		Folders:   append([]endpoint.Folder{}, s.folders...),
		Favorites: []string{},
	}
	for _, ep := range s.endpoints {
		snap.Endpoints = append(snap.Endpoints, ep.Clone())
		if s.favorites[ep.ID] {
			snap.Favorites = append(snap.Favorites, ep.ID)
		}
	}
	return snap
}

// AddEndpoint appends a default endpoint inside folderID ("" for the root).
func (s *Service) AddEndpoint(ctx context.Context, folderID string) (*endpoint.Endpoint, error) {
	return s.CreateEndpoint(ctx, endpoint.New(folderID))
}

// CreateEndpoint appends ep. A missing or clashing id is replaced by a new one.
func (s *Service) CreateEndpoint(ctx context.Context, ep *endpoint.Endpoint) (*endpoint.Endpoint, error) {
	ep = ep.Clone()
	ep.Normalize()
	if err := ep.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ep.FolderID != "" && s.folderIndex(ep.FolderID) < 0 {
		return nil, notFound("folder", ep.FolderID)
	}
	if ep.ID == "" || s.indexOf(ep.ID) >= 0 {
		ep.ID = endpoint.NewID()
	}
	if err := s.store.SaveEndpoint(ctx, ep); err != nil {
		return nil, persistErr(err)
	}
	s.endpoints = append(s.endpoints, ep)
	s.log.Debug("Endpoint created", "id", ep.ID, "method", ep.Method, "path", ep.Path)
	return ep.Clone(), nil
}

// Update applies patch to the endpoint with id.
func (s *Service) Update(ctx context.Context, id string, patch EndpointPatch) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		patch.apply(ep)
		return nil
	})
}

// Replace overwrites the definition of id with ep, keeping id.
func (s *Service) Replace(ctx context.Context, id string, ep *endpoint.Endpoint) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(cur *endpoint.Endpoint) error {
		if ep.FolderID != "" && s.folderIndex(ep.FolderID) < 0 {
			return notFound("folder", ep.FolderID)
		}
		*cur = *ep.Clone()
		cur.ID = id
		return nil
	})
}

// DeleteEndpoint removes the endpoint with id.
func (s *Service) DeleteEndpoint(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return notFound("endpoint", id)
	}
	if err := s.store.DeleteEndpoint(ctx, id); err != nil {
		return persistErr(err)
	}
	s.endpoints = append(s.endpoints[:idx], s.endpoints[idx+1:]...)
	delete(s.favorites, id)
	return nil
}

// MoveEndpoint places the endpoint in folderID ("" for the root).
func (s *Service) MoveEndpoint(ctx context.Context, id, folderID string) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		if folderID != "" && s.folderIndex(folderID) < 0 {
			return notFound("folder", folderID)
		}
		ep.FolderID = folderID
		return nil
	})
}

// ToggleFavorite flips the favorite flag of id and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(id) < 0 {
		return false, notFound("endpoint", id)
	}
	next := !s.favorites[id]
	if err := s.store.SetFavorite(ctx, id, next); err != nil {
		return false, persistErr(err)
	}
	if next {
		s.favorites[id] = true
	} else {
		delete(s.favorites, id)
	}
	return next, nil
}

// AddFolder creates a folder named name.
func (s *Service) AddFolder(ctx context.Context, name string) (endpoint.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return endpoint.Folder{}, ErrInvalidFolder
	}
	folder := endpoint.Folder{ID: endpoint.NewID(), Name: name}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveFolder(ctx, folder); err != nil {
		return endpoint.Folder{}, persistErr(err)
	}
	s.folders = append(s.folders, folder)
	return folder, nil
}

// DeleteFolder removes the folder and every endpoint inside it. It returns
// the ids of the removed endpoints.
func (s *Service) DeleteFolder(ctx context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.folderIndex(id)
	if idx < 0 {
		return nil, notFound("folder", id)
	}
	if err := s.store.DeleteFolder(ctx, id); err != nil {
		return nil, persistErr(err)
	}
	s.folders = append(s.folders[:idx], s.folders[idx+1:]...)

	var removed []string
	kept := s.endpoints[:0]
	for _, ep := range s.endpoints {
		if ep.FolderID == id {
			removed = append(removed, ep.ID)
			delete(s.favorites, ep.ID)
			continue
		}
		kept = append(kept, ep)
	}
	s.endpoints = kept
	return removed, nil
}

// AddVariant appends a default variant to the endpoint.
func (s *Service) AddVariant(ctx context.Context, id string) (endpoint.Variant, error) {
	var v endpoint.Variant
	_, err := s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		v = ep.AddVariant()
		return nil
	})
	return v, err
}

// UpdateVariant patches variant vid of the endpoint.
func (s *Service) UpdateVariant(ctx context.Context, id, vid string, patch endpoint.VariantPatch) (endpoint.Variant, error) {
	var v endpoint.Variant
	_, err := s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		var err error
		v, err = ep.UpdateVariant(vid, patch)
		return err
	})
	return v, err
}

// DeleteVariant removes variant vid, clearing the selection if it was active.
func (s *Service) DeleteVariant(ctx context.Context, id, vid string) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		return ep.DeleteVariant(vid)
	})
}

// SelectVariant activates variant vid; an empty vid restores the defaults.
func (s *Service) SelectVariant(ctx context.Context, id, vid string) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		return ep.SelectVariant(vid)
	})
}

// UpdateRateLimit merges patch into the endpoint's policy. Tracker state is
// left alone.
func (s *Service) UpdateRateLimit(ctx context.Context, id string, patch endpoint.RateLimitPatch) (endpoint.RateLimitPolicy, error) {
	var policy endpoint.RateLimitPolicy
	_, err := s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		policy = ep.UpdateRateLimit(patch)
		return nil
	})
	return policy, err
}

// FormatBody pretty-prints the endpoint's JSON body.
func (s *Service) FormatBody(ctx context.Context, id string) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		return ep.FormatBody()
	})
}

// ApplyRequestTemplate fills the request body with the template for the
// endpoint's method.
func (s *Service) ApplyRequestTemplate(ctx context.Context, id string) (*endpoint.Endpoint, error) {
	return s.mutate(ctx, id, func(ep *endpoint.Endpoint) error {
		ep.RequestBody = ep.RequestTemplate()
		return nil
	})
}

// Import decodes a share token (or a URL carrying one) and appends the
// endpoint under a fresh id at the root.
func (s *Service) Import(ctx context.Context, token string) (*endpoint.Endpoint, error) {
	ep, err := endpoint.DecodeShare(token)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	if ep.FolderID != "" && s.folderIndex(ep.FolderID) < 0 {
		ep.FolderID = ""
	}
	s.mu.RUnlock()
	return s.CreateEndpoint(ctx, ep)
}

// mutate applies fn to a copy of the endpoint, validates and persists the
// copy, and only then swaps it in.
func (s *Service) mutate(ctx context.Context, id string, fn func(*endpoint.Endpoint) error) (*endpoint.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, notFound("endpoint", id)
	}
	next := s.endpoints[idx].Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveEndpoint(ctx, next); err != nil {
		return nil, persistErr(err)
	}
	s.endpoints[idx] = next
	return next.Clone(), nil
}

func (s *Service) indexOf(id string) int {
	for i, ep := range s.endpoints {
		if ep.ID == id {
			return i
		}
	}
	return -1
}

func (s *Service) folderIndex(id string) int {
	for i, f := range s.folders {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func persistErr(err error) error {
	return fmt.Errorf("%w: %w", ErrPersist, err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}
