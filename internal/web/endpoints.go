package web

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/funnyzak/mockflow/internal/workspace"
	"github.com/funnyzak/mockflow/pkg/endpoint"
)

func (s *Service) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	items := s.workspace.List(r.URL.Query().Get("search"))
	if items == nil {
		items = []workspace.Item{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":    items,
		"folders": s.workspace.Folders(),
		"total":   len(items),
	})
}

// handleCreateEndpoint creates a default endpoint, or the posted definition
// when the body carries one.
func (s *Service) handleCreateEndpoint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		*endpoint.Endpoint
		FolderID string `json:"folderId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}

	var (
		ep  *endpoint.Endpoint
		err error
	)
	if body.Endpoint == nil {
		ep, err = s.workspace.AddEndpoint(r.Context(), body.FolderID)
	} else {
		body.Endpoint.FolderID = body.FolderID
		ep, err = s.workspace.CreateEndpoint(r.Context(), body.Endpoint)
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ep)
}

func (s *Service) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ep, err := s.workspace.Endpoint(id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, workspace.Item{Endpoint: ep, Favorite: s.workspace.IsFavorite(id)})
}

func (s *Service) handlePatchEndpoint(w http.ResponseWriter, r *http.Request) {
	var patch workspace.EndpointPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	s.respondEndpoint(w)(s.workspace.Update(r.Context(), mux.Vars(r)["id"], patch))
}

func (s *Service) handleReplaceEndpoint(w http.ResponseWriter, r *http.Request) {
	var ep endpoint.Endpoint
	if err := decodeJSON(w, r, &ep); err != nil {
		s.fail(w, err)
		return
	}
	s.respondEndpoint(w)(s.workspace.Replace(r.Context(), mux.Vars(r)["id"], &ep))
}

func (s *Service) handleDeleteEndpoint(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.workspace.DeleteEndpoint(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.runner.Engine().Tracker().Reset(r.Context(), id); err != nil {
		s.logger.Warn("Failed to reset rate limit state", "endpoint", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleMoveEndpoint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FolderID string `json:"folderId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	s.respondEndpoint(w)(s.workspace.MoveEndpoint(r.Context(), mux.Vars(r)["id"], body.FolderID))
}

func (s *Service) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	favorite, err := s.workspace.ToggleFavorite(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"favorite": favorite})
}

func (s *Service) handleFormatBody(w http.ResponseWriter, r *http.Request) {
	s.respondEndpoint(w)(s.workspace.FormatBody(r.Context(), mux.Vars(r)["id"]))
}

func (s *Service) handleRequestTemplate(w http.ResponseWriter, r *http.Request) {
	s.respondEndpoint(w)(s.workspace.ApplyRequestTemplate(r.Context(), mux.Vars(r)["id"]))
}

func (s *Service) handleAddVariant(w http.ResponseWriter, r *http.Request) {
	v, err := s.workspace.AddVariant(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, v)
}

func (s *Service) handleUpdateVariant(w http.ResponseWriter, r *http.Request) {
	var patch endpoint.VariantPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	vars := mux.Vars(r)
	v, err := s.workspace.UpdateVariant(r.Context(), vars["id"], vars["vid"], patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, v)
}

func (s *Service) handleDeleteVariant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	s.respondEndpoint(w)(s.workspace.DeleteVariant(r.Context(), vars["id"], vars["vid"]))
}

func (s *Service) handleSelectVariant(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VariantID string `json:"variantId"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	s.respondEndpoint(w)(s.workspace.SelectVariant(r.Context(), mux.Vars(r)["id"], body.VariantID))
}

func (s *Service) handleUpdateRateLimit(w http.ResponseWriter, r *http.Request) {
	var patch endpoint.RateLimitPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.fail(w, err)
		return
	}
	policy, err := s.workspace.UpdateRateLimit(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, policy)
}

// handleResetRateLimit clears the tracked window so the next call starts fresh.
func (s *Service) handleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.workspace.Endpoint(id); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.runner.Engine().Tracker().Reset(r.Context(), id); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleShare(w http.ResponseWriter, r *http.Request) {
	ep, err := s.workspace.Endpoint(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	token, err := endpoint.EncodeShare(ep)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	base := s.baseURL
	if base == "" {
		base = endpoint.DefaultBaseURL
	}
	link, err := endpoint.ShareURL(base, ep)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"token": token, "url": link})
}

func (s *Service) handleSnippet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	ep, err := s.workspace.Endpoint(vars["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	code, err := endpoint.Snippet(endpoint.SnippetKind(vars["kind"]), s.baseURL, ep)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"kind": vars["kind"], "code": code})
}

func (s *Service) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	ep, err := s.workspace.Import(r.Context(), body.Token)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ep)
}

func (s *Service) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders := s.workspace.Folders()
	if folders == nil {
		folders = []endpoint.Folder{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"data": folders})
}

func (s *Service) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		s.fail(w, err)
		return
	}
	folder, err := s.workspace.AddFolder(r.Context(), body.Name)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, folder)
}

func (s *Service) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	removed, err := s.workspace.DeleteFolder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, err)
		return
	}
	for _, id := range removed {
		if err := s.runner.Engine().Tracker().Reset(r.Context(), id); err != nil {
			s.logger.Warn("Failed to reset rate limit state", "endpoint", id, "error", err)
		}
	}
	if removed == nil {
		removed = []string{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// respondEndpoint writes the result of a workspace mutation.
func (s *Service) respondEndpoint(w http.ResponseWriter) func(*endpoint.Endpoint, error) {
	return func(ep *endpoint.Endpoint, err error) {
		if err != nil {
			s.fail(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, ep)
	}
}
