package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/scrypster/reverie/internal/storage"
	"github.com/scrypster/reverie/pkg/types"
)

// ContextHandlers serves /api/context, the user's profile.
type ContextHandlers struct {
	profiles storage.ProfileStore
	log      zerolog.Logger
}

// NewContextHandlers creates a new ContextHandlers instance.
func NewContextHandlers(profiles storage.ProfileStore, log zerolog.Logger) *ContextHandlers {
	return &ContextHandlers{profiles: profiles, log: log.With().Str("handler", "context").Logger()}
}

// GetContext handles GET /api/context. A profile that was never saved is
// returned empty rather than as 404.
func (h *ContextHandlers) GetContext(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.LoadProfile(r.Context())
	if errors.Is(err, storage.ErrNotFound) {
		profile, err = &types.UserProfile{}, nil
	}
	if err != nil {
		respondFailure(w, h.log, err)
		return
	}
	if profile.NameMappings == nil {
		profile.NameMappings = []types.NameMapping{}
	}
	respondJSON(w, http.StatusOK, ProfileResponse{Success: true, Data: *profile})
}

// PutContext handles PUT /api/context. All four text fields must be present
// as strings; they may be empty. The stored profile is replaced wholesale.
func (h *ContextHandlers) PutContext(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, f := range []struct {
		name  string
		value *string
	}{
		{"background_info", req.Background},
		{"goals", req.Goals},
		{"current_projects", req.CurrentProjects},
		{"other", req.Other},
	} {
		if f.value == nil {
			respondError(w, http.StatusBadRequest, "Invalid or missing field: "+f.name)
			return
		}
	}

	profile := &types.UserProfile{
		Background:      *req.Background,
		Goals:           *req.Goals,
		CurrentProjects: *req.CurrentProjects,
		Other:           *req.Other,
		NameMappings:    req.NameMappings,
	}
	if profile.NameMappings == nil {
		profile.NameMappings = []types.NameMapping{}
	}

	if err := h.profiles.SaveProfile(r.Context(), profile); err != nil {
		respondFailure(w, h.log, err)
		return
	}

	h.log.Info().Int("name_mappings", len(profile.NameMappings)).Msg("profile updated")
	respondJSON(w, http.StatusOK, ProfileResponse{Success: true, Data: *profile})
}
