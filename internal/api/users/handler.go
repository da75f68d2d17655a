package users

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/lifecycle"
	"github.com/Vasu1712/stemhub-backend/internal/middleware"
)

// UserHandler serves the caller's own account data.
type UserHandler struct {
	Lifecycle *lifecycle.Service
	Log       *zap.Logger
}

type projectSummary struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	CreatedBy     string `json:"createdBy"`
	VotingGroupID int64  `json:"votingGroupId"`
	TrackLimit    int    `json:"trackLimit"`
	Stems         int    `json:"stems"`
	Queued        int    `json:"queued"`
	Registered    bool   `json:"registered"` // caller holds an identity in the project's group
}

type meResponse struct {
	ID                 string           `json:"id"`
	StemIDs            []string         `json:"stemIds"`
	RegisteredGroupIDs []int64          `json:"registeredGroupIds"`
	Projects           []projectSummary `json:"projects"`
}

// Me lists the projects the caller collaborates on. Identity secrets are not
// part of the response.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.UserID(r.Context())

	u, projects, err := h.Lifecycle.UserProjects(r.Context(), caller)
	if err != nil {
		h.Log.Error("Failed to load user projects", zap.String("userID", caller), zap.Error(err))
		http.Error(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	resp := meResponse{
		ID:                 u.ID,
		StemIDs:            u.StemIDs,
		RegisteredGroupIDs: u.RegisteredGroupIDs,
		Projects:           make([]projectSummary, 0, len(projects)),
	}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, projectSummary{
			ID:            p.ID,
			Name:          p.Name,
			CreatedBy:     p.CreatedBy,
			VotingGroupID: p.VotingGroupID,
			TrackLimit:    p.TrackLimit,
			Stems:         len(p.Stems),
			Queued:        len(p.Queue),
			Registered:    u.IsRegistered(p.VotingGroupID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
	h.Log.Debug("Listed user projects", zap.String("userID", caller), zap.Int("projects", len(resp.Projects)))
}
