package projects

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/group"
	"github.com/Vasu1712/stemhub-backend/internal/identity"
	"github.com/Vasu1712/stemhub-backend/internal/lifecycle"
	"github.com/Vasu1712/stemhub-backend/internal/middleware"
	"github.com/Vasu1712/stemhub-backend/internal/models"
	"github.com/Vasu1712/stemhub-backend/internal/queue"
	"github.com/Vasu1712/stemhub-backend/internal/ws"
)

// ProjectHandler holds the dependencies for handling project-related HTTP requests.
type ProjectHandler struct {
	Lifecycle  *lifecycle.Service
	Queue      *queue.Manager
	Identities *identity.Registry
	Groups     *group.Service
	Hub        *ws.Hub
	Log        *zap.Logger
}

// projectView is the public shape of a project. Voter identities and spent
// nullifiers never leave the server.
type projectView struct {
	ID              string              `json:"id"`
	CreatedBy       string              `json:"createdBy"`
	Collaborators   []string            `json:"collaborators"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	BPM             int                 `json:"bpm"`
	TrackLimit      int                 `json:"trackLimit"`
	Tags            []string            `json:"tags"`
	Stems           []models.Stem       `json:"stems"`
	Queue           []models.QueuedStem `json:"queue"` // Tally order
	VotingGroupID   int64               `json:"votingGroupId"`
	Voters          int                 `json:"voters"`
	DirectAccept    bool                `json:"directAccept"`
	ActiveListeners int                 `json:"activeListeners"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func (h *ProjectHandler) view(p *models.Project) projectView {
	return projectView{
		ID:              p.ID,
		CreatedBy:       p.CreatedBy,
		Collaborators:   p.Collaborators,
		Name:            p.Name,
		Description:     p.Description,
		BPM:             p.BPM,
		TrackLimit:      p.TrackLimit,
		Tags:            p.Tags,
		Stems:           p.Stems,
		Queue:           models.Tally(p.Queue),
		VotingGroupID:   p.VotingGroupID,
		Voters:          len(p.VoterIdentities),
		DirectAccept:    p.DirectAccept,
		ActiveListeners: h.Hub.ActiveClients(p.ID),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// CreateProject handles the HTTP POST request to create a new project.
// The caller becomes createdBy regardless of the payload.
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.UserID(r.Context())

	var req models.NewProject
	if !h.decode(w, r, &req) {
		return
	}
	req.CreatedBy = caller

	p, err := h.Lifecycle.CreateProject(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(p))
}

// GetProject returns the public view of one project.
func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.Lifecycle.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(p))
}

// DeleteProject removes a project; only its creator may do so.
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.UserID(r.Context())
	projectID := mux.Vars(r)["id"]

	if err := h.Lifecycle.DeleteProject(r.Context(), projectID, caller); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddCollaborator lets an existing collaborator invite another user.
func (h *ProjectHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	projectID := mux.Vars(r)["id"]
	if !h.requireCollaborator(w, r, projectID) {
		return
	}

	p, err := h.Lifecycle.AddCollaborator(r.Context(), projectID, req.UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projectId":     p.ID,
		"collaborators": p.Collaborators,
	})
}

// SubmitStem stores a stem from the caller and queues it.
func (h *ProjectHandler) SubmitStem(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.UserID(r.Context())

	var draft models.StemDraft
	if !h.decode(w, r, &draft) {
		return
	}

	sub, err := h.Lifecycle.SubmitStem(r.Context(), mux.Vars(r)["id"], caller, draft)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Tally returns the queue ranked by votes.
func (h *ProjectHandler) Tally(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["id"]
	tally, err := h.Queue.Tally(r.Context(), projectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"projectId": projectID,
		"queue":     tally,
	})
}

// Members returns the commitments registered in the project's voting group.
func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	p, err := h.Lifecycle.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	members, err := h.Groups.Members(r.Context(), p.VotingGroupID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"votingGroupId": p.VotingGroupID,
		"commitments":   members,
	})
}

// CastVote records an anonymous vote. No session is required; the
// commitment and nullifier stand in for the voter.
func (h *ProjectHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StemID     string `json:"stemId"`
		Commitment string `json:"commitment"`
		Nullifier  string `json:"nullifier"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	votes, err := h.Queue.CastVote(r.Context(), mux.Vars(r)["id"], req.StemID, req.Commitment, req.Nullifier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"stemId": req.StemID,
		"votes":  votes,
	})
}

// RegisterIdentity issues the caller an identity in the project's voting
// group. The trapdoor is in this response and nowhere else.
func (h *ProjectHandler) RegisterIdentity(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.UserID(r.Context())
	p, err := h.Lifecycle.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id, err := h.Identities.Register(r.Context(), caller, p.VotingGroupID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, id)
}

// RevokeIdentity removes the caller's identity from the project's voting group.
func (h *ProjectHandler) RevokeIdentity(w http.ResponseWriter, r *http.Request) {
	caller, _ := middleware.UserID(r.Context())
	p, err := h.Lifecycle.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.Identities.Revoke(r.Context(), caller, p.VotingGroupID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Promote moves top-voted stems into the project. A full project is reported
// as a normal "queue full" state.
func (h *ProjectHandler) Promote(w http.ResponseWriter, r *http.Request) {
	var policy lifecycle.Policy
	if !h.decode(w, r, &policy) {
		return
	}
	projectID := mux.Vars(r)["id"]
	if !h.requireCollaborator(w, r, projectID) {
		return
	}

	promoted, err := h.Lifecycle.Promote(r.Context(), projectID, policy)
	if errors.Is(err, models.ErrNoCapacity) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "queue full",
			"promoted": []models.Stem{},
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "promoted",
		"promoted": promoted,
	})
}

func (h *ProjectHandler) requireCollaborator(w http.ResponseWriter, r *http.Request, projectID string) bool {
	caller, _ := middleware.UserID(r.Context())
	p, err := h.Lifecycle.GetProject(r.Context(), projectID)
	if err != nil {
		h.writeError(w, r, err)
		return false
	}
	if !p.IsCollaborator(caller) {
		h.writeError(w, r, models.ErrCollaboratorOnly)
		return false
	}
	return true
}

var upgrader = websocket.Upgrader{}

// ServeWS streams tally updates for one project.
func (h *ProjectHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		http.Error(w, "Project ID is required for WebSocket connection", http.StatusBadRequest)
		return
	}
	if _, err := h.Lifecycle.GetProject(r.Context(), projectID); err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("Failed to upgrade WebSocket", zap.String("projectID", projectID), zap.Error(err))
		return
	}

	client := &ws.Client{
		ProjectID: projectID,
		Send:      make(chan []byte, 16),
		Conn:      conn,
	}
	if !h.Hub.Join(client) {
		conn.Close()
		return
	}
	h.Log.Debug("WebSocket subscribed", zap.String("projectID", projectID))

	// Read pump: only used to notice the client going away.
	go func() {
		defer func() {
			h.Hub.Leave(client)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					h.Log.Debug("WebSocket read error", zap.String("projectID", projectID), zap.Error(err))
				}
				return
			}
		}
	}()

	// Write pump: forwards hub messages until the hub closes Send.
	go func() {
		defer conn.Close()
		for message := range client.Send {
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.Log.Debug("WebSocket write error", zap.String("projectID", projectID), zap.Error(err))
				return
			}
		}
	}()
}

func (h *ProjectHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		h.Log.Debug("Error decoding request body", zap.String("path", r.URL.Path), zap.Error(err))
		return false
	}
	return true
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *ProjectHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch models.KindOf(err) {
	case models.KindValidation:
		status = http.StatusBadRequest
	case models.KindConflict:
		status = http.StatusConflict
	case models.KindAuthorization:
		status = http.StatusForbidden
	case models.KindNotFound:
		status = http.StatusNotFound
	case models.KindCapacity:
		status = http.StatusOK
	}

	if status == http.StatusInternalServerError {
		h.Log.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, status, map[string]string{"error": "internal error"})
		return
	}
	h.Log.Debug("Request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, status, map[string]string{
		"error":   models.KindOf(err).String(),
		"code":    models.CodeOf(err),
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
