package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"hati/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type createTeamRequest struct {
	Name string `json:"name"`
}

func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	teamID := uuid.NewString()
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.members.CreateTeam(r.Context(), tx, teamID, name, userID); err != nil {
			return err
		}
		if err := h.members.AddMember(r.Context(), tx, teamID, userID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "create_team", "team", teamID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create team")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": teamID, "name": name})
}

func (h *Handler) ListMyTeams(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	teams, err := h.members.ListTeamsForUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list teams")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	teamID := chi.URLParam(r, "teamID")
	if ok, err := h.members.IsMember(r.Context(), teamID, userID); err != nil || !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	members, err := h.members.ListMembers(r.Context(), teamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"members": members})
}

type addMemberRequest struct {
	Email string `json:"email"`
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	teamID := chi.URLParam(r, "teamID")
	if ok, err := h.members.IsMember(r.Context(), teamID, userID); err != nil || !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	var req addMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := h.members.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.members.AddMember(r.Context(), tx, teamID, user.ID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "add_member", "team", teamID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to add member")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"user_id": user.ID})
}

// RemoveMember tombstones the membership. Existing settlements owed by or
// to the departing member stay open; only future splits exclude them.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	teamID := chi.URLParam(r, "teamID")
	targetID := chi.URLParam(r, "userID")
	if ok, err := h.members.IsMember(r.Context(), teamID, userID); err != nil || !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	var removed int64
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		var err error
		removed, err = h.members.RemoveMember(r.Context(), tx, teamID, targetID)
		if err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "remove_member", "team", teamID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to remove member")
		return
	}
	if removed == 0 {
		respondError(w, http.StatusNotFound, "member not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (h *Handler) TeamBalances(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	summary, err := h.service.TeamBalances(r.Context(), chi.URLParam(r, "teamID"), userID)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
