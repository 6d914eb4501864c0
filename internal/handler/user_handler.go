package handler

import (
	"net/http"

	"marketplace-auth/internal/model"
	"marketplace-auth/internal/service"
)

type UserHandler struct {
	service *service.AuthService
}

func NewUserHandler(service *service.AuthService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users, &model.Meta{Total: len(users.Users)})
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateRoleRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.UpdateRole(r.Context(), actor.UserID, userID, payload.Role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateStatusRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.UpdateStatus(r.Context(), actor.UserID, userID, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, err := userIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.DeleteUser(r.Context(), actor.UserID, userID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}
