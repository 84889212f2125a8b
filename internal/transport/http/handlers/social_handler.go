package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/dkralj/chatsync/internal/service"
	"github.com/dkralj/chatsync/internal/transport/http/middleware"
	"github.com/google/uuid"
)

type SocialHandler struct {
	socialService *service.SocialService
}

func NewSocialHandler(socialService *service.SocialService) *SocialHandler {
	return &SocialHandler{socialService: socialService}
}

func (h *SocialHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	targetID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := h.socialService.SendRequest(r.Context(), userID, targetID); err != nil {
		switch {
		case errors.Is(err, service.ErrCannotRequestSelf):
			writeError(w, http.StatusBadRequest, "SELF_REQUEST", "You cannot connect with yourself")
		case errors.Is(err, service.ErrAlreadyConnected):
			writeError(w, http.StatusConflict, "ALREADY_CONNECTED", "You are already connected")
		case errors.Is(err, service.ErrUserNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		default:
			log.Printf("ERROR send request: %v", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SocialHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.runPairOp(w, r, "accept request", h.socialService.AcceptRequest)
}

func (h *SocialHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.runPairOp(w, r, "reject request", h.socialService.RejectRequest)
}

func (h *SocialHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.runPairOp(w, r, "cancel request", h.socialService.CancelRequest)
}

func (h *SocialHandler) RemoveConnection(w http.ResponseWriter, r *http.Request) {
	h.runPairOp(w, r, "remove connection", h.socialService.RemoveConnection)
}

// runPairOp runs one reciprocal graph edit between the caller and the user in
// the path, with shared error mapping.
func (h *SocialHandler) runPairOp(w http.ResponseWriter, r *http.Request, opName string, op func(ctx context.Context, userID, otherID uuid.UUID) error) {
	userID := middleware.GetUserID(r.Context())
	otherID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	if err := op(r.Context(), userID, otherID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		} else {
			log.Printf("ERROR %s: %v", opName, err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pathUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
		return uuid.Nil, false
	}
	return id, true
}
