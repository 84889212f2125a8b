package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dkralj/chatsync/internal/botapi"
	"github.com/dkralj/chatsync/internal/service"
	"github.com/dkralj/chatsync/internal/transport/http/middleware"
	"github.com/dkralj/chatsync/pkg/validator"
	"github.com/google/uuid"
)

const maxRAGUploadSize = 20 << 20 // 20 MB

type GroupHandler struct {
	groupService *service.GroupService
	bot          *botapi.Client
}

func NewGroupHandler(groupService *service.GroupService, bot *botapi.Client) *GroupHandler {
	return &GroupHandler{groupService: groupService, bot: bot}
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateGroupInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.ValidateGroup(input.Name, input.Description, input.Visibility); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	group, err := h.groupService.Create(r.Context(), userID, input)
	if err != nil {
		log.Printf("ERROR create group: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}

	group, err := h.groupService.Get(r.Context(), userID, groupID)
	if err != nil {
		writeGroupError(w, "get group", err)
		return
	}

	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groupService.ListPublic(r.Context())
	if err != nil {
		log.Printf("ERROR list groups: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

func (h *GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}

	if err := h.groupService.Join(r.Context(), groupID, userID, ""); err != nil {
		writeGroupError(w, "join group", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}

	if err := h.groupService.Leave(r.Context(), groupID, userID); err != nil {
		writeGroupError(w, "leave group", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadRAGDocument forwards a document to the assistant's retrieval index.
// Admin-only, and only for groups that have retrieval enabled.
func (h *GroupHandler) UploadRAGDocument(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}

	group, err := h.groupService.Get(r.Context(), userID, groupID)
	if err != nil {
		writeGroupError(w, "rag upload", err)
		return
	}
	if !group.IsAdmin(userID) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Only a group admin can upload documents")
		return
	}
	if !group.Settings.RAGEnabled {
		writeError(w, http.StatusBadRequest, "RAG_DISABLED", "Document retrieval is not enabled for this group")
		return
	}
	if h.bot == nil {
		writeError(w, http.StatusServiceUnavailable, "BOT_UNAVAILABLE", "Assistant is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxRAGUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "A file is required")
		return
	}
	defer file.Close()

	result, err := h.bot.UploadContext(r.Context(), groupID.String(), header.Filename, file)
	if err != nil {
		log.Printf("ERROR rag upload: %v", err)
		writeError(w, http.StatusBadGateway, "BOT_ERROR", "Document upload failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeGroupError(w http.ResponseWriter, opName string, err error) {
	switch {
	case errors.Is(err, service.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Group not found")
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this group")
	default:
		log.Printf("ERROR %s: %v", opName, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}

func pathGroupID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid group ID")
		return uuid.Nil, false
	}
	return id, true
}
