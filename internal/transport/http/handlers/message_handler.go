package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/dkralj/chatsync/internal/domain"
	"github.com/dkralj/chatsync/internal/service"
	"github.com/dkralj/chatsync/internal/transport/http/middleware"
	"github.com/dkralj/chatsync/pkg/validator"
)

const maxAttachmentSize = 25 << 20 // 25 MB

type MessageHandler struct {
	messageService *service.MessageService
	userService    *service.UserService
}

func NewMessageHandler(messageService *service.MessageService, userService *service.UserService) *MessageHandler {
	return &MessageHandler{messageService: messageService, userService: userService}
}

// SendPrivate sends a direct message to the peer in the path.
func (h *MessageHandler) SendPrivate(w http.ResponseWriter, r *http.Request) {
	peerID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	h.send(w, r, domain.Target{Kind: domain.TargetPrivate, PeerID: peerID})
}

// SendGroup sends a message into the group in the path.
func (h *MessageHandler) SendGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}
	h.send(w, r, domain.Target{Kind: domain.TargetGroup, GroupID: groupID})
}

// ListPrivate returns the live window of a direct conversation.
func (h *MessageHandler) ListPrivate(w http.ResponseWriter, r *http.Request) {
	peerID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	h.list(w, r, domain.Target{Kind: domain.TargetPrivate, PeerID: peerID})
}

// ListGroup returns the live window of a group conversation.
func (h *MessageHandler) ListGroup(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}
	h.list(w, r, domain.Target{Kind: domain.TargetGroup, GroupID: groupID})
}

// send accepts either a JSON body with text or a multipart body with text and
// a file. The attachment streams straight through to object storage.
func (h *MessageHandler) send(w http.ResponseWriter, r *http.Request, target domain.Target) {
	session, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	input := service.SendMessageInput{Target: target}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxAttachmentSize); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Invalid multipart body")
			return
		}
		input.Text = r.FormValue("text")

		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			input.Attachment = &service.AttachmentUpload{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Reader:      file,
			}
		}
	} else {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return
		}
		input.Text = body.Text
	}

	if errs := validator.ValidateMessage(input.Text, input.Attachment != nil); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	msg, err := h.messageService.Send(r.Context(), session, input)
	if err != nil {
		writeSendError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) list(w http.ResponseWriter, r *http.Request, target domain.Target) {
	session, ok := h.sessionFor(w, r)
	if !ok {
		return
	}

	messages, err := h.messageService.ListWindow(r.Context(), session, target)
	if err != nil {
		writeSendError(w, err)
		return
	}

	conversationID, _ := target.ConversationID(session.UserID)
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"messages":        messages,
	})
}

// sessionFor builds a per-request session with the gate resolved from the
// caller's current profile.
func (h *MessageHandler) sessionFor(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.userService.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Account no longer exists")
		} else {
			log.Printf("ERROR loading session user %s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
		}
		return nil, false
	}

	session := service.NewSession(user)
	session.Gate.Resolve(user.Visible)
	return session, true
}

func writeSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "EMPTY_MESSAGE", "Please enter a message")
	case errors.Is(err, service.ErrNotVisible):
		writeError(w, http.StatusForbidden, "NOT_VISIBLE", "Enable visibility to send messages")
	case errors.Is(err, service.ErrNotConnected):
		writeError(w, http.StatusForbidden, "NOT_CONNECTED", "You are not connected with this user")
	case errors.Is(err, service.ErrGuestReadOnly):
		writeError(w, http.StatusForbidden, "GUEST_READ_ONLY", "Guest sessions are read only")
	case errors.Is(err, service.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "FORBIDDEN", "You do not have access to this group")
	case errors.Is(err, service.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Group not found")
	case errors.Is(err, service.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, "UPLOAD_FAILED", "Attachment upload failed")
	case errors.Is(err, domain.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid conversation participant")
	default:
		log.Printf("ERROR send/list message: %v", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Something went wrong")
	}
}
