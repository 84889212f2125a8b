package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/dkralj/chatsync/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"nhooyr.io/websocket"
)

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
// ?guest=1 opens a read-only session with a countdown instead.
func ServeWS(hub *Hub, deps Deps, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		guest := r.URL.Query().Get("guest") == "1"

		var session *service.Session
		switch {
		case tokenStr != "":
			userID, err := validateToken(tokenStr, jwtSecret)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			session = resolveSession(r.Context(), deps, userID)

		case guest:
			session = service.NewGuestSessionIdentity()

		default:
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			log.Printf("ws: accept error: %v", err)
			return
		}

		client := NewClient(hub, conn, deps, session)

		if session.Guest {
			client.guest = service.NewGuestSession(func() {
				conn.Close(websocket.StatusNormalClosure, "guest session expired")
			})
		}

		hub.register <- client

		go client.WritePump()
		go client.SnapshotPump()
		if client.guest != nil {
			go client.GuestPump()
		}
		go client.ReadPump()
	}
}

// resolveSession builds the session identity from the user record. When the
// lookup fails the session keeps a bare ID and an unresolved gate, so sends
// are not blocked by a flaky profile read.
func resolveSession(ctx context.Context, deps Deps, userID uuid.UUID) *service.Session {
	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, err := deps.Users.GetByID(loadCtx, userID)
	if err != nil || user == nil {
		return &service.Session{
			UserID:      userID,
			DisplayName: "Unknown",
			Gate:        service.NewVisibilityGate(),
		}
	}
	session := service.NewSession(user)
	session.Gate.Resolve(user.Visible)
	return session
}

func validateToken(tokenStr, secret string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(sub)
}
