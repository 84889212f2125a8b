package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkralj/chatsync/internal/botapi"
	"github.com/dkralj/chatsync/internal/config"
	"github.com/dkralj/chatsync/internal/database"
	"github.com/dkralj/chatsync/internal/notify"
	postgresrepo "github.com/dkralj/chatsync/internal/repository/postgres"
	"github.com/dkralj/chatsync/internal/service"
	"github.com/dkralj/chatsync/internal/storage"
	"github.com/dkralj/chatsync/internal/transport/http/handlers"
	"github.com/dkralj/chatsync/internal/transport/http/middleware"
	"github.com/dkralj/chatsync/internal/transport/ws"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	groupRepo := postgresrepo.NewGroupRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Attachment storage
	store, err := storage.New(storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Bucket:    cfg.MinioBucket,
	})
	if err != nil {
		log.Fatalf("object storage: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("object storage bucket: %v", err)
	}

	// Push fan-out
	publisher := notify.NewPublisher(cfg.RedisURL)
	defer publisher.Close()

	// Assistant API
	bot := botapi.NewClient(cfg.BotAPIURL)

	// Services
	authService := service.NewAuthService(userRepo, cfg.JWTSecret)
	userService := service.NewUserService(userRepo)
	socialService := service.NewSocialService(userRepo)
	groupService := service.NewGroupService(groupRepo, userRepo)
	messageService := service.NewMessageService(messageRepo, userRepo, groupRepo)
	messageService.SetAttachmentStore(store)
	messageService.SetAssistant(bot)
	messageService.SetPushPublisher(publisher)

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	wsDeps := ws.Deps{
		Users:    userRepo,
		Groups:   groupService,
		Messages: messageService,
		Loader:   messageRepo,
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	socialHandler := handlers.NewSocialHandler(socialService)
	groupHandler := handlers.NewGroupHandler(groupService, bot)
	messageHandler := handlers.NewMessageHandler(messageService, userService)

	// Auth middleware
	auth := middleware.Auth(cfg.JWTSecret)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, wsDeps, cfg.JWTSecret))

	// Protected - Account
	mux.Handle("DELETE /api/v1/auth/account", auth(http.HandlerFunc(authHandler.DeleteAccount)))
	mux.Handle("GET /api/v1/users/me", auth(http.HandlerFunc(userHandler.Me)))
	mux.Handle("PUT /api/v1/users/me/visibility", auth(http.HandlerFunc(userHandler.SetVisibility)))
	mux.Handle("GET /api/v1/users", auth(http.HandlerFunc(userHandler.ListPeople)))
	mux.Handle("GET /api/v1/users/{id}/email", auth(http.HandlerFunc(userHandler.LookupEmail)))

	// Protected - Connections
	mux.Handle("POST /api/v1/connections/requests/{id}", auth(http.HandlerFunc(socialHandler.SendRequest)))
	mux.Handle("POST /api/v1/connections/requests/{id}/accept", auth(http.HandlerFunc(socialHandler.AcceptRequest)))
	mux.Handle("POST /api/v1/connections/requests/{id}/reject", auth(http.HandlerFunc(socialHandler.RejectRequest)))
	mux.Handle("DELETE /api/v1/connections/requests/{id}", auth(http.HandlerFunc(socialHandler.CancelRequest)))
	mux.Handle("DELETE /api/v1/connections/{id}", auth(http.HandlerFunc(socialHandler.RemoveConnection)))

	// Protected - Groups
	mux.Handle("POST /api/v1/groups", auth(http.HandlerFunc(groupHandler.Create)))
	mux.Handle("GET /api/v1/groups", auth(http.HandlerFunc(groupHandler.ListPublic)))
	mux.Handle("GET /api/v1/groups/{id}", auth(http.HandlerFunc(groupHandler.Get)))
	mux.Handle("POST /api/v1/groups/{id}/join", auth(http.HandlerFunc(groupHandler.Join)))
	mux.Handle("POST /api/v1/groups/{id}/leave", auth(http.HandlerFunc(groupHandler.Leave)))
	mux.Handle("POST /api/v1/groups/{id}/rag/upload", auth(http.HandlerFunc(groupHandler.UploadRAGDocument)))

	// Protected - Messages
	mux.Handle("POST /api/v1/chats/{id}/messages", auth(http.HandlerFunc(messageHandler.SendPrivate)))
	mux.Handle("GET /api/v1/chats/{id}/messages", auth(http.HandlerFunc(messageHandler.ListPrivate)))
	mux.Handle("POST /api/v1/groups/{id}/messages", auth(http.HandlerFunc(messageHandler.SendGroup)))
	mux.Handle("GET /api/v1/groups/{id}/messages", auth(http.HandlerFunc(messageHandler.ListGroup)))

	// Start server with CORS and graceful shutdown
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{Addr: addr, Handler: middleware.CORS(mux)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
