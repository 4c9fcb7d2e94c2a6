package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/sbecker/confab/internal/config"
	"github.com/sbecker/confab/internal/database"
	"github.com/sbecker/confab/internal/messaging"
	"github.com/sbecker/confab/internal/server"
)

type ConfabApp struct {
	log            *log.Logger
	db             database.ConfabRepository
	messages       *messaging.Service
	cs             *server.ChatServer
	mux            *http.Server
	signingKey     []byte
	allowedOrigins []string
	uploadsDir     string
}

func NewConfabApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ConfabRepository, messages *messaging.Service, cfg *config.Config) *ConfabApp {
	s := &ConfabApp{
		log:            logger,
		db:             db,
		messages:       messages,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		uploadsDir:     cfg.UploadsDir,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/auth/users", s.authMiddleware(s.listUsers))
	mux.Handle("POST /api/messages", s.authMiddleware(s.createMessage))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getConversation))
	mux.Handle("POST /api/messages/audio", s.authMiddleware(s.addAudioMessage))
	mux.Handle("POST /api/messages/image", s.authMiddleware(s.addImageMessage))
	mux.Handle("GET /api/contacts", s.authMiddleware(s.getContacts))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir))))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *ConfabApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ConfabApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
