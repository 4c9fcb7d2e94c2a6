package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/sbecker/confab/internal/messaging"
	"github.com/sbecker/confab/internal/server"
	"github.com/sbecker/confab/internal/types"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type CreateMessageRequest struct {
	To      int    `json:"to"`
	Message string `json:"message"`
}

type ContactsResponse struct {
	Contacts    []types.Contact `json:"contacts"`
	OnlineUsers []int           `json:"online_users"`
}

func (s *ConfabApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *ConfabApp) healthCheck(w http.ResponseWriter, _ *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

/// writeMessagingError maps engine errors onto the API error taxonomy:
// validation failures reject the request, unknown users are not found,
// anything else is a storage failure passed through as a server error.
func (s *ConfabApp) writeMessagingError(w http.ResponseWriter, err error) {
	var (
		verr  *messaging.ValidationError
		nferr *messaging.NotFoundError
	)

	var errResp *ApiError
	switch {
	case errors.As(err, &verr):
		errResp = NewBadRequestError()
	case errors.As(err, &nferr):
		errResp = NewNotFoundError()
	default:
		s.log.Println("messaging:", err)
		errResp = NewInternalServerError(err)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *ConfabApp) createMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.messages.CreateMessage(userId, req.To, req.Message, types.TypeText)
	if err != nil {
		s.writeMessagingError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *ConfabApp) getConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	withStr := r.URL.Query().Get("with")
	if withStr == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	with, err := strconv.Atoi(withStr)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.messages.Conversation(userId, with)
	if err != nil {
		s.writeMessagingError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ConfabApp) getContacts(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	contacts, online, err := s.messages.Contacts(userId)
	if err != nil {
		s.writeMessagingError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, ContactsResponse{
		Contacts:    contacts,
		OnlineUsers: online,
	})
}

func (s *ConfabApp) serveWs(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
