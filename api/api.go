// Package api exposes a chat.Engine over HTTP. It is the single ingestion
// point of the process: every engine call, read or write, runs under one
// mutex, which gives the engine the serialized access it requires.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/GetStream/chat-state-engine/chat/validator"
	"github.com/GetStream/chat-state-engine/ws"
)

// An Engine holds the conversation state. *chat.Engine implements it.
type Engine interface {
	LocalUserID() string
	Location() *time.Location
	Conversations() []chat.Summary
	Conversation(id string) (chat.Summary, error)
	Filter(query string, category chat.Category) ([]chat.Summary, error)
	Timeline(conversationID string) ([]chat.DateGroup, error)
	Append(msg chat.Message) (chat.Message, error)
	MarkRead(conversationID string) error
	OnMessageReceived(msg chat.Message) (chat.Message, error)
	OnStatusUpdate(messageID string, status chat.Status) error
	AddReaction(messageID, reaction string) error
	OnTypingChanged(conversationID, userID string) error
	OnPresenceChanged(userID string, presence chat.Presence) error
}

// An Observer is told about every event the engine rejects.
type Observer interface {
	ObserveRejection(err error)
}

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	Engine Engine
	Val    *validator.Validator
	// Hub, when set, serves GET /ws.
	Hub *ws.Hub
	// Metrics, when set, counts rejected events.
	Metrics Observer
	// Now defaults to time.Now; it only affects day labels.
	Now func() time.Time

	mu   sync.Mutex
	once sync.Once
	mux  *http.ServeMux
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /conversations", a.listConversations)
	mux.HandleFunc("GET /conversations/{conversationID}", a.getConversation)
	mux.HandleFunc("GET /conversations/{conversationID}/timeline", a.getTimeline)
	mux.HandleFunc("POST /conversations/{conversationID}/messages", a.sendMessage)
	mux.HandleFunc("POST /conversations/{conversationID}/read", a.markRead)
	mux.HandleFunc("PUT /conversations/{conversationID}/typing", a.setTyping)
	mux.HandleFunc("POST /events/messages", a.receiveMessage)
	mux.HandleFunc("POST /messages/{messageID}/status", a.updateStatus)
	mux.HandleFunc("POST /messages/{messageID}/reactions", a.addReaction)
	mux.HandleFunc("PUT /users/{userID}/presence", a.setPresence)
	mux.HandleFunc("GET /ws", a.serveWS)

	if a.Val == nil {
		a.Val = validator.New()
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	a.mux = mux
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.Logger.Info("Request received", "method", r.Method, "path", r.URL.Path)
	a.mux.ServeHTTP(w, r)
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

// respondEngineError maps an engine error to an HTTP status. The engine's
// messages are safe to show to clients.
func (a *API) respondEngineError(w http.ResponseWriter, err error) {
	if a.Metrics != nil {
		a.Metrics.ObserveRejection(err)
	}

	var (
		verr *chat.ValidationError
		terr *chat.InvalidTransitionError
		nerr *chat.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		a.respondError(w, http.StatusBadRequest, err, err.Error())
	case errors.As(err, &terr):
		a.respondError(w, http.StatusConflict, err, err.Error())
	case errors.As(err, &nerr):
		a.respondError(w, http.StatusNotFound, err, err.Error())
	default:
		a.respondError(w, http.StatusInternalServerError, err, "Internal error")
	}
}

// decodeBody decodes and validates the request body into v. It writes the
// error response and returns false on failure.
func (a *API) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return false
	}
	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return false
	}
	return a.validateBody(w, v)
}

func (a *API) validateBody(w http.ResponseWriter, s any) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.FieldError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}

func (a *API) listConversations(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Conversations []chat.Summary `json:"conversations"`
	}

	category, err := chat.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.mu.Lock()
	list, err := a.Engine.Filter(r.URL.Query().Get("q"), category)
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusOK, response{Conversations: list})
}

func (a *API) getConversation(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	s, err := a.Engine.Conversation(r.PathValue("conversationID"))
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusOK, s)
}

func (a *API) getTimeline(w http.ResponseWriter, r *http.Request) {
	type response struct {
		ConversationID string      `json:"conversation_id"`
		Groups         []DateGroup `json:"groups"`
	}

	id := r.PathValue("conversationID")
	a.mu.Lock()
	groups, err := a.Engine.Timeline(id)
	loc := a.Engine.Location()
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusOK, response{
		ConversationID: id,
		Groups:         newDateGroups(groups, a.Now().In(loc)),
	})
}

func (a *API) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	a.mu.Lock()
	msg, err := a.Engine.Append(chat.Message{
		ConversationID: r.PathValue("conversationID"),
		SenderID:       a.Engine.LocalUserID(),
		Content:        body.Content,
		Kind:           chat.MessageKind(body.Kind),
		ReplyToID:      body.ReplyToID,
		FileURL:        body.FileURL,
	})
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusCreated, msg)
}

func (a *API) markRead(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	err := a.Engine.MarkRead(r.PathValue("conversationID"))
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusNoContent, nil)
}

func (a *API) setTyping(w http.ResponseWriter, r *http.Request) {
	var body typingRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	a.mu.Lock()
	err := a.Engine.OnTypingChanged(r.PathValue("conversationID"), body.UserID)
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusNoContent, nil)
}

func (a *API) receiveMessage(w http.ResponseWriter, r *http.Request) {
	var body receiveMessageRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	a.mu.Lock()
	msg, err := a.Engine.OnMessageReceived(chat.Message{
		ID:             body.ID,
		ConversationID: body.ConversationID,
		SenderID:       body.SenderID,
		Content:        body.Content,
		Kind:           chat.MessageKind(body.Kind),
		CreatedAt:      body.CreatedAt,
		ReplyToID:      body.ReplyToID,
		FileURL:        body.FileURL,
	})
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusCreated, msg)
}

func (a *API) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	a.mu.Lock()
	err := a.Engine.OnStatusUpdate(r.PathValue("messageID"), chat.Status(body.Status))
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusNoContent, nil)
}

func (a *API) addReaction(w http.ResponseWriter, r *http.Request) {
	var body reactionRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	a.mu.Lock()
	err := a.Engine.AddReaction(r.PathValue("messageID"), body.Reaction)
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusNoContent, nil)
}

func (a *API) setPresence(w http.ResponseWriter, r *http.Request) {
	var body presenceRequest
	if !a.decodeBody(w, r, &body) {
		return
	}

	a.mu.Lock()
	err := a.Engine.OnPresenceChanged(r.PathValue("userID"), chat.Presence(body.Presence))
	a.mu.Unlock()
	if err != nil {
		a.respondEngineError(w, err)
		return
	}

	a.respond(w, http.StatusNoContent, nil)
}

func (a *API) serveWS(w http.ResponseWriter, r *http.Request) {
	if a.Hub == nil {
		a.respondError(w, http.StatusNotFound, errors.New("websocket hub not configured"), "Not found")
		return
	}

	// The snapshot and the registration happen under the lock so no change
	// can fall between them.
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Hub.Serve(w, r, r.URL.Query().Get("conversation_id"), ws.Event{
		Type:          ws.EventConversationListChanged,
		Conversations: a.Engine.Conversations(),
	})
}
