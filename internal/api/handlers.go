package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dreamsync/dreamsync-backend/internal/auth"
	"github.com/dreamsync/dreamsync-backend/internal/core"
	"github.com/dreamsync/dreamsync-backend/internal/interpretation"
	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

type Entries interface {
	CreateEntry(ctx context.Context, userID string, in core.EntryInput) (*store.Entry, error)
	ListEntries(ctx context.Context, userID string) ([]store.Entry, error)
	GetEntry(ctx context.Context, userID, entryID string) (*store.Entry, error)
}

type Interpreter interface {
	GenerateInterpretation(ctx context.Context, userID, entryID string, forceRegenerate bool) (*interpretation.Payload, error)
	GetInterpretation(ctx context.Context, userID, entryID string) (*interpretation.Payload, error)
}

type APIHandler struct {
	entries     Entries
	interpreter Interpreter
	jwtSecret   string
	log         *logger.Logger
}

func NewAPIHandler(entries Entries, interpreter Interpreter, jwtSecret string, log *logger.Logger) *APIHandler {
	return &APIHandler{
		entries:     entries,
		interpreter: interpreter,
		jwtSecret:   jwtSecret,
		log:         log.With("component", "api"),
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		userID, err := auth.ValidateJWT(h.jwtSecret, tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFrom(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

func (h *APIHandler) CreateEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req core.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	entry, err := h.entries.CreateEntry(r.Context(), userID, req)
	if err != nil {
		h.writeError(w, err, "Failed to create entry", "user_id", userID)
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

func (h *APIHandler) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	entries, err := h.entries.ListEntries(r.Context(), userID)
	if err != nil {
		h.writeError(w, err, "Failed to list entries", "user_id", userID)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *APIHandler) GetEntryHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	entryID := chi.URLParam(r, "entryID")

	entry, err := h.entries.GetEntry(r.Context(), userID, entryID)
	if err != nil {
		h.writeError(w, err, "Failed to get entry", "user_id", userID, "entry_id", entryID)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type InterpretationResponse struct {
	EntryID        string          `json:"entryId"`
	Interpretation json.RawMessage `json:"interpretation"`
}

func (h *APIHandler) GenerateInterpretationHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	entryID := chi.URLParam(r, "entryID")

	regenerate := false
	if raw := r.URL.Query().Get("regenerate"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "regenerate must be a boolean", http.StatusBadRequest)
			return
		}
		regenerate = v
	}

	payload, err := h.interpreter.GenerateInterpretation(r.Context(), userID, entryID, regenerate)
	if err != nil {
		h.writeError(w, err, "Failed to generate interpretation", "user_id", userID, "entry_id", entryID)
		return
	}
	h.writeInterpretation(w, entryID, payload)
}

func (h *APIHandler) GetInterpretationHandler(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	entryID := chi.URLParam(r, "entryID")

	payload, err := h.interpreter.GetInterpretation(r.Context(), userID, entryID)
	if err != nil {
		h.writeError(w, err, "Failed to get interpretation", "user_id", userID, "entry_id", entryID)
		return
	}
	h.writeInterpretation(w, entryID, payload)
}

func (h *APIHandler) writeInterpretation(w http.ResponseWriter, entryID string, payload *interpretation.Payload) {
	body, err := payload.Marshal()
	if err != nil {
		h.log.Error("failed to encode interpretation", "entry_id", entryID, "error", err)
		http.Error(w, "Failed to encode interpretation", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, InterpretationResponse{EntryID: entryID, Interpretation: body})
}

// writeError maps service errors onto status codes; unexpected errors are logged.
func (h *APIHandler) writeError(w http.ResponseWriter, err error, msg string, kv ...interface{}) {
	switch {
	case errors.Is(err, core.ErrNoInterpretation):
		http.Error(w, "Interpretation not found", http.StatusNotFound)
	case errors.Is(err, core.ErrNotFound):
		http.Error(w, "Entry not found", http.StatusNotFound)
	case errors.Is(err, core.ErrInvalidEntry):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrConfiguration):
		h.log.Error(msg, append(kv, "error", err)...)
		http.Error(w, "Interpretation service is not configured", http.StatusServiceUnavailable)
	default:
		h.log.Error(msg, append(kv, "error", err)...)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
