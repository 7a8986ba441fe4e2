package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
	"github.com/muzukuru/jobcard-service/internal/store"

	"github.com/rs/zerolog"
)

type Handler struct {
	store store.Store
	log   zerolog.Logger
	opts  Options
}

type Options struct {
	// EnforceRoles turns on server-side authorization for status
	// transitions. Off by default: the original system trusts the client
	// to gate actions by role, and that behavior is preserved unless
	// explicitly tightened.
	EnforceRoles bool
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginResponse struct {
	User    models.User    `json:"user"`
	Session models.Session `json:"session"`
}

type processRequest struct {
	ReceiptSubmitted bool `json:"receiptSubmitted"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewHandler(st store.Store, log zerolog.Logger, opts Options) *Handler {
	return &Handler{store: st, log: log, opts: opts}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", expvar.Handler())
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/requests", h.handleRequests)
	mux.HandleFunc("/api/requests/", h.handleRequestByID)
	mux.HandleFunc("/api/accounts/pending", h.handleAccountsPending)
	mux.HandleFunc("/api/accounts/disbursed", h.handleAccountsDisbursed)
	mux.HandleFunc("/api/accounts/rejected", h.handleAccountsRejected)
	mux.HandleFunc("/api/accounts/process/", h.handleProcessFunds)
	mux.HandleFunc("/api/history", h.handleHistory)
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	storeState := "connected"
	if err := h.store.Ping(r.Context()); err != nil {
		storeState = "disconnected"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server is running",
		"store":   storeState,
	})
}

func (h *Handler) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListRequests(w, r)
	case http.MethodPost:
		h.handleCreateRequest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	filter, ok := filterFromQuery(w, r)
	if !ok {
		return
	}
	h.listCards(w, r, filter)
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var doc store.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil || doc == nil {
		writeMessage(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	id, err := h.store.CreateJobCard(r.Context(), doc)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/requests/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		card, err := h.store.GetJobCard(r.Context(), id)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	case http.MethodPut:
		h.handleUpdateRequest(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleUpdateRequest(w http.ResponseWriter, r *http.Request, id string) {
	var patch store.Document
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch == nil {
		writeMessage(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}

	if h.opts.EnforceRoles {
		current, err := h.store.GetJobCard(r.Context(), id)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		if !h.authorizePatch(w, r, current, patch) {
			return
		}
	}

	merged, err := h.store.UpdateJobCard(r.Context(), id, patch)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

// Accounts views. "Pending" for the accounts role means approved and
// awaiting disbursement, not status=pending.
func (h *Handler) handleAccountsPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	notDisbursed := false
	h.listCards(w, r, store.Filter{Status: models.StatusApproved, Disbursed: &notDisbursed})
}

func (h *Handler) handleAccountsDisbursed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	disbursed := true
	h.listCards(w, r, store.Filter{Disbursed: &disbursed})
}

func (h *Handler) handleAccountsRejected(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.listCards(w, r, store.Filter{Status: models.StatusRejected})
}

func (h *Handler) handleProcessFunds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/accounts/process/"), "/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req processRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	if h.opts.EnforceRoles && !h.requireRole(w, r, models.RoleAccounts) {
		return
	}

	current, err := h.store.GetJobCard(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	status := store.StringField(current, "status")
	if !store.ValidTransition("disburse", status) || store.BoolField(current, "disbursed") {
		writeMessage(w, http.StatusConflict, "job card is not awaiting disbursement")
		return
	}

	patch := disbursementPatch(req.ReceiptSubmitted, time.Now().UTC())
	merged, err := h.store.UpdateJobCard(r.Context(), id, patch)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, merged)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeMessage(w, http.StatusBadRequest, "username is required")
		return
	}
	h.listCards(w, r, store.Filter{RequestedBy: username})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	req.Role = strings.TrimSpace(req.Role)
	if req.Username == "" || req.Password == "" || req.Role == "" {
		writeMessage(w, http.StatusBadRequest, "username, password, and role are required")
		return
	}

	user, err := h.store.Authenticate(r.Context(), store.LoginInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			writeMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.writeStoreError(w, r, err)
		return
	}

	session, err := h.store.CreateSession(r.Context(), user)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{User: user, Session: session})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := bearerToken(r.Header.Get("Authorization"))
	if sessionID == "" {
		writeMessage(w, http.StatusUnauthorized, "missing session token")
		return
	}
	if err := h.store.DeleteSession(r.Context(), sessionID); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCards(w http.ResponseWriter, r *http.Request, filter store.Filter) {
	cards, err := h.store.ListJobCards(r.Context(), filter)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if cards == nil {
		cards = []store.Document{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrJobCardNotFound):
		writeMessage(w, http.StatusNotFound, "job card not found")
	case errors.Is(err, store.ErrSessionNotFound):
		writeMessage(w, http.StatusUnauthorized, "invalid session")
	case errors.Is(err, store.ErrStoreUnavailable):
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		writeMessage(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("store error")
		writeMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func filterFromQuery(w http.ResponseWriter, r *http.Request) (store.Filter, bool) {
	filter := store.Filter{
		RequestedBy: strings.TrimSpace(r.URL.Query().Get("requestedBy")),
		Department:  strings.TrimSpace(r.URL.Query().Get("department")),
		Status:      strings.TrimSpace(r.URL.Query().Get("status")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("disbursed")); raw != "" {
		switch raw {
		case "true":
			value := true
			filter.Disbursed = &value
		case "false":
			value := false
			filter.Disbursed = &value
		default:
			writeMessage(w, http.StatusBadRequest, "disbursed must be true or false")
			return store.Filter{}, false
		}
	}
	return filter, true
}

func disbursementPatch(receiptSubmitted bool, now time.Time) store.Document {
	patch := store.Document{}
	patch["disbursed"], _ = json.Marshal(true)
	patch["status"], _ = json.Marshal(models.StatusCompleted)
	patch["dateDisbursed"], _ = json.Marshal(now.Format(time.RFC3339))
	patch["receiptSubmitted"], _ = json.Marshal(receiptSubmitted)
	return patch
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func sessionFromRequest(ctx context.Context, st store.Store, r *http.Request) (models.Session, error) {
	sessionID := bearerToken(r.Header.Get("Authorization"))
	if sessionID == "" {
		return models.Session{}, store.ErrSessionNotFound
	}
	return st.GetSession(ctx, sessionID)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}
