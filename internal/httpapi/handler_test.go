package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
	"github.com/muzukuru/jobcard-service/internal/store"

	"github.com/rs/zerolog"
)

type fakeStore struct {
	listFn          func(ctx context.Context, filter store.Filter) ([]store.Document, error)
	getFn           func(ctx context.Context, id string) (store.Document, error)
	createFn        func(ctx context.Context, doc store.Document) (string, error)
	updateFn        func(ctx context.Context, id string, patch store.Document) (store.Document, error)
	authFn          func(ctx context.Context, input store.LoginInput) (models.User, error)
	createSessionFn func(ctx context.Context, user models.User) (models.Session, error)
	getSessionFn    func(ctx context.Context, sessionID string) (models.Session, error)
	deleteSessionFn func(ctx context.Context, sessionID string) error
	pingFn          func(ctx context.Context) error
}

func (f fakeStore) ListJobCards(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, filter)
}

func (f fakeStore) GetJobCard(ctx context.Context, id string) (store.Document, error) {
	if f.getFn == nil {
		return nil, store.ErrJobCardNotFound
	}
	return f.getFn(ctx, id)
}

func (f fakeStore) CreateJobCard(ctx context.Context, doc store.Document) (string, error) {
	if f.createFn == nil {
		return "", nil
	}
	return f.createFn(ctx, doc)
}

func (f fakeStore) UpdateJobCard(ctx context.Context, id string, patch store.Document) (store.Document, error) {
	if f.updateFn == nil {
		return nil, store.ErrJobCardNotFound
	}
	return f.updateFn(ctx, id, patch)
}

func (f fakeStore) Authenticate(ctx context.Context, input store.LoginInput) (models.User, error) {
	if f.authFn == nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return f.authFn(ctx, input)
}

func (f fakeStore) CreateSession(ctx context.Context, user models.User) (models.Session, error) {
	if f.createSessionFn == nil {
		return models.Session{SessionID: "session-1"}, nil
	}
	return f.createSessionFn(ctx, user)
}

func (f fakeStore) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	if f.getSessionFn == nil {
		return models.Session{}, store.ErrSessionNotFound
	}
	return f.getSessionFn(ctx, sessionID)
}

func (f fakeStore) DeleteSession(ctx context.Context, sessionID string) error {
	if f.deleteSessionFn == nil {
		return nil
	}
	return f.deleteSessionFn(ctx, sessionID)
}

func (f fakeStore) Ping(ctx context.Context) error {
	if f.pingFn == nil {
		return nil
	}
	return f.pingFn(ctx)
}

func newTestHandler(st store.Store, opts Options) http.Handler {
	return NewHandler(st, zerolog.Nop(), opts).Routes()
}

func testDoc(t *testing.T, raw string) store.Document {
	t.Helper()
	var d store.Document
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal document: %v", err)
	}
	return d
}

func TestHealthReportsStoreState(t *testing.T) {
	handler := newTestHandler(fakeStore{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "OK" || body["store"] != "connected" {
		t.Fatalf("unexpected body: %v", body)
	}

	broken := newTestHandler(fakeStore{pingFn: func(ctx context.Context) error { return store.ErrStoreUnavailable }}, Options{})
	rec = httptest.NewRecorder()
	broken.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded health status = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["store"] != "disconnected" {
		t.Fatalf("store = %q, want disconnected", body["store"])
	}
}

func TestCreateRequestReturnsAssignedID(t *testing.T) {
	var created store.Document
	handler := newTestHandler(fakeStore{
		createFn: func(ctx context.Context, doc store.Document) (string, error) {
			created = doc
			return "new-id", nil
		},
	}, Options{})

	payload := `{"title":"Laptop","department":"IT","requestedBy":"alice","status":"pending"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(payload)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["id"] != "new-id" {
		t.Fatalf("id = %q, want new-id", body["id"])
	}
	if store.StringField(created, "title") != "Laptop" {
		t.Fatalf("payload not passed verbatim: %v", created)
	}
}

func TestCreateRequestRejectsNonObjectBody(t *testing.T) {
	handler := newTestHandler(fakeStore{}, Options{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/requests", strings.NewReader(`"not an object"`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListRequestsParsesEqualityFilters(t *testing.T) {
	var gotFilter store.Filter
	handler := newTestHandler(fakeStore{
		listFn: func(ctx context.Context, filter store.Filter) ([]store.Document, error) {
			gotFilter = filter
			return []store.Document{testDoc(t, `{"id":"1"}`)}, nil
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests?requestedBy=alice&status=pending&disbursed=false", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotFilter.RequestedBy != "alice" || gotFilter.Status != "pending" {
		t.Fatalf("unexpected filter: %+v", gotFilter)
	}
	if gotFilter.Disbursed == nil || *gotFilter.Disbursed {
		t.Fatalf("disbursed filter not parsed: %+v", gotFilter.Disbursed)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests?disbursed=maybe", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid disbursed: status = %d, want 400", rec.Code)
	}
}

func TestListRequestsEmptyCollectionIsEmptyArray(t *testing.T) {
	handler := newTestHandler(fakeStore{}, Options{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("body = %q, want []", got)
	}
}

func TestUpdateUnknownIDReturns404(t *testing.T) {
	handler := newTestHandler(fakeStore{
		updateFn: func(ctx context.Context, id string, patch store.Document) (store.Document, error) {
			return nil, store.ErrJobCardNotFound
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/requests/nonexistent-id", strings.NewReader(`{"status":"approved"}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateMergesAndEchoesRecord(t *testing.T) {
	handler := newTestHandler(fakeStore{
		updateFn: func(ctx context.Context, id string, patch store.Document) (store.Document, error) {
			existing := testDoc(t, `{"id":"card-1","title":"Laptop","status":"pending"}`)
			return store.Merge(existing, patch), nil
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/requests/card-1", strings.NewReader(`{"status":"approved","approvedBy":"bob"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var merged store.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &merged); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if store.StringField(merged, "title") != "Laptop" || store.StringField(merged, "status") != "approved" {
		t.Fatalf("unexpected merged record: %v", merged)
	}
}

func TestAccountsQueueFilters(t *testing.T) {
	var filters []store.Filter
	handler := newTestHandler(fakeStore{
		listFn: func(ctx context.Context, filter store.Filter) ([]store.Document, error) {
			filters = append(filters, filter)
			return nil, nil
		},
	}, Options{})

	for _, path := range []string{"/api/accounts/pending", "/api/accounts/disbursed", "/api/accounts/rejected"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rec.Code)
		}
	}

	if len(filters) != 3 {
		t.Fatalf("expected 3 list calls, got %d", len(filters))
	}
	// accounts/pending means approved and not yet disbursed
	if filters[0].Status != models.StatusApproved || filters[0].Disbursed == nil || *filters[0].Disbursed {
		t.Fatalf("pending filter wrong: %+v", filters[0])
	}
	if filters[1].Disbursed == nil || !*filters[1].Disbursed {
		t.Fatalf("disbursed filter wrong: %+v", filters[1])
	}
	if filters[2].Status != models.StatusRejected {
		t.Fatalf("rejected filter wrong: %+v", filters[2])
	}
}

func TestProcessFundsAppliesDisbursementMerge(t *testing.T) {
	var gotPatch store.Document
	handler := newTestHandler(fakeStore{
		getFn: func(ctx context.Context, id string) (store.Document, error) {
			return testDoc(t, `{"id":"card-1","status":"approved","disbursed":false,"title":"Laptop"}`), nil
		},
		updateFn: func(ctx context.Context, id string, patch store.Document) (store.Document, error) {
			gotPatch = patch
			existing := testDoc(t, `{"id":"card-1","status":"approved","title":"Laptop"}`)
			return store.Merge(existing, patch), nil
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/accounts/process/card-1", strings.NewReader(`{"receiptSubmitted":true}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if store.StringField(gotPatch, "status") != models.StatusCompleted {
		t.Fatalf("patch status = %q, want completed", store.StringField(gotPatch, "status"))
	}
	if !store.BoolField(gotPatch, "disbursed") || !store.BoolField(gotPatch, "receiptSubmitted") {
		t.Fatalf("disbursement flags not set: %v", gotPatch)
	}
	if _, ok := gotPatch["dateDisbursed"]; !ok {
		t.Fatal("patch missing dateDisbursed")
	}
}

func TestProcessFundsGuardsStatus(t *testing.T) {
	handler := newTestHandler(fakeStore{
		getFn: func(ctx context.Context, id string) (store.Document, error) {
			return testDoc(t, `{"id":"card-1","status":"pending"}`), nil
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/accounts/process/card-1", strings.NewReader(`{"receiptSubmitted":false}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}

	already := newTestHandler(fakeStore{
		getFn: func(ctx context.Context, id string) (store.Document, error) {
			return testDoc(t, `{"id":"card-1","status":"approved","disbursed":true}`), nil
		},
	}, Options{})
	rec = httptest.NewRecorder()
	already.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/accounts/process/card-1", strings.NewReader(`{"receiptSubmitted":false}`)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("already disbursed: status = %d, want 409", rec.Code)
	}
}

func TestHistoryRequiresUsername(t *testing.T) {
	var gotFilter store.Filter
	handler := newTestHandler(fakeStore{
		listFn: func(ctx context.Context, filter store.Filter) ([]store.Document, error) {
			gotFilter = filter
			return nil, nil
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing username: status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?username=alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotFilter.RequestedBy != "alice" {
		t.Fatalf("filter = %+v, want requestedBy alice", gotFilter)
	}
}

func TestLoginSuccessOmitsPassword(t *testing.T) {
	handler := newTestHandler(fakeStore{
		authFn: func(ctx context.Context, input store.LoginInput) (models.User, error) {
			if input.Username != "alice" || input.Password != "secret" || input.Role != "user" {
				t.Errorf("unexpected login input: %+v", input)
			}
			return models.User{Username: "alice", Password: "secret", Role: "user", Department: "IT"}, nil
		},
		createSessionFn: func(ctx context.Context, user models.User) (models.Session, error) {
			return models.Session{SessionID: "session-7", Username: user.Username, Role: user.Role, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}, Options{})

	payload := `{"username":"alice","password":"secret","role":"user"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(payload)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "secret") {
		t.Fatal("stored password echoed in login response")
	}
	var body struct {
		User    models.User    `json:"user"`
		Session models.Session `json:"session"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.User.Username != "alice" || body.Session.SessionID != "session-7" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestLoginMismatchReturns401(t *testing.T) {
	handler := newTestHandler(fakeStore{
		authFn: func(ctx context.Context, input store.LoginInput) (models.User, error) {
			return models.User{}, store.ErrInvalidCredentials
		},
	}, Options{})

	payload := `{"username":"alice","password":"wrongpass","role":"user"}`
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(payload)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] == "" {
		t.Fatal("401 body missing message")
	}
}

func TestLoginRequiresAllFields(t *testing.T) {
	handler := newTestHandler(fakeStore{}, Options{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"alice"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStoreUnavailableSurfacesAs503(t *testing.T) {
	handler := newTestHandler(fakeStore{
		listFn: func(ctx context.Context, filter store.Filter) ([]store.Document, error) {
			return nil, store.ErrStoreUnavailable
		},
	}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/requests", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestEnforcedRolesOnStatusPatch(t *testing.T) {
	sessions := map[string]models.Session{
		"head-session":     {SessionID: "head-session", Username: "bob", Role: models.RoleDepartmentHead, Department: "IT", ExpiresAt: time.Now().Add(time.Hour)},
		"user-session":     {SessionID: "user-session", Username: "alice", Role: models.RoleUser, ExpiresAt: time.Now().Add(time.Hour)},
		"accounts-session": {SessionID: "accounts-session", Username: "carol", Role: models.RoleAccounts, ExpiresAt: time.Now().Add(time.Hour)},
	}
	st := fakeStore{
		getFn: func(ctx context.Context, id string) (store.Document, error) {
			return testDoc(t, `{"id":"card-1","status":"pending","department":"IT"}`), nil
		},
		updateFn: func(ctx context.Context, id string, patch store.Document) (store.Document, error) {
			existing := testDoc(t, `{"id":"card-1","status":"pending","department":"IT"}`)
			return store.Merge(existing, patch), nil
		},
		getSessionFn: func(ctx context.Context, sessionID string) (models.Session, error) {
			session, ok := sessions[sessionID]
			if !ok {
				return models.Session{}, store.ErrSessionNotFound
			}
			return session, nil
		},
	}
	handler := newTestHandler(st, Options{EnforceRoles: true})

	send := func(token, payload string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/requests/card-1", strings.NewReader(payload))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := send("", `{"status":"approved"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no session: status = %d, want 401", rec.Code)
	}
	if rec := send("user-session", `{"status":"approved"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("user approving: status = %d, want 403", rec.Code)
	}
	if rec := send("head-session", `{"status":"approved","approvedBy":"bob","dateApproved":"2026-08-26T10:00:00Z"}`); rec.Code != http.StatusOK {
		t.Fatalf("head approving: status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if rec := send("head-session", `{"status":"rejected","rejectedBy":"bob"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("reject without reason: status = %d, want 400", rec.Code)
	}
	if rec := send("head-session", `{"status":"completed"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("head disbursing: status = %d, want 403", rec.Code)
	}
	// Non-status patches stay open even under enforcement.
	if rec := send("", `{"notes":"updated"}`); rec.Code != http.StatusOK {
		t.Fatalf("plain edit: status = %d, want 200", rec.Code)
	}
}

func TestEnforcedRolesRejectInvalidTransition(t *testing.T) {
	st := fakeStore{
		getFn: func(ctx context.Context, id string) (store.Document, error) {
			return testDoc(t, `{"id":"card-1","status":"rejected"}`), nil
		},
		getSessionFn: func(ctx context.Context, sessionID string) (models.Session, error) {
			return models.Session{SessionID: sessionID, Username: "bob", Role: models.RoleDepartmentHead, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	handler := newTestHandler(st, Options{EnforceRoles: true})

	req := httptest.NewRequest(http.MethodPut, "/api/requests/card-1", bytes.NewReader([]byte(`{"status":"approved"}`)))
	req.Header.Set("Authorization", "Bearer head-session")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("approve on rejected card: status = %d, want 409", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	deleted := ""
	handler := newTestHandler(fakeStore{
		deleteSessionFn: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
	}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer session-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if deleted != "session-7" {
		t.Fatalf("deleted session = %q, want session-7", deleted)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", rec.Code)
	}
}
