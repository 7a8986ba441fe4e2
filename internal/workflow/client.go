// Package workflow is the role-aware client side of the job-card system:
// it talks to the Request Store API over HTTP, enforces the transition
// contracts before any call leaves the process, and derives every dashboard
// figure by filtering the fetched collection in memory.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginResult struct {
	User    models.User    `json:"user"`
	Session models.Session `json:"session"`
}

// Login authenticates against the store and returns a fresh session. The
// returned Session is the only place actor identity lives.
func (c *Client) Login(ctx context.Context, username, password, role string) (Session, error) {
	var result loginResult
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", loginPayload{
		Username: username,
		Password: password,
		Role:     role,
	}, &result)
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:      result.User,
		SessionID: result.Session.SessionID,
		ExpiresAt: result.Session.ExpiresAt,
	}, nil
}

// Logout invalidates the session server-side. The caller drops the Session
// value regardless of the outcome.
func (c *Client) Logout(ctx context.Context, session Session) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", session.SessionID, nil, nil)
}

// Submit creates a new job card. Only the user role submits; the client
// stamps status, submission time and the acting user before anything is
// sent. Title and department are the fields the form marks required.
func (c *Client) Submit(ctx context.Context, session Session, card models.JobCard) (string, error) {
	if session.Role() != models.RoleUser {
		return "", ErrRoleNotAllowed
	}
	if strings.TrimSpace(card.Title) == "" || strings.TrimSpace(card.Department) == "" {
		return "", fmt.Errorf("title and department are required")
	}

	card.ID = ""
	card.Status = models.StatusPending
	card.DateSubmitted = time.Now().UTC().Format(time.RFC3339)
	card.RequestedBy = session.Username()

	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/requests", session.SessionID, card, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// Approve moves a pending card to approved. Department heads act only on
// their own department's cards.
func (c *Client) Approve(ctx context.Context, session Session, card models.JobCard) (models.JobCard, error) {
	if err := guardHeadAction(session, card); err != nil {
		return models.JobCard{}, err
	}

	patch := map[string]interface{}{
		"status":       models.StatusApproved,
		"approvedBy":   session.Username(),
		"dateApproved": time.Now().UTC().Format(time.RFC3339),
	}
	return c.updateCard(ctx, session, card.ID, patch)
}

// Reject moves a pending card to rejected. The reason is mandatory and is
// checked before any request is issued; rejections are always persisted,
// never just dropped from a local list.
func (c *Client) Reject(ctx context.Context, session Session, card models.JobCard, reason string) (models.JobCard, error) {
	if strings.TrimSpace(reason) == "" {
		return models.JobCard{}, ErrReasonRequired
	}
	if err := guardHeadAction(session, card); err != nil {
		return models.JobCard{}, err
	}

	patch := map[string]interface{}{
		"status":          models.StatusRejected,
		"rejectedBy":      session.Username(),
		"dateRejected":    time.Now().UTC().Format(time.RFC3339),
		"rejectionReason": reason,
	}
	return c.updateCard(ctx, session, card.ID, patch)
}

// ProcessFunds marks an approved card as disbursed via the dedicated
// accounts endpoint.
func (c *Client) ProcessFunds(ctx context.Context, session Session, card models.JobCard, receiptSubmitted bool) (models.JobCard, error) {
	if session.Role() != models.RoleAccounts {
		return models.JobCard{}, ErrRoleNotAllowed
	}
	if card.Status != models.StatusApproved || card.Disbursed {
		return models.JobCard{}, ErrInvalidTransition
	}

	var updated models.JobCard
	payload := map[string]bool{"receiptSubmitted": receiptSubmitted}
	if err := c.do(ctx, http.MethodPost, "/api/accounts/process/"+url.PathEscape(card.ID), session.SessionID, payload, &updated); err != nil {
		return models.JobCard{}, err
	}
	return updated, nil
}

func guardHeadAction(session Session, card models.JobCard) error {
	if session.Role() != models.RoleDepartmentHead {
		return ErrRoleNotAllowed
	}
	if card.Status != models.StatusPending {
		return ErrInvalidTransition
	}
	if card.Department != session.Department() {
		return ErrDepartmentMismatch
	}
	return nil
}

// FetchAll retrieves the entire collection. Every derived view recomputes
// from a full fetch; there is no pagination or incremental sync.
func (c *Client) FetchAll(ctx context.Context, session Session) ([]models.JobCard, error) {
	return c.fetchList(ctx, session, "/api/requests")
}

// FetchHistory returns the acting user's own submissions.
func (c *Client) FetchHistory(ctx context.Context, session Session) ([]models.JobCard, error) {
	return c.fetchList(ctx, session, "/api/history?username="+url.QueryEscape(session.Username()))
}

// FetchDepartment returns the cards of the actor's department.
func (c *Client) FetchDepartment(ctx context.Context, session Session) ([]models.JobCard, error) {
	return c.fetchList(ctx, session, "/api/requests?department="+url.QueryEscape(session.Department()))
}

// AccountsQueues holds the three slices the accounts panel renders.
type AccountsQueues struct {
	Pending   []models.JobCard
	Disbursed []models.JobCard
	Rejected  []models.JobCard
}

// FetchAccountsQueues issues the panel's three reads concurrently, the same
// fixed fan-out the original UI performs, and fails if any leg fails.
func (c *Client) FetchAccountsQueues(ctx context.Context, session Session) (AccountsQueues, error) {
	var queues AccountsQueues
	var wg sync.WaitGroup
	errs := make([]error, 3)

	fetch := func(path string, target *[]models.JobCard, slot int) {
		defer wg.Done()
		cards, err := c.fetchList(ctx, session, path)
		if err != nil {
			errs[slot] = err
			return
		}
		*target = cards
	}

	wg.Add(3)
	go fetch("/api/accounts/pending", &queues.Pending, 0)
	go fetch("/api/accounts/disbursed", &queues.Disbursed, 1)
	go fetch("/api/accounts/rejected", &queues.Rejected, 2)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return AccountsQueues{}, err
		}
	}
	return queues, nil
}

// Snapshot is a fetched card set plus an explicit degraded marker. When the
// store is unreachable and the caller supplied fallback data, the snapshot
// carries the fallback with Degraded set — the substitution is always
// visible, never silent.
type Snapshot struct {
	Cards    []models.JobCard
	Degraded bool
}

func (c *Client) DashboardSnapshot(ctx context.Context, session Session, fallback []models.JobCard) (Snapshot, error) {
	cards, err := c.FetchAll(ctx, session)
	if err != nil {
		if fallback != nil {
			return Snapshot{Cards: fallback, Degraded: true}, nil
		}
		return Snapshot{}, err
	}
	return Snapshot{Cards: cards}, nil
}

func (c *Client) updateCard(ctx context.Context, session Session, id string, patch map[string]interface{}) (models.JobCard, error) {
	if id == "" {
		return models.JobCard{}, &APIError{StatusCode: http.StatusNotFound, Message: "job card not found"}
	}
	var updated models.JobCard
	if err := c.do(ctx, http.MethodPut, "/api/requests/"+url.PathEscape(id), session.SessionID, patch, &updated); err != nil {
		return models.JobCard{}, err
	}
	return updated, nil
}

func (c *Client) fetchList(ctx context.Context, session Session, path string) ([]models.JobCard, error) {
	var cards []models.JobCard
	if err := c.do(ctx, http.MethodGet, path, session.SessionID, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

func (c *Client) do(ctx context.Context, method, path, sessionID string, payload, target interface{}) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("Authorization", "Bearer "+sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}
