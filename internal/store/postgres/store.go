// Package postgres implements the hosted document-collection variant of the
// job-card store: each card is a single JSONB document keyed by a
// store-assigned uuid, so the shallow-merge update maps directly onto the
// jsonb concatenation operator.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
	"github.com/muzukuru/jobcard-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool       *pgxpool.Pool
	sessionTTL time.Duration
}

func NewStore(pool *pgxpool.Pool, sessionTTL time.Duration) *Store {
	return &Store{pool: pool, sessionTTL: sessionTTL}
}

// Migrate creates the backing tables. Idempotent; run at startup.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS job_cards (
			card_id    UUID PRIMARY KEY,
			doc        JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS users (
			username   TEXT PRIMARY KEY,
			password   TEXT NOT NULL,
			role       TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS sessions (
			session_id UUID PRIMARY KEY,
			username   TEXT NOT NULL,
			role       TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			expires_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

func (s *Store) ListJobCards(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	query := `SELECT card_id, doc FROM job_cards`
	var clauses []string
	var args []interface{}

	addClause := func(clause string, value interface{}) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.RequestedBy != "" {
		addClause(`doc->>'requestedBy' = $%d`, filter.RequestedBy)
	}
	if filter.Department != "" {
		addClause(`doc->>'department' = $%d`, filter.Department)
	}
	if filter.Status != "" {
		addClause(`doc->>'status' = $%d`, filter.Status)
	}
	if filter.Disbursed != nil {
		addClause(`COALESCE((doc->>'disbursed')::boolean, FALSE) = $%d`, *filter.Disbursed)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []store.Document
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		cards = append(cards, store.WithID(doc, id))
	}
	return cards, rows.Err()
}

func (s *Store) GetJobCard(ctx context.Context, id string) (store.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrJobCardNotFound
	}

	var raw []byte
	row := s.pool.QueryRow(ctx, `SELECT doc FROM job_cards WHERE card_id = $1`, id)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrJobCardNotFound
		}
		return nil, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return nil, err
	}
	return store.WithID(doc, id), nil
}

func (s *Store) CreateJobCard(ctx context.Context, doc store.Document) (string, error) {
	stored := store.Clone(doc)
	delete(stored, "id")
	raw, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO job_cards (card_id, doc) VALUES ($1, $2)
	`, id, raw); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateJobCard(ctx context.Context, id string, patch store.Document) (store.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrJobCardNotFound
	}

	stripped := store.Clone(patch)
	delete(stripped, "id")
	raw, err := json.Marshal(stripped)
	if err != nil {
		return nil, err
	}

	// jsonb || is exactly the shallow merge contract: patch keys
	// overwrite, everything else is preserved.
	var merged []byte
	row := s.pool.QueryRow(ctx, `
		UPDATE job_cards SET doc = doc || $2 WHERE card_id = $1 RETURNING doc
	`, id, raw)
	if err := row.Scan(&merged); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrJobCardNotFound
		}
		return nil, err
	}
	doc, err := decodeDocument(merged)
	if err != nil {
		return nil, err
	}
	return store.WithID(doc, id), nil
}

func (s *Store) Authenticate(ctx context.Context, input store.LoginInput) (models.User, error) {
	var user models.User
	var password string
	row := s.pool.QueryRow(ctx, `
		SELECT username, password, role, department
		FROM users
		WHERE username = $1 AND role = $2
	`, input.Username, input.Role)
	if err := row.Scan(&user.Username, &password, &user.Role, &user.Department); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if !store.PasswordMatches(password, input.Password) {
		return models.User{}, store.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Store) CreateSession(ctx context.Context, user models.User) (models.Session, error) {
	session := models.Session{
		SessionID:  uuid.NewString(),
		Username:   user.Username,
		Role:       user.Role,
		Department: user.Department,
		ExpiresAt:  time.Now().UTC().Add(s.sessionTTL),
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (session_id, username, role, department, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`, session.SessionID, session.Username, session.Role, session.Department, session.ExpiresAt); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	if _, err := uuid.Parse(sessionID); err != nil {
		return models.Session{}, store.ErrSessionNotFound
	}

	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, username, role, department, expires_at
		FROM sessions
		WHERE session_id = $1 AND expires_at > NOW()
	`, sessionID)
	if err := row.Scan(&session.SessionID, &session.Username, &session.Role, &session.Department, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	return err
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}

func decodeDocument(raw []byte) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
