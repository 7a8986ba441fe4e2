// Package file implements the flat-file store variant: the whole collection
// lives in one JSON document on disk, read and rewritten wholesale per
// mutation. Iteration order over the collection is not defined; callers must
// not assume insertion order (the document-store variant does not preserve
// it either).
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/muzukuru/jobcard-service/internal/models"
	"github.com/muzukuru/jobcard-service/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu         sync.Mutex
	path       string
	sessionTTL time.Duration
}

type fileState struct {
	JobCards map[string]store.Document `json:"jobCards"`
	Users    []fileUser                `json:"users"`
	Sessions map[string]models.Session `json:"sessions,omitempty"`
}

type fileUser struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

func NewStore(path string, sessionTTL time.Duration) *Store {
	return &Store{path: path, sessionTTL: sessionTTL}
}

func (s *Store) ListJobCards(ctx context.Context, filter store.Filter) ([]store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}

	var cards []store.Document
	for id, doc := range state.JobCards {
		if !store.Matches(doc, filter) {
			continue
		}
		cards = append(cards, store.WithID(doc, id))
	}
	return cards, nil
}

func (s *Store) GetJobCard(ctx context.Context, id string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	doc, ok := state.JobCards[id]
	if !ok {
		return nil, store.ErrJobCardNotFound
	}
	return store.WithID(doc, id), nil
}

func (s *Store) CreateJobCard(ctx context.Context, doc store.Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	stored := store.Clone(doc)
	delete(stored, "id")
	state.JobCards[id] = stored

	if err := s.save(state); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateJobCard(ctx context.Context, id string, patch store.Document) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return nil, err
	}
	existing, ok := state.JobCards[id]
	if !ok {
		return nil, store.ErrJobCardNotFound
	}

	merged := store.Merge(existing, store.Clone(patch))
	delete(merged, "id")
	state.JobCards[id] = merged

	if err := s.save(state); err != nil {
		return nil, err
	}
	return store.WithID(merged, id), nil
}

func (s *Store) Authenticate(ctx context.Context, input store.LoginInput) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return models.User{}, err
	}
	for _, user := range state.Users {
		if user.Username != input.Username || user.Role != input.Role {
			continue
		}
		if !store.PasswordMatches(user.Password, input.Password) {
			continue
		}
		return models.User{
			Username:   user.Username,
			Role:       user.Role,
			Department: user.Department,
		}, nil
	}
	return models.User{}, store.ErrInvalidCredentials
}

func (s *Store) CreateSession(ctx context.Context, user models.User) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return models.Session{}, err
	}

	session := models.Session{
		SessionID:  uuid.NewString(),
		Username:   user.Username,
		Role:       user.Role,
		Department: user.Department,
		ExpiresAt:  time.Now().UTC().Add(s.sessionTTL),
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]models.Session)
	}
	state.Sessions[session.SessionID] = session

	if err := s.save(state); err != nil {
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return models.Session{}, err
	}
	session, ok := state.Sessions[sessionID]
	if !ok || time.Now().UTC().After(session.ExpiresAt) {
		return models.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	delete(state.Sessions, sessionID)
	return s.save(state)
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.load()
	return err
}

func (s *Store) load() (*fileState, error) {
	state := &fileState{JobCards: make(map[string]store.Document)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if state.JobCards == nil {
		state.JobCards = make(map[string]store.Document)
	}
	return state, nil
}

func (s *Store) save(state *fileState) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename keeps the collection readable if the process dies
	// mid-save.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".jobcards-*")
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("%w: %v", store.ErrStoreUnavailable, err)
	}
	return nil
}
