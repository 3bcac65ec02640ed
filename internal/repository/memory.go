package repository

import (
	"context"
	"sync"

	"safescribe/notes-api/internal/model"
)

// MemoryStore keeps users and notes in process memory. It is used when no
// database is configured and in tests.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]model.User
	byUsername map[string]string
	notes      map[string]model.Note
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]model.User),
		byUsername: make(map[string]string),
		notes:      make(map[string]model.Note),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, user model.User) error {
	key := NormalizeUsername(user.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUsername[key]; ok {
		return ErrDuplicate
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrDuplicate
	}
	s.users[user.ID] = user
	s.byUsername[key] = user.ID
	return nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return s.users[id], nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, userID string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *MemoryStore) CreateNote(_ context.Context, note model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[note.ID]; ok {
		return ErrDuplicate
	}
	s.notes[note.ID] = note
	return nil
}

func (s *MemoryStore) GetNote(_ context.Context, noteID string) (model.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	note, ok := s.notes[noteID]
	if !ok {
		return model.Note{}, ErrNotFound
	}
	return note, nil
}

func (s *MemoryStore) UpdateNote(_ context.Context, note model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.notes[note.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Title = note.Title
	existing.Content = note.Content
	existing.UpdatedAt = note.UpdatedAt
	s.notes[note.ID] = existing
	return nil
}

func (s *MemoryStore) DeleteNote(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[noteID]; !ok {
		return ErrNotFound
	}
	delete(s.notes, noteID)
	return nil
}
