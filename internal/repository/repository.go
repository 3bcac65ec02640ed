package repository

import (
	"context"
	"errors"
	"strings"

	"safescribe/notes-api/internal/model"
)

var (
	ErrNotFound  = errors.New("not_found")
	ErrDuplicate = errors.New("duplicate")
)

// UserStore persists identities. Usernames are unique case-insensitively and
// CreateUser must reject a duplicate atomically with respect to other writers.
type UserStore interface {
	CreateUser(ctx context.Context, user model.User) error
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	GetUserByID(ctx context.Context, userID string) (model.User, error)
}

type NoteStore interface {
	CreateNote(ctx context.Context, note model.Note) error
	GetNote(ctx context.Context, noteID string) (model.Note, error)
	UpdateNote(ctx context.Context, note model.Note) error
	DeleteNote(ctx context.Context, noteID string) error
}

type Store interface {
	UserStore
	NoteStore
}

// NormalizeUsername is the in-memory collation key for username uniqueness and
// lookup. Postgres applies lower() on both sides instead.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
