package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"safescribe/notes-api/internal/model"
)

const uniqueViolation = "23505"

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// CreateUser relies on the unique index over lower(username) so concurrent
// registrations of the same name resolve to exactly one winner.
func (s *PGStore) CreateUser(ctx context.Context, user model.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, user.ID, user.Username, user.PasswordHash, string(user.Role), user.CreatedAt)
	return translate(err)
}

func (s *PGStore) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE lower(username) = lower($1)
	`, strings.TrimSpace(username))
	return scanUser(row)
}

func (s *PGStore) GetUserByID(ctx context.Context, userID string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, userID)
	return scanUser(row)
}

func (s *PGStore) CreateNote(ctx context.Context, note model.Note) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notes (id, title, content, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, note.ID, note.Title, note.Content, note.UserID, note.CreatedAt, note.UpdatedAt)
	return translate(err)
}

func (s *PGStore) GetNote(ctx context.Context, noteID string) (model.Note, error) {
	var note model.Note
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, content, user_id, created_at, updated_at
		FROM notes
		WHERE id = $1
	`, noteID)
	err := row.Scan(&note.ID, &note.Title, &note.Content, &note.UserID, &note.CreatedAt, &note.UpdatedAt)
	return note, translate(err)
}

func (s *PGStore) UpdateNote(ctx context.Context, note model.Note) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notes
		SET title = $1, content = $2, updated_at = $3
		WHERE id = $4
	`, note.Title, note.Content, note.UpdatedAt, note.ID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) DeleteNote(ctx context.Context, noteID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1`, noteID)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	var role string
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &role, &user.CreatedAt)
	if err != nil {
		return model.User{}, translate(err)
	}
	user.Role = model.Role(role)
	return user, nil
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}
