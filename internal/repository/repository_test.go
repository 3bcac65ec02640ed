package repository

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"safescribe/notes-api/internal/db"
	"safescribe/notes-api/internal/model"
)

func newPGStore(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	if _, err := db.Migrate(dsn); err != nil {
		t.Fatalf("migrate error: %v", err)
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewPGStore(pool)
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("postgres", func(t *testing.T) {
		fn(t, newPGStore(t))
	})
}

func newUser(username string, role model.Role) model.User {
	return model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func TestUserLookupIsCaseInsensitive(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		name := uniqueName("Joao")
		user := newUser(name, model.RoleEditor)
		require.NoError(t, store.CreateUser(ctx, user))

		found, err := store.GetUserByUsername(ctx, NormalizeUsername(name))
		require.NoError(t, err)
		require.Equal(t, user.ID, found.ID)
		require.Equal(t, name, found.Username)
		require.Equal(t, model.RoleEditor, found.Role)

		byID, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		require.Equal(t, name, byID.Username)

		_, err = store.GetUserByUsername(ctx, uniqueName("missing"))
		require.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetUserByID(ctx, uuid.NewString())
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserLookupMatchesNonASCIIName(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		name := uniqueName("Élodie")
		user := newUser(name, model.RoleReader)
		require.NoError(t, store.CreateUser(ctx, user))

		found, err := store.GetUserByUsername(ctx, name)
		require.NoError(t, err)
		require.Equal(t, user.ID, found.ID)

		found, err = store.GetUserByUsername(ctx, "  "+name+" ")
		require.NoError(t, err)
		require.Equal(t, user.ID, found.ID)
	})
}

func TestCreateUserRejectsDuplicateInAnyCase(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		name := uniqueName("maria")
		require.NoError(t, store.CreateUser(ctx, newUser(name, model.RoleReader)))

		err := store.CreateUser(ctx, newUser(strings.ToUpper(name), model.RoleReader))
		require.ErrorIs(t, err, ErrDuplicate)
	})
}

func TestConcurrentCreateUserHasOneWinner(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		name := uniqueName("race")

		var wins, dups int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.CreateUser(ctx, newUser(name, model.RoleReader))
				switch {
				case err == nil:
					atomic.AddInt32(&wins, 1)
				case errors.Is(err, ErrDuplicate):
					atomic.AddInt32(&dups, 1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins)
		require.Equal(t, int32(15), dups)
	})
}

func TestNoteLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		owner := newUser(uniqueName("owner"), model.RoleEditor)
		require.NoError(t, store.CreateUser(ctx, owner))

		now := time.Now().UTC().Truncate(time.Microsecond)
		note := model.Note{
			ID:        uuid.NewString(),
			Title:     "Minha nota",
			Content:   "conteudo",
			UserID:    owner.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.CreateNote(ctx, note))

		got, err := store.GetNote(ctx, note.ID)
		require.NoError(t, err)
		require.Equal(t, note.Title, got.Title)
		require.Equal(t, owner.ID, got.UserID)

		note.Title = "Atualizada"
		note.Content = "novo"
		note.UpdatedAt = now.Add(time.Minute)
		require.NoError(t, store.UpdateNote(ctx, note))

		got, err = store.GetNote(ctx, note.ID)
		require.NoError(t, err)
		require.Equal(t, "Atualizada", got.Title)
		require.Equal(t, "novo", got.Content)
		require.True(t, got.UpdatedAt.Equal(note.UpdatedAt))
		require.True(t, got.CreatedAt.Equal(now))

		require.NoError(t, store.DeleteNote(ctx, note.ID))
		_, err = store.GetNote(ctx, note.ID)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, store.DeleteNote(ctx, note.ID), ErrNotFound)
		require.ErrorIs(t, store.UpdateNote(ctx, note), ErrNotFound)
	})
}

func TestNormalizeUsername(t *testing.T) {
	require.Equal(t, "joao", NormalizeUsername("  JoAo "))
	require.Equal(t, "", NormalizeUsername("   "))
}
