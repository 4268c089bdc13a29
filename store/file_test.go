package store_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/store"
)

func testSession() *session.Session {
	return &session.Session{
		Email:             "john.doe@example.com",
		UserID:            "user-1",
		AccessToken:       "access-token-1",
		AccessTokenExpiry: time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
		RefreshToken:      "refresh-token-1",
	}
}

func TestFile(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips a session", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")
		fs := store.NewFile(path)

		require.NoError(t, fs.Save(ctx, testSession()))

		loaded, err := fs.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, testSession(), loaded)
	})

	t.Run("load without a record", func(t *testing.T) {
		fs := store.NewFile(filepath.Join(t.TempDir(), "session.json"))

		_, err := fs.Load(ctx)
		require.ErrorIs(t, err, session.NotFoundErr)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		fs := store.NewFile(path)

		require.NoError(t, fs.Save(ctx, testSession()))
		require.NoError(t, fs.Delete(ctx))

		_, err := fs.Load(ctx)
		require.ErrorIs(t, err, session.NotFoundErr)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		fs := store.NewFile(filepath.Join(t.TempDir(), "session.json"))
		require.NoError(t, fs.Delete(ctx))
	})

	t.Run("record is owner-only", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		fs := store.NewFile(path)
		require.NoError(t, fs.Save(ctx, testSession()))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})
}

func TestFile_Sealed(t *testing.T) {
	ctx := context.Background()
	key := [32]byte{1, 2, 3, 4}

	t.Run("round trips a sealed session", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		fs := store.NewFile(path, store.WithSecret(key))

		require.NoError(t, fs.Save(ctx, testSession()))

		loaded, err := fs.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, testSession(), loaded)
	})

	t.Run("tokens never sit on disk in the clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		fs := store.NewFile(path, store.WithSecret(key))
		require.NoError(t, fs.Save(ctx, testSession()))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NotContains(t, string(raw), "access-token-1")
		require.Error(t, json.Unmarshal(raw, &session.Session{}))
	})

	t.Run("wrong key fails to open", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, store.NewFile(path, store.WithSecret(key)).Save(ctx, testSession()))

		wrong := [32]byte{9, 9, 9}
		_, err := store.NewFile(path, store.WithSecret(wrong)).Load(ctx)
		require.Error(t, err)
		require.NotErrorIs(t, err, session.NotFoundErr)
	})

	t.Run("truncated payload fails to open", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))

		_, err := store.NewFile(path, store.WithSecret(key)).Load(ctx)
		require.Error(t, err)
	})
}
