package repositories

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"roomlink/internal/core/domain"
	"roomlink/pkg/config"
	"roomlink/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_FileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Session.Backend = config.SessionBackendFile
	cfg.Session.FilePath = filepath.Join(t.TempDir(), "nested", "session.json")

	f, err := NewRepositoryFactory(cfg, logger.Nop())
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, config.SessionBackendFile, f.Backend())
	assert.Nil(t, f.RedisClient())
	assert.NoError(t, f.HealthCheck(ctx))

	storage := f.CreateSessionStorage()
	got, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := &domain.Session{Token: "tok", User: domain.User{ID: "7", DisplayName: "bob", Role: domain.RoleAdmin}}
	require.NoError(t, storage.Save(ctx, sess))

	info, err := os.Stat(cfg.Session.FilePath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err = f.CreateSessionStorage().Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.Token)
	assert.True(t, got.User.IsAdmin())

	require.NoError(t, storage.Clear(ctx))
	require.NoError(t, storage.Clear(ctx))
	got, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFactory_CorruptFileIsAnError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Session.FilePath = filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(cfg.Session.FilePath, []byte("{not json"), 0o600))

	f, err := NewRepositoryFactory(cfg, logger.Nop())
	require.NoError(t, err)

	_, err = f.CreateSessionStorage().Load(context.Background())
	assert.Error(t, err)
}

func TestFactory_Fallbacks(t *testing.T) {
	t.Run("file without path uses memory", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Session.FilePath = ""

		f, err := NewRepositoryFactory(cfg, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, config.SessionBackendMemory, f.Backend())
	})

	t.Run("unreachable redis uses file", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Session.Backend = config.SessionBackendRedis
		cfg.Session.FilePath = filepath.Join(t.TempDir(), "session.json")
		cfg.Redis.Address = "127.0.0.1:1"

		f, err := NewRepositoryFactory(cfg, logger.Nop())
		require.NoError(t, err)
		assert.Equal(t, config.SessionBackendFile, f.Backend())
		assert.Nil(t, f.RedisClient())
	})
}

func TestMemoryStorageCopiesSessions(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Session.Backend = config.SessionBackendMemory

	f, err := NewRepositoryFactory(cfg, logger.Nop())
	require.NoError(t, err)
	storage := f.CreateSessionStorage()

	sess := &domain.Session{Token: "a", User: domain.User{ID: "1"}}
	require.NoError(t, storage.Save(ctx, sess))
	sess.Token = "mutated"

	got, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Token)
}

func TestFactory_Redis(t *testing.T) {
	addr := os.Getenv("ROOMLINK_TEST_REDIS")
	if addr == "" {
		t.Skip("ROOMLINK_TEST_REDIS not set")
	}
	ctx := context.Background()
	cfg := config.DefaultConfig()
	cfg.Session.Backend = config.SessionBackendRedis
	cfg.Redis.Address = addr
	cfg.Redis.KeyPrefix = "roomlink-test"

	f, err := NewRepositoryFactory(cfg, logger.Nop())
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, config.SessionBackendRedis, f.Backend())
	require.NoError(t, f.HealthCheck(ctx))

	storage := f.CreateSessionStorage()
	require.NoError(t, storage.Save(ctx, &domain.Session{Token: "tok", User: domain.User{ID: "3", DisplayName: "cy"}}))

	got, err := storage.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.UserID("3"), got.User.ID)

	require.NoError(t, storage.Clear(ctx))
	got, err = storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}
