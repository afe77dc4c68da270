package apikey

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cozy-creator/medpredict/internal/config"
	"github.com/cozy-creator/medpredict/internal/db"
	"github.com/cozy-creator/medpredict/internal/db/migrations"
	"github.com/cozy-creator/medpredict/internal/db/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T) (func(args ...string) (string, error), repository.IAPIKeyRepository) {
	t.Helper()
	ctx := context.Background()

	driver, err := db.NewConnection(ctx, &config.DBConfig{
		Driver: config.DBDriverSQLite,
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })

	_, err = migrations.Migrate(ctx, driver.GetDB())
	require.NoError(t, err)

	repo := repository.NewAPIKeyRepository(driver.GetDB())
	open := func(context.Context) (repository.IAPIKeyRepository, func() error, error) {
		return repo, func() error { return nil }, nil
	}

	run := func(args ...string) (string, error) {
		cmd := NewCmd(open)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		err := cmd.ExecuteContext(ctx)
		return out.String(), err
	}

	return run, repo
}

func TestAPIKeyLifecycle(t *testing.T) {
	run, repo := newTestCmd(t)

	out, err := run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "No API keys found")

	out, err = run("new")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "API key created: "))
	key := strings.TrimSpace(strings.TrimPrefix(out, "API key created: "))
	require.NotEmpty(t, key)

	keys, err := repo.ListAPIKeys(context.Background())
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key[:4], keys[0].KeyMask[:4])
	assert.NotContains(t, keys[0].KeyMask, key[4:len(key)-4])

	out, err = run("list")
	require.NoError(t, err)
	assert.Contains(t, out, keys[0].KeyMask)
	assert.Contains(t, out, "Revoked: false")

	_, err = run("revoke", key)
	require.NoError(t, err)

	out, err = run("list")
	require.NoError(t, err)
	assert.Contains(t, out, "Revoked: true")
}

func TestRevokeUnknownKey(t *testing.T) {
	run, _ := newTestCmd(t)

	_, err := run("revoke", "not-a-key")
	assert.Error(t, err)
}

func TestRevokeRequiresKey(t *testing.T) {
	run, _ := newTestCmd(t)

	_, err := run("revoke")
	assert.Error(t, err)
}
