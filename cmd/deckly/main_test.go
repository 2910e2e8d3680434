package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deckly-app/deckly/internal/config"
	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupDB(t *testing.T) string {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "cli.db")
	t.Setenv(config.EnvDBConnection, dsn)
	return dsn
}

func TestLimitsCommands(t *testing.T) {
	dsn := setupDB(t)

	out, err := runCLI(t, "limits", "get")
	require.NoError(t, err)
	assert.Contains(t, out, "default: unlimited")

	out, err = runCLI(t, "limits", "set-default", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "default: 5")

	conn, err := db.Open(dsn)
	require.NoError(t, err)
	user := models.User{Email: "cli@example.com", Password: "x"}
	require.NoError(t, conn.Create(&user).Error)

	out, err = runCLI(t, "limits", "get", user.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "individual: unlimited")
	assert.Contains(t, out, "effective: 5")

	_, err = runCLI(t, "limits", "set", user.ID, "2")
	require.NoError(t, err)
	out, err = runCLI(t, "limits", "get", user.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "effective: 2")

	_, err = runCLI(t, "limits", "set", user.ID, "two")
	assert.Error(t, err)

	out, err = runCLI(t, "limits", "batch", "--mode", "null_only", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "total: 0")

	out, err = runCLI(t, "limits", "batch", "--mode", "list", "--accounts", user.ID, "null")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded: 1")
	out, err = runCLI(t, "limits", "get", user.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "individual: unlimited")
}

func TestAdminCreateCommand(t *testing.T) {
	setupDB(t)

	out, err := runCLI(t, "admin", "create", "--email", "Boss@Example.com", "--password", "password123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "created admin boss@example.com"), out)

	_, err = runCLI(t, "admin", "create", "--email", "boss@example.com", "--password", "password123")
	assert.Error(t, err)
}

func TestServeRejectsInvalidPort(t *testing.T) {
	_, err := runCLI(t, "serve", "--port", "70000")
	assert.ErrorContains(t, err, "invalid port")
}
