package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, NumberingOnSubmit, cfg.Workflow.NumberingStage)
	assert.True(t, cfg.Workflow.RequireReview)
	assert.True(t, cfg.Workflow.RevertOnFailure)
	assert.Equal(t, 3, cfg.Workflow.EscalationThreshold)
	assert.Equal(t, "XXX/YYYY", cfg.Workflow.DefaultFormat)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"server":{"port":9090},"database":{"driver":"memory"},"workflow":{"numbering_stage":"sign","require_review":false}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("S3_PRESIGN_TTL", "2m")
	t.Setenv("WORKFLOW_REVERT_ON_FAILURE", "false")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, NumberingOnSign, cfg.Workflow.NumberingStage)
	assert.False(t, cfg.Workflow.RequireReview)
	assert.False(t, cfg.Workflow.RevertOnFailure)
	assert.Equal(t, 2*time.Minute, cfg.Storage.PresignTTL)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("NUMBERING_STAGE", "publish")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestProductionRequiresJWTSecret(t *testing.T) {
	cfg := Default()
	cfg.Environment = "production"
	assert.Error(t, cfg.Validate())

	cfg.Security.JWTSecret = "s3cr3t"
	assert.NoError(t, cfg.Validate())
}

func TestGetDatabaseURL(t *testing.T) {
	db := DatabaseConfig{User: "u", Password: "p", Host: "db", Port: 5432, DBName: "docs", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/docs?sslmode=disable", db.GetDatabaseURL())
}
