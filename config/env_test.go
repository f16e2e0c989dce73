package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	require.NoError(t, Load())
	t.Cleanup(func() {
		mu.Lock()
		values = defaultValues()
		mu.Unlock()
	})
}

func TestFilesAndEnvironmentPrecedence(t *testing.T) {
	reset(t)
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "app.json")
	envPath := filepath.Join(dir, ".env")

	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"currency":"eur","queue_workers":6,"square_environment":"production","admin_emails":"ignored@truck.test"}`), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte("ADMIN_EMAILS=Owner@Truck.test, chef@truck.test\nPAYMENT_TIMEOUT=5s\n"), 0o600))
	t.Setenv("QUEUE_WORKERS", "3")

	require.NoError(t, loadFromFiles(jsonPath, envPath))

	assert.Equal(t, "EUR", Currency())
	assert.Equal(t, "production", SquareEnvironment())
	assert.Equal(t, []string{"owner@truck.test", "chef@truck.test"}, AdminEmails())
	assert.Equal(t, 5*time.Second, PaymentTimeout())
	assert.Equal(t, 3, QueueWorkers())
}

func TestMissingFilesAreNotAnError(t *testing.T) {
	reset(t)
	dir := t.TempDir()
	assert.NoError(t, loadFromFiles(filepath.Join(dir, "app.json"), filepath.Join(dir, ".env")))
}

func TestMalformedJSONFails(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "app.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"currency":`), 0o600))
	assert.Error(t, loadFromFiles(path, filepath.Join(t.TempDir(), ".env")))
}

func TestValidateRequiresSecretInProduction(t *testing.T) {
	reset(t)
	Set("APP_ENV", "production")
	Set("JWT_SECRET", defaultJWTSecret)
	assert.ErrorIs(t, Validate(), ErrMissingSecret)

	Set("JWT_SECRET", "a-real-secret")
	assert.NoError(t, Validate())

	Set("APP_ENV", "local")
	Set("JWT_SECRET", "")
	assert.NoError(t, Validate())
}

func TestFallbacks(t *testing.T) {
	reset(t)
	Set("PAYMENT_TIMEOUT", "soon")
	Set("PAYMENT_STALE_AFTER", "-1m")
	Set("QUEUE_WORKERS", "many")
	Set("DB_DRIVER", "oracle")
	Set("SQUARE_ENVIRONMENT", "staging")
	Set("DATABASE_DSN", "")

	assert.Equal(t, 30*time.Second, PaymentTimeout())
	assert.Equal(t, 2*time.Minute, PaymentStaleAfter())
	assert.Equal(t, 2, QueueWorkers())
	assert.Equal(t, "sqlite", DatabaseDriver())
	assert.Equal(t, defaultSQLiteDSN, DatabaseDSN())
	assert.Equal(t, "sandbox", SquareEnvironment())

	Set("DB_DRIVER", "Postgres")
	assert.Equal(t, "postgres", DatabaseDriver())
	assert.Equal(t, defaultPostgresDSN, DatabaseDSN())
}
