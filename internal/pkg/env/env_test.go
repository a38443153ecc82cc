package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvPrefersFileValues(t *testing.T) {
	t.Cleanup(Use(map[string]string{"HL_TEST_KEY": "from-file"}))
	t.Setenv("HL_TEST_KEY", "from-os")
	t.Setenv("HL_OS_ONLY", "os")

	assert.Equal(t, "from-file", GetEnv("HL_TEST_KEY", "def"))
	assert.Equal(t, "os", GetEnv("HL_OS_ONLY", "def"))
	assert.Equal(t, "def", GetEnv("HL_MISSING_KEY", "def"))
}

func TestGetEnvIntAndBool(t *testing.T) {
	t.Cleanup(Use(map[string]string{"N": "12", "BAD": "x", "B": "yes", "OFF": "off"}))

	assert.Equal(t, 12, GetEnvInt("N", 3))
	assert.Equal(t, 3, GetEnvInt("BAD", 3))
	assert.True(t, GetEnvBool("B", false))
	assert.False(t, GetEnvBool("OFF", true))
	assert.True(t, GetEnvBool("MISSING", true))
}

func TestPublicURL(t *testing.T) {
	t.Cleanup(Use(map[string]string{"PUBLIC_DOMAIN": "https://hangarlinks.example/"}))
	assert.Equal(t, "https://hangarlinks.example", PublicURL())

	Use(map[string]string{"APP_HOST": "0.0.0.0", "APP_PORT": "8080"})
	assert.Equal(t, "http://0.0.0.0:8080", PublicURL())
}

func TestSetupEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APP_ENV=dev\n"), 0o600))
	t.Chdir(dir)
	t.Cleanup(Use(nil))

	SetupEnvFile()
	assert.True(t, IsDev())
}
