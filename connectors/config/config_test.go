package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setFullEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TENANT_ID", "tenant")
	t.Setenv("CLIENT_ID", "client")
	t.Setenv("CLIENT_SECRET", "secret")
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=a2V5;EndpointSuffix=core.windows.net")
	t.Setenv("ACS_CONNECTION_STRING", "endpoint=https://acs.example.com/;accesskey=a2V5")
	t.Setenv("ACS_SENDER_EMAIL", "DoNotReply@example.com")
	t.Setenv("RECIPIENT_EMAIL", "billing@example.com")
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yml"))
}

func TestLoadDefaults(t *testing.T) {
	setFullEnv(t)

	s, err := Load("")
	require.NoError(t, err)
	assert.True(t, s.Delivery.Storage)
	assert.True(t, s.Delivery.Email)
	assert.Equal(t, DefaultContainer, s.ContainerName)
	assert.Equal(t, []string{"billing@example.com"}, s.Recipients)
}

func TestLoadMissingRequired(t *testing.T) {
	setFullEnv(t)
	t.Setenv("TENANT_ID", "")
	t.Setenv("ACS_CONNECTION_STRING", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_ID")
	assert.Contains(t, err.Error(), "ACS_CONNECTION_STRING")
	assert.NotContains(t, err.Error(), "CLIENT_ID")
}

func TestLoadCapabilityFile(t *testing.T) {
	setFullEnv(t)
	t.Setenv("AZURE_STORAGE_CONNECTION_STRING", "")
	t.Setenv("BLOB_CONTAINER_NAME", "")

	path := filepath.Join(t.TempDir(), "config.yml")
	content := "delivery:\n" +
		"  storage:\n" +
		"    enabled: false\n" +
		"  email:\n" +
		"    recipients:\n" +
		"      - finance@example.com\n" +
		"      - cto@example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	// Storage is off, so its connection string is no longer required.
	assert.False(t, s.Delivery.Storage)
	assert.True(t, s.Delivery.Email)
	assert.Equal(t, []string{"finance@example.com", "cto@example.com"}, s.Recipients)
}

func TestLoadContainerOverride(t *testing.T) {
	setFullEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	content := "delivery:\n" +
		"  storage:\n" +
		"    container: monthly-reports\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("BLOB_CONTAINER_NAME", "")
	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "monthly-reports", s.ContainerName)

	// Environment wins over the file.
	t.Setenv("BLOB_CONTAINER_NAME", "env-reports")
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-reports", s.ContainerName)
}

func TestLoadNoSinksEnabled(t *testing.T) {
	setFullEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	content := "delivery:\n" +
		"  storage:\n" +
		"    enabled: false\n" +
		"  email:\n" +
		"    enabled: false\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no delivery sink enabled")
}
