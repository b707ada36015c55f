package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/config"
)

func TestLoadPeersFileParsesKnownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	contents := "peers:\n" +
		"  - id: urn:participant:00000000-0000-0000-0000-000000000001\n" +
		"    name: acme-data-provider\n" +
		"    callbackAddress: https://acme.example/dsp\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	file, err := config.LoadPeersFile(path)
	require.NoError(t, err)
	require.Len(t, file.Peers, 1)
	require.Equal(t, "acme-data-provider", file.Peers[0].Name)
	require.Equal(t, "https://acme.example/dsp", file.Peers[0].CallbackAddress)
}

func TestLoadPeersFileRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "peers.yaml")
	contents := "peers:\n" +
		"  - id: urn:participant:00000000-0000-0000-0000-000000000001\n" +
		"    bogusField: true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := config.LoadPeersFile(path)
	require.Error(t, err)
}

func TestLoadPeersFileMissingPath(t *testing.T) {
	_, err := config.LoadPeersFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
