package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/config"
)

func TestValidateAllowsMemoryByDefault(t *testing.T) {
	var c = config.Config{KeysPath: "/keys"}
	require.NoError(t, c.Validate())
}

func TestValidateAllowsLocalRegardlessOfDB(t *testing.T) {
	var c = config.Config{Local: true, DB: config.DBConfig{Type: "postgres"}, KeysPath: "/keys"}
	require.NoError(t, c.Validate())
}

func TestValidateRejectsPostgresWithoutURL(t *testing.T) {
	var c = config.Config{DB: config.DBConfig{Type: "postgres", Database: "dspconnect"}, KeysPath: "/keys"}
	require.Error(t, c.Validate())
}

func TestValidateRejectsPostgresWithoutDatabase(t *testing.T) {
	var c = config.Config{DB: config.DBConfig{Type: "postgres", URL: "db.internal"}, KeysPath: "/keys"}
	require.Error(t, c.Validate())
}

func TestValidateRejectsUnknownDBType(t *testing.T) {
	var c = config.Config{DB: config.DBConfig{Type: "sqlite"}, KeysPath: "/keys"}
	require.Error(t, c.Validate())
}

func TestHostAddressFormatsURL(t *testing.T) {
	var h = config.HostConfig{Protocol: "https", URL: "dsp.example.com", Port: 443}
	require.Equal(t, "https://dsp.example.com:443", h.Address())
}
