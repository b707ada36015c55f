package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDSNAssemblesConnectionString(t *testing.T) {
	var dsn = DSN("db.internal", 5432, "dsp", "secret", "dspconnect")
	require.Equal(t, "host=db.internal port=5432 user=dsp password=secret dbname=dspconnect sslmode=disable", dsn)
}

func TestJoinComma(t *testing.T) {
	require.Equal(t, "", joinComma(nil))
	require.Equal(t, "a = $1", joinComma([]string{"a = $1"}))
	require.Equal(t, "a = $1, b = $2", joinComma([]string{"a = $1", "b = $2"}))
}
