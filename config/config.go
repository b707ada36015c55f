// Package config assembles runtime configuration with go-flags, grouped the
// way estuary-flow/authn's Config/cfgCookie/cfgTokens split cookie and token
// material into their own sub-structs: a Host group for the component's own
// listen address, a DB group for storage, and a couple of top-level scalars.
package config

import (
	"fmt"

	"github.com/dspconnect/core/store/postgres"
)

// HostConfig is the address a component advertises and listens on.
type HostConfig struct {
	Protocol string `long:"protocol" env:"PROTOCOL" default:"http" choice:"http" choice:"https" description:"Protocol the component is reachable over"`
	URL      string `long:"url" env:"URL" default:"localhost" description:"Hostname the component is reachable at"`
	Port     int    `long:"port" env:"PORT" default:"8080" description:"Port the component listens on"`
}

func (h HostConfig) Address() string {
	return fmt.Sprintf("%s://%s:%d", h.Protocol, h.URL, h.Port)
}

// DBConfig names the storage backend and, for postgres, its connection
// parameters. DBType "memory" ignores every other field.
type DBConfig struct {
	Type     string `long:"type" env:"TYPE" default:"memory" choice:"memory" choice:"postgres" description:"Storage backend"`
	URL      string `long:"url" env:"URL" description:"Database hostname"`
	Port     int    `long:"port" env:"PORT" default:"5432" description:"Database port"`
	User     string `long:"user" env:"USER" description:"Database user"`
	Password string `long:"password" env:"PASSWORD" description:"Database password"`
	Database string `long:"database" env:"DATABASE" description:"Database name"`
}

func (d DBConfig) dsn() string {
	return postgres.DSN(d.URL, d.Port, d.User, d.Password, d.Database)
}

// Config is the top-level configuration of a dspconnect component.
type Config struct {
	Host HostConfig `group:"Host" namespace:"host" env-namespace:"HOST"`
	DB   DBConfig   `group:"Database" namespace:"db" env-namespace:"DB"`

	Local bool `long:"local" env:"IS_LOCAL" description:"Run against in-memory storage without any network dependency, overriding DB"`

	KeysPath string `long:"keys-path" env:"KEYS_PATH" required:"t" description:"Directory holding the PeerAuth signing key material"`
}

// Validate rejects combinations that parse but can never run: a postgres
// backend with no URL or database name to dial, or an unknown db.type. A
// local run skips every DB check, since Local always wins over the DB group.
func (c Config) Validate() error {
	if c.Local {
		return nil
	}
	switch c.DB.Type {
	case "memory":
		return nil
	case "postgres":
		if c.DB.URL == "" {
			return fmt.Errorf("config: db.type is postgres but db.url is empty")
		}
		if c.DB.Database == "" {
			return fmt.Errorf("config: db.type is postgres but db.database is empty")
		}
		return nil
	default:
		return fmt.Errorf("config: unknown db.type %q", c.DB.Type)
	}
}

// DSN returns the lib/pq connection string for a postgres backend. Callers
// must check Validate and DB.Type themselves; DSN does not repeat that work.
func (c Config) DSN() string {
	return c.DB.dsn()
}
