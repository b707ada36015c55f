// Command dspd serves the connector's DSP wire protocol and local setup-RPC
// surface, wiring every package under this module the way authn/main.go
// wires its own serve subcommand: go-flags for configuration, a single
// cmdServe.Execute building the dependency graph and handing it to
// net/http.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jessevdk/go-flags"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/dspconnect/core/cn"
	"github.com/dspconnect/core/config"
	"github.com/dspconnect/core/dataplane"
	"github.com/dspconnect/core/dataservice"
	"github.com/dspconnect/core/eventbus"
	"github.com/dspconnect/core/metrics"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/orchestrator"
	"github.com/dspconnect/core/peerauth"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/store/memory"
	"github.com/dspconnect/core/store/postgres"
	transporthttp "github.com/dspconnect/core/transport/http"
	"github.com/dspconnect/core/tp"
	"github.com/dspconnect/core/urn"
	"github.com/dspconnect/core/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type cmdServe struct {
	config.Config
	SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" default:"30s" description:"Interval between notification retry sweeps"`
	PeersFile     string        `long:"peers-file" env:"PEERS_FILE" description:"Path to a YAML file of statically-known peer connectors to seed on startup"`
}

func (cmd *cmdServe) Execute(args []string) error {
	if err := cmd.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logrus.StandardLogger()

	stores, closeStores, err := openStores(cmd.Config)
	if err != nil {
		return err
	}
	defer closeStores()

	if cmd.PeersFile != "" {
		if err := seedPeers(stores, cmd.PeersFile); err != nil {
			return err
		}
	}

	key, err := peerauth.LoadSigningKey(cmd.Config.KeysPath)
	if err != nil {
		return fmt.Errorf("loading signing key: %w", err)
	}
	issuer := peerauth.NewIssuer(key, cmd.Config.Host.Address())

	schemaValidator, err := validator.NewSchemaValidator()
	if err != nil {
		return fmt.Errorf("compiling validator schemas: %w", err)
	}
	pipeline := validator.NewPipeline(schemaValidator, validator.NewPeerAuthChecker(issuer))

	resolver := dataservice.NewStaticResolver()
	registry := dataplane.NewRegistry()
	facade := dataplane.NewFacade(registry)

	cnMachine := cn.New(stores)
	tpMachine := tp.New(stores, facade)

	bus := eventbus.New(stores, http.DefaultClient, log)
	sweeper := eventbus.NewSweeper(bus, cmd.SweepInterval, 25, 8, log)
	go sweeper.Run(context.Background())

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dispatcher := orchestrator.NewPeerDispatcher(http.DefaultClient, issuer, log)
	o := orchestrator.New(cnMachine, tpMachine, stores, pipeline, bus, dispatcher, m)

	mux := http.NewServeMux()
	mux.Handle("/", transporthttp.NewServer(o, resolver))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.Infof("dspd listening on %s", cmd.Config.Host.Address())
	return http.ListenAndServe(fmt.Sprintf(":%d", cmd.Config.Host.Port), mux)
}

// seedPeers upserts every statically-known participant named in the peers
// file, so a deployment's counterparties exist before the first negotiation
// or transfer names one of them.
func seedPeers(stores *store.Stores, path string) error {
	file, err := config.LoadPeersFile(path)
	if err != nil {
		return err
	}
	for _, p := range file.Peers {
		id, err := urn.ParseParticipantId(p.Id)
		if err != nil {
			return fmt.Errorf("peers file: parsing participant %q: %w", p.Id, err)
		}
		if err := stores.Participants.Upsert(context.Background(), &model.Participant{
			Id:              id,
			Name:            p.Name,
			CallbackAddress: p.CallbackAddress,
		}); err != nil {
			return fmt.Errorf("peers file: seeding participant %q: %w", p.Id, err)
		}
	}
	return nil
}

func openStores(cfg config.Config) (*store.Stores, func(), error) {
	if cfg.Local {
		return memory.NewStores(), func() {}, nil
	}
	switch cfg.DB.Type {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DSN())
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres connection: %w", err)
		}
		if err := postgres.Migrate(context.Background(), db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("applying migrations: %w", err)
		}
		return postgres.NewStores(db), func() { _ = db.Close() }, nil
	default:
		return memory.NewStores(), func() {}, nil
	}
}

func main() {
	parser := flags.NewParser(nil, flags.Default)

	if _, err := parser.AddCommand("serve", "Serve the connector", "Serve the DSP connector's wire and RPC surface", new(cmdServe)); err != nil {
		log.Fatal(err)
	}

	if _, err := parser.Parse(); err == nil {
		// Success.
	} else if _, ok := err.(*flags.Error); ok {
		// go-flags already printed a notification.
	} else {
		log.Fatal(err)
	}
}
