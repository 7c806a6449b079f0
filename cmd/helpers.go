package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ziadkadry99/devcompass/internal/api"
	"github.com/ziadkadry99/devcompass/internal/config"
	"github.com/ziadkadry99/devcompass/internal/db"
	"github.com/ziadkadry99/devcompass/internal/job"
	"github.com/ziadkadry99/devcompass/internal/session"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `devcompass init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// quietLogs silences component logs unless --verbose is set. Commands that
// print their own progress call it.
func quietLogs() {
	if !verbose {
		log.SetOutput(io.Discard)
	}
}

// openDatabase opens the local database under the configured data dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	database, err := db.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return database, nil
}

// deps are the collaborators shared by the commands.
type deps struct {
	cfg     *config.Config
	db      *db.DB
	client  *api.Client
	gate    *session.Gate
	history *job.History
	poller  *job.Poller
}

// openDeps loads config, opens the database and starts the session gate.
// The caller must call close.
func openDeps(ctx context.Context) (*deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(cfg.APIURL, nil)
	gate := session.NewGate(session.NewSQLStore(database), client)
	if err := gate.Start(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("starting session: %w", err)
	}

	history := job.NewHistory(database)
	poller := job.NewPoller(client, job.Options{
		Interval:    cfg.PollInterval(),
		SettleDelay: cfg.SettleDelay(),
		MaxRetries:  cfg.MaxPollRetries,
		HostBase:    cfg.GitHubBase,
		History:     history,
	})

	return &deps{
		cfg:     cfg,
		db:      database,
		client:  client,
		gate:    gate,
		history: history,
		poller:  poller,
	}, nil
}

func (d *deps) close() {
	d.gate.Close()
	d.db.Close()
}
