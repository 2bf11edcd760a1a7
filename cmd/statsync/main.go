package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/tradelab-io/statsync/internal/config"
	"github.com/tradelab-io/statsync/internal/logger"
	"github.com/tradelab-io/statsync/internal/scheduler"
	"github.com/tradelab-io/statsync/internal/server"
	"github.com/tradelab-io/statsync/internal/source"
	"github.com/tradelab-io/statsync/internal/store"
	"github.com/tradelab-io/statsync/internal/syncer"
)

// app bundles the wired components behind one CLI invocation.
type app struct {
	cfg    config.Config
	logger *logger.Logger
	store  store.ParticipantStore
	syncer *syncer.Syncer
}

// newApp loads configuration and wires the store, fetcher and syncer.
func newApp(configPath string, progress func(completed, total int)) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	st, err := store.NewDuckDBStore(cfg.Store.Path, log)
	if err != nil {
		return nil, err
	}

	seeds := make([]syncer.Target, 0, len(cfg.Seeds))
	for _, seed := range cfg.Seeds {
		seeds = append(seeds, syncer.Target{
			Token:  seed.Token,
			Name:   seed.Name,
			CsvURL: seed.CsvURL,
		})
	}

	fetcher := source.NewHTTPFetcher(time.Duration(cfg.Source.TimeoutSeconds) * time.Second)

	sync := syncer.New(st, fetcher, log, syncer.Options{
		LedgerEnabled: cfg.Ledger.Enabled,
		LedgerPath:    cfg.Ledger.Path,
		Seeds:         seeds,
		Progress:      progress,
	})

	return &app{
		cfg:    cfg,
		logger: log,
		store:  st,
		syncer: sync,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("failed to close store: %v", err)
	}

	_ = a.logger.Sync()
}

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the yaml configuration file",
		Value:   "",
	}
}

// syncAction syncs a single participant and prints the computed KPIs.
func syncAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd.String("config"), nil)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.syncer.SyncOne(ctx, cmd.String("token"))
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	return printJSON(result)
}

// syncAllAction syncs every resolvable target with a progress bar.
func syncAllAction(ctx context.Context, cmd *cli.Command) error {
	var bar *progressbar.ProgressBar

	progress := func(completed, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "syncing")
		}

		_ = bar.Set(completed)
	}

	a, err := newApp(cmd.String("config"), progress)
	if err != nil {
		return err
	}
	defer a.close()

	result := a.syncer.SyncAll(ctx)

	return printJSON(result)
}

// serveAction runs the HTTP API.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd.String("config"), nil)
	if err != nil {
		return err
	}
	defer a.close()

	srv := server.New(a.syncer, a.store, a.logger)

	log.Printf("Listening on %s", a.cfg.Server.Addr)

	return http.ListenAndServe(a.cfg.Server.Addr, srv.Router())
}

// daemonAction runs scheduled batch syncs until interrupted.
func daemonAction(ctx context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd.String("config"), nil)
	if err != nil {
		return err
	}
	defer a.close()

	sched := scheduler.New(a.syncer, a.logger)
	if err := sched.Start(a.cfg.Schedule.Cron); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	sched.Stop()

	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(data))

	return nil
}

func main() {
	// A missing .env is fine; environment variables may come from anywhere.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "statsync",
		Usage: "Trading-statistics ingestion and KPI sync",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Sync a single participant",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "token",
						Aliases:  []string{"t"},
						Usage:    "Participant token",
						Required: true,
					},
					configFlag(),
				},
				Action: syncAction,
			},
			{
				Name:   "sync-all",
				Usage:  "Sync every resolvable participant",
				Flags:  []cli.Flag{configFlag()},
				Action: syncAllAction,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API",
				Flags:  []cli.Flag{configFlag()},
				Action: serveAction,
			},
			{
				Name:   "daemon",
				Usage:  "Run scheduled batch syncs",
				Flags:  []cli.Flag{configFlag()},
				Action: daemonAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
