package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nhle/sitecache/internal/calendar"
	"github.com/nhle/sitecache/internal/logging"
	"github.com/nhle/sitecache/internal/model"
	"github.com/nhle/sitecache/internal/sitedb"
	"github.com/nhle/sitecache/internal/store"
)

const usage = `usage: sitecache [-config path] [-env-file path] <command> [flags]

commands:
  upgrade [-site id]   install or upgrade site schemas
  status  [-site id]   print installed schema versions
  clear   -site id     empty the clearable cache tables of a site
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "sitecache:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("sitecache", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	configPath := fs.String("config", model.DefaultConfigPath(), "path to config file")
	envFile := fs.String("env-file", "", "load SITECACHE_* overrides from a dotenv file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return fmt.Errorf("loading env file: %w", err)
		}
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	sub := flag.NewFlagSet(cmd, flag.ContinueOnError)
	sub.SetOutput(out)
	siteID := sub.String("site", "", "site id (default: all configured sites)")
	if err := sub.Parse(cmdArgs); err != nil {
		return err
	}

	sites, err := app.selectSites(*siteID)
	if err != nil {
		return err
	}

	switch cmd {
	case "upgrade":
		return app.upgrade(ctx, sites, out)
	case "status":
		return app.status(ctx, sites, out)
	case "clear":
		if *siteID == "" {
			return errors.New("clear requires -site")
		}
		return app.clear(ctx, sites)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app wires the configuration, the settings database and the schema
// manager shared by every command.
type app struct {
	cfg      *model.AppConfig
	logger   *zap.Logger
	settings *store.ConfigStore
	manager  *sitedb.Manager
}

func newApp(cfg *model.AppConfig, logger *zap.Logger) (*app, error) {
	settings, err := store.OpenConfig(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	manager := sitedb.NewManager(logger)
	err = manager.Register(calendar.NewSiteSchema(settings,
		calendar.WithLogger(logger),
		calendar.WithMaxConcurrency(cfg.Migration.MaxConcurrency),
	))
	if err != nil {
		settings.Close()
		return nil, fmt.Errorf("registering calendar schema: %w", err)
	}

	return &app{cfg: cfg, logger: logger, settings: settings, manager: manager}, nil
}

func (a *app) Close() error {
	return a.settings.Close()
}

func (a *app) selectSites(id string) ([]model.SiteConfig, error) {
	if id == "" {
		return a.cfg.Sites, nil
	}
	site, ok := a.cfg.Site(id)
	if !ok {
		return nil, fmt.Errorf("site %q is not configured", id)
	}
	return []model.SiteConfig{site}, nil
}

// withSite opens the database of site, runs fn and closes it.
func (a *app) withSite(site model.SiteConfig, fn func(*store.SQLiteStore) error) error {
	st, err := store.OpenSite(a.cfg.DataDir, site.ID)
	if err != nil {
		return fmt.Errorf("site %s: %w", site.ID, err)
	}
	defer st.Close()
	return fn(st)
}

func (a *app) upgrade(ctx context.Context, sites []model.SiteConfig, out io.Writer) error {
	var errs []error
	for _, site := range sites {
		err := a.withSite(site, func(st *store.SQLiteStore) error {
			results, err := a.manager.ApplySchemas(ctx, st)
			for _, r := range results {
				if r.Skipped {
					fmt.Fprintf(out, "%s\t%s\tv%d (up to date)\n", site.ID, r.Schema, r.To)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\tv%d -> v%d\n", site.ID, r.Schema, r.From, r.To)
			}
			return err
		})
		if err != nil {
			a.logger.Error("site upgrade failed", zap.String("site", site.ID), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) status(ctx context.Context, sites []model.SiteConfig, out io.Writer) error {
	for _, site := range sites {
		err := a.withSite(site, func(st *store.SQLiteStore) error {
			versions, err := st.GetSchemaVersions(ctx)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintf(out, "%s\t(no schemas installed)\n", site.ID)
			}
			for _, v := range versions {
				fmt.Fprintf(out, "%s\t%s\tv%d\n", site.ID, v.Name, v.Version)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *app) clear(ctx context.Context, sites []model.SiteConfig) error {
	for _, site := range sites {
		if err := a.withSite(site, func(st *store.SQLiteStore) error {
			return a.manager.ClearCache(ctx, st)
		}); err != nil {
			return err
		}
	}
	return nil
}
