package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/config"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/data"
	"github.com/TanushreeHiremath/wallet-risk-scoring/pkg/logging"
)

const (
	appName      = "walletrisk"
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"

	debugFlagName     = "debug"
	dbFlagName        = "db"
	formatFlagName    = "format"
	configDirFlagName = "config"

	apiKeyEnvVar = "COVALENT_API_KEY"
	dbEnvVar     = "WALLETRISK_DB"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""
)

// Execute creates and runs the CLI application.
func Execute() {
	logging.SetDefaultCLILogger("info")

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		stop()
		os.Exit(1)
	}
}

type appConfig struct {
	Dir    string
	DBPath string
	Format string
	Debug  bool
	Config *config.Config

	store *data.Store
}

// Store opens the cache on first use.
func (a *appConfig) Store(ctx context.Context) (*data.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := data.Open(ctx, a.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", a.DBPath, err)
	}
	a.store = s
	return s, nil
}

func (a *appConfig) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Debug("failed to close cache", "error", err)
	}
	a.store = nil
}

func getConfig(cmd *cli.Command) *appConfig {
	return cmd.Root().Metadata[appConfigKey].(*appConfig)
}

func newApp() *cli.Command {
	cfg := &appConfig{}
	return &cli.Command{
		Name:                  appName,
		Version:               fmt.Sprintf("%s (%s - %s)", version, commit, date),
		EnableShellCompletion: true,
		HideHelpCommand:       true,
		Usage:                 "Score wallets by their lending activity on a DeFi protocol",
		Metadata:              map[string]any{appConfigKey: cfg},
		Flags:                 rootFlags(),
		Commands: []*cli.Command{
			authCmd(),
			scoreCmd(),
			classifyCmd(),
			stateCmd(),
			resetCmd(),
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, cfg.init(cmd)
		},
		After: func(_ context.Context, _ *cli.Command) error {
			cfg.close()
			return nil
		},
	}
}

func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  debugFlagName,
			Usage: "Prints verbose logs (optional, default: false)",
		},
		&cli.StringFlag{
			Name:    dbFlagName,
			Usage:   "Path to the sqlite cache file or a postgres:// URL (default: $HOME/.walletrisk/data.db)",
			Sources: cli.EnvVars(dbEnvVar),
		},
		&cli.StringFlag{
			Name:  formatFlagName,
			Usage: "Output format [json, yaml]",
			Value: formatJSON,
		},
		&cli.StringFlag{
			Name:  configDirFlagName,
			Usage: "Directory holding config.yaml and the default cache (default: $HOME/.walletrisk)",
		},
	}
}

func (a *appConfig) init(cmd *cli.Command) error {
	a.Debug = cmd.Bool(debugFlagName)
	if a.Debug {
		logging.SetDefaultCLILogger("debug")
	}

	a.Dir = cmd.String(configDirFlagName)
	if a.Dir == "" {
		dir, _, err := config.GetOrCreateHomeDir(appName)
		if err != nil {
			return fmt.Errorf("resolving app dir: %w", err)
		}
		a.Dir = dir
	}

	c, err := config.ReadOrCreate(a.Dir)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	a.Config = c

	if !a.Debug {
		logging.SetDefaultCLILogger(c.LogLevel)
	}

	switch f := cmd.String(formatFlagName); f {
	case formatJSON, "":
		a.Format = formatJSON
	case formatYAML, "yml":
		a.Format = formatYAML
	default:
		return fmt.Errorf("invalid format %q (valid: %s, %s)", f, formatJSON, formatYAML)
	}

	a.DBPath = cmd.String(dbFlagName)
	if a.DBPath == "" {
		a.DBPath = filepath.Join(a.Dir, data.DataFileName)
	}

	slog.Debug("config loaded", "dir", a.Dir, "db", a.DBPath, "format", a.Format)
	return nil
}

func encode(cmd *cli.Command, v any) error {
	w := writer(cmd)
	if getConfig(cmd).Format == formatYAML {
		e := yaml.NewEncoder(w)
		defer e.Close()
		return e.Encode(v)
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
